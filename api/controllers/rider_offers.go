package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/api/middleware"
	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/internal/dispatch"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

// deliveryRequestView is one open offer as the rider app sees it.
// ExpiresIn is recomputed at render time, not at offer time.
type deliveryRequestView struct {
	OfferID          uuid.UUID  `json:"offer_id"`
	OrderID          uuid.UUID  `json:"order_id"`
	RestaurantName   string     `json:"restaurant_name,omitempty"`
	PickupAddress    string     `json:"pickup_address,omitempty"`
	DeliveryAddress  string     `json:"delivery_address,omitempty"`
	OfferedAt        time.Time  `json:"offered_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ExpiresInSeconds int        `json:"expires_in_seconds"`
	PrepStartedAt    *time.Time `json:"preparation_started_at,omitempty"`
}

// RiderDeliveryRequests lists the open decision windows for the
// authenticated rider.
func RiderDeliveryRequests(engine dispatch.Engine, ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now().UTC()
		views := []deliveryRequestView{}
		for _, window := range engine.OpenOffers(r.Context(), riderID) {
			view := deliveryRequestView{
				OfferID:          window.ID,
				OrderID:          window.OrderID,
				OfferedAt:        window.OfferedAt,
				ExpiresAt:        window.ExpiresAt,
				ExpiresInSeconds: int(window.ExpiresIn(now).Seconds()),
				PrepStartedAt:    window.PreparationStartedAt,
			}
			if order, findErr := ordersSvc.Find(r.Context(), window.OrderID); findErr == nil {
				view.RestaurantName = order.RestaurantName
				view.PickupAddress = order.PickupAddress
				view.DeliveryAddress = order.DeliveryAddress
			}
			views = append(views, view)
		}

		responses.WriteSuccess(w, map[string]any{"delivery_requests": views})
	}
}

// RiderAcceptOffer claims the order behind an open decision window.
func RiderAcceptOffer(engine dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := pathUUID(r, "offerId", "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := engine.Accept(r.Context(), offerID, riderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// RiderRejectOffer declines an open decision window. The response
// reports whether the rejection drew an efficiency penalty.
func RiderRejectOffer(engine dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := pathUUID(r, "offerId", "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		penalized, err := engine.Reject(r.Context(), offerID, riderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"rejected": true, "penalized": penalized})
	}
}

func actorUUID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}

func parseUUID(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func pathUUID(r *http.Request, param, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}
