package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/api/validators"
	"github.com/piersideeats/dispatch-backend/internal/dispatch"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

type createOrderRequest struct {
	RestaurantName       string     `json:"restaurant_name" validate:"required,min=2,max=200"`
	PickupLat            float64    `json:"pickup_lat" validate:"gte=-90,lte=90"`
	PickupLng            float64    `json:"pickup_lng" validate:"gte=-180,lte=180"`
	PickupAddress        string     `json:"pickup_address" validate:"required,max=500"`
	DeliveryLat          float64    `json:"delivery_lat" validate:"gte=-90,lte=90"`
	DeliveryLng          float64    `json:"delivery_lng" validate:"gte=-180,lte=180"`
	DeliveryAddress      string     `json:"delivery_address" validate:"required,max=500"`
	ValueCents           int64      `json:"value_cents" validate:"required,gt=0"`
	Currency             string     `json:"currency" validate:"omitempty,len=3"`
	PreparationStartedAt *time.Time `json:"preparation_started_at"`
}

// AdminCreateOrder registers a new order in the pending state.
func AdminCreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), orders.CreateOrderInput{
			RestaurantName:       req.RestaurantName,
			PickupLat:            req.PickupLat,
			PickupLng:            req.PickupLng,
			PickupAddress:        req.PickupAddress,
			DeliveryLat:          req.DeliveryLat,
			DeliveryLng:          req.DeliveryLng,
			DeliveryAddress:      req.DeliveryAddress,
			ValueCents:           req.ValueCents,
			Currency:             req.Currency,
			PreparationStartedAt: req.PreparationStartedAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// AdminListOrders pages through orders, optionally filtered by status.
func AdminListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := orders.Filters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminOrderDetail returns one order by id.
func AdminOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Find(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminDispatchOrder triggers automatic assignment for a pending order.
func AdminDispatchOrder(engine dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := engine.AutoAssign(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		now := time.Now().UTC()
		responses.WriteSuccessStatus(w, http.StatusAccepted, deliveryRequestView{
			OfferID:          window.ID,
			OrderID:          window.OrderID,
			OfferedAt:        window.OfferedAt,
			ExpiresAt:        window.ExpiresAt,
			ExpiresInSeconds: int(window.ExpiresIn(now).Seconds()),
			PrepStartedAt:    window.PreparationStartedAt,
		})
	}
}

type assignOrderRequest struct {
	RiderID string `json:"rider_id" validate:"required,uuid"`
}

// AdminAssignOrder force-assigns an order to a chosen rider,
// superseding any open offer.
func AdminAssignOrder(engine dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		riderID, err := parseUUID(req.RiderID, "rider id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := engine.ManualAssign(r.Context(), orderID, riderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminCancelOrder cancels a pending or in-flight order.
func AdminCancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminMarkPreparationStarted stamps the kitchen start time used by
// the rejection grace rule.
func AdminMarkPreparationStarted(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.MarkPreparationStarted(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
