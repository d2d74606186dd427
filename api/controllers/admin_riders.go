package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/piersideeats/dispatch-backend/api/middleware"
	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/api/validators"
	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/internal/payouts"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

// AdminListRiders pages through the rider roster.
func AdminListRiders(svc riders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"riders":      riderViews(list.Riders),
			"next_cursor": list.NextCursor,
		})
	}
}

// AdminRiderDetail returns one rider's profile.
func AdminRiderDetail(svc riders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := pathUUID(r, "riderId", "rider id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rider, err := svc.Find(r.Context(), riderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, riderProfileView(rider))
	}
}

// AdminRiderPerformance joins the efficiency snapshot with earnings
// over the requested period.
func AdminRiderPerformance(scores efficiency.Service, pay payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := pathUUID(r, "riderId", "rider id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, to, err := periodFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := scores.Snapshot(r.Context(), riderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		earnings, err := pay.RiderEarnings(r.Context(), riderID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"efficiency": snap,
			"earnings":   earnings,
		})
	}
}

type awardBonusRequest struct {
	Amount string `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AdminAwardBonus grants a discretionary bonus that counts toward the
// weekly payout.
func AdminAwardBonus(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := pathUUID(r, "riderId", "rider id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req awardBonusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bonus, err := svc.AwardBonus(r.Context(), riderID, amount, req.Reason, adminActor(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bonus)
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	return amount, nil
}

func adminActor(r *http.Request) string {
	if actor := middleware.ActorIDFromContext(r.Context()); actor != "" {
		return actor
	}
	return "admin"
}
