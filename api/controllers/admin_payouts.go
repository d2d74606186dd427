package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/internal/payouts"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

// AdminWeeklyPayoutReport builds the payout report for the current
// period, or for the week ending at period_end when provided.
func AdminWeeklyPayoutReport(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := payouts.CurrentPeriod(time.Now().UTC())

		if raw := strings.TrimSpace(r.URL.Query().Get("period_end")); raw != "" {
			end, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period_end timestamp"))
				return
			}
			period = payouts.Period{Start: end.AddDate(0, 0, -7), End: end}
		}

		report, err := svc.GenerateReport(r.Context(), period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
