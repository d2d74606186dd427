package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/piersideeats/dispatch-backend/api/responses"
	"github.com/piersideeats/dispatch-backend/api/validators"
	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

type calculatePaymentRequest struct {
	DistanceKm        float64 `json:"distance_km" validate:"gte=0"`
	DeliveryMinutes   int     `json:"delivery_minutes" validate:"gte=0"`
	EfficiencyPercent float64 `json:"efficiency_percent" validate:"gte=0,lte=100"`
	Peak              bool    `json:"peak"`
	Weather           string  `json:"weather" validate:"omitempty"`
}

// AdminCalculatePayment runs the payment math without persisting
// anything. The response carries the settings version used.
func AdminCalculatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req calculatePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		weather := enums.WeatherNormal
		if req.Weather != "" {
			parsed, parseErr := enums.ParseWeatherCondition(req.Weather)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid weather"))
				return
			}
			weather = parsed
		}

		breakdown, version, err := svc.Calculate(r.Context(), payments.CalculateInput{
			DistanceKm:        req.DistanceKm,
			DeliveryMinutes:   req.DeliveryMinutes,
			EfficiencyPercent: req.EfficiencyPercent,
			Peak:              req.Peak,
			Weather:           weather,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"breakdown":        breakdown,
			"settings_version": version,
		})
	}
}

// AdminPaymentSettings returns the current settings version.
func AdminPaymentSettings(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := svc.CurrentSettings(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

type updatePaymentSettingsRequest struct {
	RiderBaseFee        string `json:"rider_base_fee" validate:"required"`
	RiderPerKmRate      string `json:"rider_per_km_rate" validate:"required"`
	RiderPerMinuteRate  string `json:"rider_per_minute_rate" validate:"required"`
	EfficiencyThreshold string `json:"efficiency_threshold" validate:"required"`
	EfficiencyBonusRate string `json:"efficiency_bonus_rate" validate:"required"`
	PeakBonusRate       string `json:"peak_bonus_rate" validate:"required"`
	WeatherBonusRate    string `json:"weather_bonus_rate" validate:"required"`
	LongDistanceKm      string `json:"long_distance_km" validate:"required"`
	LongDistanceRate    string `json:"long_distance_rate" validate:"required"`

	CustomerBaseFee       string `json:"customer_base_fee" validate:"required"`
	CustomerPerKmRate     string `json:"customer_per_km_rate" validate:"required"`
	CustomerPerMinuteRate string `json:"customer_per_minute_rate" validate:"required"`
	CustomerPeakRate      string `json:"customer_peak_rate" validate:"required"`
	CustomerWeatherRate   string `json:"customer_weather_rate" validate:"required"`
	CustomerLongDistRate  string `json:"customer_long_dist_rate" validate:"required"`
	CustomerMargin        string `json:"customer_margin" validate:"required"`

	MinimumPayout string `json:"minimum_payout" validate:"required"`
	ProcessingFee string `json:"processing_fee" validate:"required"`
}

// AdminUpdatePaymentSettings appends a new settings version. Existing
// payment records keep the version they were computed with.
func AdminUpdatePaymentSettings(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updatePaymentSettingsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payments.UpdateSettingsInput{CreatedBy: adminActor(r)}
		fields := []struct {
			name string
			raw  string
			dest *decimal.Decimal
		}{
			{"rider_base_fee", req.RiderBaseFee, &input.RiderBaseFee},
			{"rider_per_km_rate", req.RiderPerKmRate, &input.RiderPerKmRate},
			{"rider_per_minute_rate", req.RiderPerMinuteRate, &input.RiderPerMinuteRate},
			{"efficiency_threshold", req.EfficiencyThreshold, &input.EfficiencyThreshold},
			{"efficiency_bonus_rate", req.EfficiencyBonusRate, &input.EfficiencyBonusRate},
			{"peak_bonus_rate", req.PeakBonusRate, &input.PeakBonusRate},
			{"weather_bonus_rate", req.WeatherBonusRate, &input.WeatherBonusRate},
			{"long_distance_km", req.LongDistanceKm, &input.LongDistanceKm},
			{"long_distance_rate", req.LongDistanceRate, &input.LongDistanceRate},
			{"customer_base_fee", req.CustomerBaseFee, &input.CustomerBaseFee},
			{"customer_per_km_rate", req.CustomerPerKmRate, &input.CustomerPerKmRate},
			{"customer_per_minute_rate", req.CustomerPerMinuteRate, &input.CustomerPerMinuteRate},
			{"customer_peak_rate", req.CustomerPeakRate, &input.CustomerPeakRate},
			{"customer_weather_rate", req.CustomerWeatherRate, &input.CustomerWeatherRate},
			{"customer_long_dist_rate", req.CustomerLongDistRate, &input.CustomerLongDistRate},
			{"customer_margin", req.CustomerMargin, &input.CustomerMargin},
			{"minimum_payout", req.MinimumPayout, &input.MinimumPayout},
			{"processing_fee", req.ProcessingFee, &input.ProcessingFee},
		}
		for _, field := range fields {
			value, parseErr := decimal.NewFromString(field.raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid "+field.name))
				return
			}
			*field.dest = value
		}

		settings, err := svc.UpdateSettings(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}
