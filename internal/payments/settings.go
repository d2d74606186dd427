package payments

import (
	"github.com/shopspring/decimal"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
)

// Settings is an immutable value copy of one payment settings version.
type Settings struct {
	Version int

	RiderBaseFee        decimal.Decimal
	RiderPerKmRate      decimal.Decimal
	RiderPerMinuteRate  decimal.Decimal
	EfficiencyThreshold decimal.Decimal
	EfficiencyBonusRate decimal.Decimal
	PeakBonusRate       decimal.Decimal
	WeatherBonusRate    decimal.Decimal
	LongDistanceKm      decimal.Decimal
	LongDistanceRate    decimal.Decimal

	CustomerBaseFee       decimal.Decimal
	CustomerPerKmRate     decimal.Decimal
	CustomerPerMinuteRate decimal.Decimal
	CustomerPeakRate      decimal.Decimal
	CustomerWeatherRate   decimal.Decimal
	CustomerLongDistRate  decimal.Decimal
	CustomerMargin        decimal.Decimal

	MinimumPayout decimal.Decimal
	ProcessingFee decimal.Decimal
}

// SettingsFromModel copies a stored version into a Settings value.
func SettingsFromModel(m *models.PaymentSettingsVersion) Settings {
	return Settings{
		Version:               m.Version,
		RiderBaseFee:          m.RiderBaseFee,
		RiderPerKmRate:        m.RiderPerKmRate,
		RiderPerMinuteRate:    m.RiderPerMinuteRate,
		EfficiencyThreshold:   m.EfficiencyThreshold,
		EfficiencyBonusRate:   m.EfficiencyBonusRate,
		PeakBonusRate:         m.PeakBonusRate,
		WeatherBonusRate:      m.WeatherBonusRate,
		LongDistanceKm:        m.LongDistanceKm,
		LongDistanceRate:      m.LongDistanceRate,
		CustomerBaseFee:       m.CustomerBaseFee,
		CustomerPerKmRate:     m.CustomerPerKmRate,
		CustomerPerMinuteRate: m.CustomerPerMinuteRate,
		CustomerPeakRate:      m.CustomerPeakRate,
		CustomerWeatherRate:   m.CustomerWeatherRate,
		CustomerLongDistRate:  m.CustomerLongDistRate,
		CustomerMargin:        m.CustomerMargin,
		MinimumPayout:         m.MinimumPayout,
		ProcessingFee:         m.ProcessingFee,
	}
}

// UpdateSettingsInput carries a full replacement rate set. Settings are
// append-only: an update becomes a new version, old records keep theirs.
type UpdateSettingsInput struct {
	RiderBaseFee        decimal.Decimal
	RiderPerKmRate      decimal.Decimal
	RiderPerMinuteRate  decimal.Decimal
	EfficiencyThreshold decimal.Decimal
	EfficiencyBonusRate decimal.Decimal
	PeakBonusRate       decimal.Decimal
	WeatherBonusRate    decimal.Decimal
	LongDistanceKm      decimal.Decimal
	LongDistanceRate    decimal.Decimal

	CustomerBaseFee       decimal.Decimal
	CustomerPerKmRate     decimal.Decimal
	CustomerPerMinuteRate decimal.Decimal
	CustomerPeakRate      decimal.Decimal
	CustomerWeatherRate   decimal.Decimal
	CustomerLongDistRate  decimal.Decimal
	CustomerMargin        decimal.Decimal

	MinimumPayout decimal.Decimal
	ProcessingFee decimal.Decimal

	CreatedBy string
}

func (in UpdateSettingsInput) validate() error {
	positives := map[string]decimal.Decimal{
		"rider_base_fee":           in.RiderBaseFee,
		"rider_per_km_rate":        in.RiderPerKmRate,
		"rider_per_minute_rate":    in.RiderPerMinuteRate,
		"customer_base_fee":        in.CustomerBaseFee,
		"customer_per_km_rate":     in.CustomerPerKmRate,
		"customer_per_minute_rate": in.CustomerPerMinuteRate,
		"minimum_payout":           in.MinimumPayout,
	}
	for field, value := range positives {
		if value.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" must be positive")
		}
	}

	nonNegatives := map[string]decimal.Decimal{
		"efficiency_bonus_rate":   in.EfficiencyBonusRate,
		"peak_bonus_rate":         in.PeakBonusRate,
		"weather_bonus_rate":      in.WeatherBonusRate,
		"long_distance_km":        in.LongDistanceKm,
		"long_distance_rate":      in.LongDistanceRate,
		"customer_peak_rate":      in.CustomerPeakRate,
		"customer_weather_rate":   in.CustomerWeatherRate,
		"customer_long_dist_rate": in.CustomerLongDistRate,
		"processing_fee":          in.ProcessingFee,
	}
	for field, value := range nonNegatives {
		if value.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" cannot be negative")
		}
	}

	if in.EfficiencyThreshold.LessThanOrEqual(decimal.Zero) || in.EfficiencyThreshold.GreaterThan(decimal.NewFromInt(100)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "efficiency_threshold must be in (0, 100]")
	}
	if in.CustomerMargin.LessThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_margin must be at least 1.0")
	}
	if in.CreatedBy == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "created_by is required")
	}
	return nil
}
