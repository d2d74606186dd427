package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSettingsVersion is one immutable row of the append-only
// payment rate table. The current settings are the row with the highest
// version.
type PaymentSettingsVersion struct {
	Version int `gorm:"column:version;primaryKey;autoIncrement"`

	RiderBaseFee        decimal.Decimal `gorm:"column:rider_base_fee;type:numeric(12,2);not null"`
	RiderPerKmRate      decimal.Decimal `gorm:"column:rider_per_km_rate;type:numeric(12,4);not null"`
	RiderPerMinuteRate  decimal.Decimal `gorm:"column:rider_per_minute_rate;type:numeric(12,4);not null"`
	EfficiencyThreshold decimal.Decimal `gorm:"column:efficiency_threshold;type:numeric(5,2);not null"`
	EfficiencyBonusRate decimal.Decimal `gorm:"column:efficiency_bonus_rate;type:numeric(6,4);not null"`
	PeakBonusRate       decimal.Decimal `gorm:"column:peak_bonus_rate;type:numeric(6,4);not null"`
	WeatherBonusRate    decimal.Decimal `gorm:"column:weather_bonus_rate;type:numeric(6,4);not null"`
	LongDistanceKm      decimal.Decimal `gorm:"column:long_distance_km;type:numeric(8,2);not null"`
	LongDistanceRate    decimal.Decimal `gorm:"column:long_distance_rate;type:numeric(6,4);not null"`

	CustomerBaseFee       decimal.Decimal `gorm:"column:customer_base_fee;type:numeric(12,2);not null"`
	CustomerPerKmRate     decimal.Decimal `gorm:"column:customer_per_km_rate;type:numeric(12,4);not null"`
	CustomerPerMinuteRate decimal.Decimal `gorm:"column:customer_per_minute_rate;type:numeric(12,4);not null"`
	CustomerPeakRate      decimal.Decimal `gorm:"column:customer_peak_rate;type:numeric(6,4);not null"`
	CustomerWeatherRate   decimal.Decimal `gorm:"column:customer_weather_rate;type:numeric(6,4);not null"`
	CustomerLongDistRate  decimal.Decimal `gorm:"column:customer_long_dist_rate;type:numeric(6,4);not null"`
	CustomerMargin        decimal.Decimal `gorm:"column:customer_margin;type:numeric(6,4);not null"`

	MinimumPayout decimal.Decimal `gorm:"column:minimum_payout;type:numeric(12,2);not null"`
	ProcessingFee decimal.Decimal `gorm:"column:processing_fee;type:numeric(12,2);not null"`

	EffectiveAt time.Time `gorm:"column:effective_at;not null"`
	CreatedBy   string    `gorm:"column:created_by;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's pluralization.
func (PaymentSettingsVersion) TableName() string {
	return "payment_settings_versions"
}
