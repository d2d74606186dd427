package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

// PaymentRecord is the frozen payment breakdown for a completed
// delivery. Amounts are computed once with the settings version noted
// and never recomputed.
type PaymentRecord struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	RiderID uuid.UUID `gorm:"column:rider_id;type:uuid;not null;index"`

	DistanceKm       decimal.Decimal        `gorm:"column:distance_km;type:numeric(8,2);not null"`
	EstimatedMinutes int                    `gorm:"column:estimated_minutes;not null"`
	Peak             bool                   `gorm:"column:peak;not null"`
	Weather          enums.WeatherCondition `gorm:"column:weather;type:weather_condition_enum;not null"`

	RiderBase            decimal.Decimal `gorm:"column:rider_base;type:numeric(12,2);not null"`
	RiderDistance        decimal.Decimal `gorm:"column:rider_distance;type:numeric(12,2);not null"`
	RiderTime            decimal.Decimal `gorm:"column:rider_time;type:numeric(12,2);not null"`
	RiderEfficiencyBonus decimal.Decimal `gorm:"column:rider_efficiency_bonus;type:numeric(12,2);not null"`
	RiderPeakBonus       decimal.Decimal `gorm:"column:rider_peak_bonus;type:numeric(12,2);not null"`
	RiderWeatherBonus    decimal.Decimal `gorm:"column:rider_weather_bonus;type:numeric(12,2);not null"`
	RiderLongDistance    decimal.Decimal `gorm:"column:rider_long_distance;type:numeric(12,2);not null"`
	RiderTotal           decimal.Decimal `gorm:"column:rider_total;type:numeric(12,2);not null"`

	CustomerBase     decimal.Decimal `gorm:"column:customer_base;type:numeric(12,2);not null"`
	CustomerDistance decimal.Decimal `gorm:"column:customer_distance;type:numeric(12,2);not null"`
	CustomerTime     decimal.Decimal `gorm:"column:customer_time;type:numeric(12,2);not null"`
	CustomerPeak     decimal.Decimal `gorm:"column:customer_peak;type:numeric(12,2);not null"`
	CustomerWeather  decimal.Decimal `gorm:"column:customer_weather;type:numeric(12,2);not null"`
	CustomerLongDist decimal.Decimal `gorm:"column:customer_long_dist;type:numeric(12,2);not null"`
	CustomerTotal    decimal.Decimal `gorm:"column:customer_total;type:numeric(12,2);not null"`

	SettingsVersion int       `gorm:"column:settings_version;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
