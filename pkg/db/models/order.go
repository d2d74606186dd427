package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

// Order is a delivery order moving through the dispatch lifecycle.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantName  string            `gorm:"column:restaurant_name;not null"`
	PickupLat       float64           `gorm:"column:pickup_lat;not null"`
	PickupLng       float64           `gorm:"column:pickup_lng;not null"`
	PickupAddress   string            `gorm:"column:pickup_address;not null"`
	DeliveryLat     float64           `gorm:"column:delivery_lat;not null"`
	DeliveryLng     float64           `gorm:"column:delivery_lng;not null"`
	DeliveryAddress string            `gorm:"column:delivery_address;not null"`
	ValueCents      int64             `gorm:"column:value_cents;not null"`
	Currency        string            `gorm:"column:currency;not null;default:GBP"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:pending"`

	// Weather is frozen at creation and reused for estimates and
	// payment math so both sides see the same conditions.
	Weather enums.WeatherCondition `gorm:"column:weather;type:weather_condition_enum;not null;default:normal"`

	AssignedRiderID      *uuid.UUID `gorm:"column:assigned_rider_id;type:uuid"`
	PreparationStartedAt *time.Time `gorm:"column:preparation_started_at"`
	AssignedAt           *time.Time `gorm:"column:assigned_at"`
	CompletedAt          *time.Time `gorm:"column:completed_at"`

	// EstimatedMinutes is frozen at assignment time and feeds late
	// detection.
	EstimatedMinutes *int `gorm:"column:estimated_minutes"`

	DispatchAttempts int            `gorm:"column:dispatch_attempts;not null;default:0"`
	ExcludedRiderIDs pq.StringArray `gorm:"column:excluded_rider_ids;type:text[]"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
