// Package payloads defines the data section of every push event the
// backend emits. The websocket gateway forwards these verbatim.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

// DeliveryOfferEvent tells a rider a new offer is waiting for a decision.
type DeliveryOfferEvent struct {
	OfferID          uuid.UUID `json:"offer_id"`
	OrderID          uuid.UUID `json:"order_id"`
	RiderID          uuid.UUID `json:"rider_id"`
	RestaurantName   string    `json:"restaurant_name"`
	PickupAddress    string    `json:"pickup_address"`
	DeliveryAddress  string    `json:"delivery_address"`
	DistanceKm       float64   `json:"distance_km"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

// OrderUpdateEvent carries a full order snapshot, emitted on creation
// and on assignment changes.
type OrderUpdateEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	RestaurantName  string            `json:"restaurant_name"`
	PickupAddress   string            `json:"pickup_address"`
	DeliveryAddress string            `json:"delivery_address"`
	Status          enums.OrderStatus `json:"status"`
	RiderID         *uuid.UUID        `json:"rider_id,omitempty"`
	ValueCents      int64             `json:"value_cents"`
	Currency        string            `json:"currency"`
}

// OrderStatusUpdatedEvent reports an order lifecycle transition.
type OrderStatusUpdatedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	Status     enums.OrderStatus `json:"status"`
	RiderID    *uuid.UUID        `json:"rider_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// RiderUpdateEvent reports a change to a rider's availability.
type RiderUpdateEvent struct {
	RiderID        uuid.UUID  `json:"rider_id"`
	IsActive       bool       `json:"is_active"`
	OrdersPaused   bool       `json:"orders_paused"`
	CurrentOrderID *uuid.UUID `json:"current_order_id,omitempty"`
}

// RiderLocationUpdatedEvent broadcasts a live rider position. Locations
// are push-only and never persisted.
type RiderLocationUpdatedEvent struct {
	RiderID    uuid.UUID `json:"rider_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RiderScoreUpdatedEvent carries the rider's refreshed efficiency
// snapshot after a ledger update.
type RiderScoreUpdatedEvent struct {
	RiderID             uuid.UUID `json:"rider_id"`
	AcceptedOrders      int       `json:"accepted_orders"`
	RejectedOrders      int       `json:"rejected_orders"`
	PenalizedRejections int       `json:"penalized_rejections"`
	TotalPoints         int       `json:"total_points"`
	Percentage          float64   `json:"percentage"`
	BonusEligible       bool      `json:"bonus_eligible"`
}

// NotificationEvent is a human-readable message for a client audience.
type NotificationEvent struct {
	Audience string     `json:"audience"`
	RiderID  *uuid.UUID `json:"rider_id,omitempty"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
}

// SystemAlertEvent flags an operational problem for the admin dashboard.
type SystemAlertEvent struct {
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	IncidentID *uuid.UUID `json:"incident_id,omitempty"`
}
