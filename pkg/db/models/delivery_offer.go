package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

// DeliveryOffer is the persisted record of a decision window. Rows with
// a terminal outcome are immutable.
type DeliveryOffer struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID              uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	RiderID              uuid.UUID          `gorm:"column:rider_id;type:uuid;not null;index"`
	OfferedAt            time.Time          `gorm:"column:offered_at;not null"`
	ExpiresAt            time.Time          `gorm:"column:expires_at;not null"`
	PreparationStartedAt *time.Time         `gorm:"column:preparation_started_at"`
	Outcome              enums.OfferOutcome `gorm:"column:outcome;type:offer_outcome_enum;not null;default:pending"`
	PenaltyApplied       bool               `gorm:"column:penalty_applied;not null;default:false"`
	ResolvedAt           *time.Time         `gorm:"column:resolved_at"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
}
