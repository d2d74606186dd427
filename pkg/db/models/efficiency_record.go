package models

import (
	"time"

	"github.com/google/uuid"
)

// EfficiencyRecord holds the per-rider dispatch counters. Percentage
// and bonus eligibility are derived on read and never stored.
type EfficiencyRecord struct {
	RiderID             uuid.UUID `gorm:"column:rider_id;type:uuid;primaryKey"`
	AcceptedOrders      int       `gorm:"column:accepted_orders;not null;default:0"`
	RejectedOrders      int       `gorm:"column:rejected_orders;not null;default:0"`
	PenalizedRejections int       `gorm:"column:penalized_rejections;not null;default:0"`
	TotalPoints         int       `gorm:"column:total_points;not null;default:0"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
