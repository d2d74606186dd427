package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiderBonus is a manually awarded bonus included in the weekly payout.
type RiderBonus struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RiderID   uuid.UUID       `gorm:"column:rider_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason    string          `gorm:"column:reason;not null"`
	AwardedBy string          `gorm:"column:awarded_by;not null"`
	AwardedAt time.Time       `gorm:"column:awarded_at;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's pluralization.
func (RiderBonus) TableName() string {
	return "rider_bonuses"
}
