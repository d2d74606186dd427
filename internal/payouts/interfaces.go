package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

// BonusRepository persists manually awarded rider bonuses.
type BonusRepository interface {
	WithTx(tx *gorm.DB) BonusRepository
	Create(ctx context.Context, bonus *models.RiderBonus) (*models.RiderBonus, error)
	// SumByRiderBetween aggregates bonus amounts per rider awarded in
	// [from, to).
	SumByRiderBetween(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error)
	ListByRider(ctx context.Context, riderID uuid.UUID, from, to time.Time) ([]models.RiderBonus, error)
}
