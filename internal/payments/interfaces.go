package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

// Repository defines persistence operations for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentRecord, error)
	ListByRider(ctx context.Context, riderID uuid.UUID, from, to time.Time) ([]models.PaymentRecord, error)
	// RiderTotalsBetween aggregates rider payment totals per rider for
	// deliveries recorded in [from, to).
	RiderTotalsBetween(ctx context.Context, from, to time.Time) ([]RiderTotals, error)
}

// SettingsRepository manages the append-only payment rate table.
type SettingsRepository interface {
	WithTx(tx *gorm.DB) SettingsRepository
	Current(ctx context.Context) (*models.PaymentSettingsVersion, error)
	Append(ctx context.Context, version *models.PaymentSettingsVersion) (*models.PaymentSettingsVersion, error)
}

// RiderTotals is one rider's aggregated earnings over a period.
type RiderTotals struct {
	RiderID    uuid.UUID       `gorm:"column:rider_id"`
	Deliveries int             `gorm:"column:deliveries"`
	Total      decimal.Decimal `gorm:"column:total"`
}
