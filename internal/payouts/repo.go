package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

type bonusRepository struct {
	db *gorm.DB
}

// NewBonusRepository builds the rider bonus repository.
func NewBonusRepository(db *gorm.DB) BonusRepository {
	return &bonusRepository{db: db}
}

func (r *bonusRepository) WithTx(tx *gorm.DB) BonusRepository {
	if tx == nil {
		return r
	}
	return &bonusRepository{db: tx}
}

func (r *bonusRepository) Create(ctx context.Context, bonus *models.RiderBonus) (*models.RiderBonus, error) {
	if err := r.db.WithContext(ctx).Create(bonus).Error; err != nil {
		return nil, err
	}
	return bonus, nil
}

func (r *bonusRepository) SumByRiderBetween(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []struct {
		RiderID uuid.UUID       `gorm:"column:rider_id"`
		Total   decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.RiderBonus{}).
		Select("rider_id, SUM(amount) AS total").
		Where("awarded_at >= ? AND awarded_at < ?", from, to).
		Group("rider_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.RiderID] = row.Total
	}
	return totals, nil
}

func (r *bonusRepository) ListByRider(ctx context.Context, riderID uuid.UUID, from, to time.Time) ([]models.RiderBonus, error) {
	var bonuses []models.RiderBonus
	err := r.db.WithContext(ctx).
		Where("rider_id = ?", riderID).
		Where("awarded_at >= ? AND awarded_at < ?", from, to).
		Order("awarded_at DESC").
		Find(&bonuses).Error
	if err != nil {
		return nil, err
	}
	return bonuses, nil
}
