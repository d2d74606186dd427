package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment records repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByRider(ctx context.Context, riderID uuid.UUID, from, to time.Time) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("rider_id = ?", riderID).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) RiderTotalsBetween(ctx context.Context, from, to time.Time) ([]RiderTotals, error) {
	var totals []RiderTotals
	err := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Select("rider_id, COUNT(*) AS deliveries, SUM(rider_total) AS total").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("rider_id").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository builds the append-only settings repository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) WithTx(tx *gorm.DB) SettingsRepository {
	if tx == nil {
		return r
	}
	return &settingsRepository{db: tx}
}

func (r *settingsRepository) Current(ctx context.Context) (*models.PaymentSettingsVersion, error) {
	var version models.PaymentSettingsVersion
	err := r.db.WithContext(ctx).
		Order("version DESC").
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *settingsRepository) Append(ctx context.Context, version *models.PaymentSettingsVersion) (*models.PaymentSettingsVersion, error) {
	if err := r.db.WithContext(ctx).Create(version).Error; err != nil {
		return nil, err
	}
	return version, nil
}
