package riders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a riders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rider *models.Rider) (*models.Rider, error) {
	if err := r.db.WithContext(ctx).Create(rider).Error; err != nil {
		return nil, err
	}
	return rider, nil
}

func (r *repository) Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	var rider models.Rider
	err := r.db.WithContext(ctx).
		Where("id = ?", riderID).
		First(&rider).Error
	if err != nil {
		return nil, err
	}
	return &rider, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params) (*RiderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var riders []models.Rider
	if err := query.Find(&riders).Error; err != nil {
		return nil, err
	}

	list := &RiderList{Riders: riders}
	if len(riders) > limit {
		list.Riders = riders[:limit]
		last := list.Riders[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

// candidateScoreExpr ranks by acceptance percentage. Riders without a
// ledger row score 100, matching the fresh-rider default.
const candidateScoreExpr = `CASE
  WHEN COALESCE(er.accepted_orders, 0) + COALESCE(er.rejected_orders, 0) = 0 THEN 100.0
  ELSE COALESCE(er.accepted_orders, 0) * 100.0 / (COALESCE(er.accepted_orders, 0) + COALESCE(er.rejected_orders, 0))
END DESC`

func (r *repository) CandidatePool(ctx context.Context, excluded []uuid.UUID) ([]models.Rider, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Select("riders.*").
		Joins("LEFT JOIN efficiency_records er ON er.rider_id = riders.id").
		Where("riders.is_active").
		Where("NOT riders.orders_paused").
		Where("riders.documents_verified").
		Where("riders.current_order_id IS NULL")
	if len(excluded) > 0 {
		query = query.Where("riders.id NOT IN ?", excluded)
	}

	var riders []models.Rider
	err := query.
		Order(candidateScoreExpr).
		Order("riders.available_since ASC").
		Find(&riders).Error
	if err != nil {
		return nil, err
	}
	return riders, nil
}

func (r *repository) ClaimOrder(ctx context.Context, riderID, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ? AND current_order_id IS NULL", riderID).
		Where("is_active AND NOT orders_paused AND documents_verified").
		Updates(map[string]any{
			"current_order_id": orderID,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReleaseOrder(ctx context.Context, riderID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ? AND current_order_id = ?", riderID, orderID).
		Updates(map[string]any{
			"current_order_id": nil,
			"available_since":  time.Now().UTC(),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *repository) SetPaused(ctx context.Context, riderID uuid.UUID, paused bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ?", riderID).
		Updates(map[string]any{
			"orders_paused": paused,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateBankAccount(ctx context.Context, riderID uuid.UUID, account BankAccount) error {
	res := r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ?", riderID).
		Updates(map[string]any{
			"bank_holder_name":    account.HolderName,
			"bank_account_number": account.AccountNumber,
			"bank_sort_code":      account.SortCode,
			"bank_name":           account.BankName,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
