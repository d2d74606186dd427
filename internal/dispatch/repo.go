package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

type offerRepository struct {
	db *gorm.DB
}

// NewOfferRepository builds the delivery offer archive repository.
func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) WithTx(tx *gorm.DB) OfferRepository {
	if tx == nil {
		return r
	}
	return &offerRepository{db: tx}
}

func (r *offerRepository) Create(ctx context.Context, offer *models.DeliveryOffer) (*models.DeliveryOffer, error) {
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *offerRepository) Find(ctx context.Context, offerID uuid.UUID) (*models.DeliveryOffer, error) {
	var offer models.DeliveryOffer
	err := r.db.WithContext(ctx).
		Where("id = ?", offerID).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepository) MarkResolved(ctx context.Context, offerID uuid.UUID, outcome enums.OfferOutcome, penaltyApplied bool, resolvedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryOffer{}).
		Where("id = ? AND outcome = ?", offerID, enums.OfferOutcomePending).
		Updates(map[string]any{
			"outcome":         outcome,
			"penalty_applied": penaltyApplied,
			"resolved_at":     resolvedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *offerRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryOffer, error) {
	var offers []models.DeliveryOffer
	err := r.db.WithContext(ctx).
		Where("outcome = ? AND expires_at < ?", enums.OfferOutcomePending, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *offerRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOffer, error) {
	var offers []models.DeliveryOffer
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("offered_at ASC").
		Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}
