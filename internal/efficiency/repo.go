package efficiency

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an efficiency repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, riderID uuid.UUID) (*models.EfficiencyRecord, error) {
	var record models.EfficiencyRecord
	err := r.db.WithContext(ctx).
		Where("rider_id = ?", riderID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ApplyAcceptance(ctx context.Context, riderID uuid.UUID, points int) (*models.EfficiencyRecord, error) {
	record := models.EfficiencyRecord{
		RiderID:        riderID,
		AcceptedOrders: 1,
		TotalPoints:    points,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rider_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"accepted_orders": gorm.Expr("efficiency_records.accepted_orders + 1"),
				"total_points":    gorm.Expr("efficiency_records.total_points + ?", points),
			}),
		}).
		Create(&record).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, riderID)
}

func (r *repository) ApplyRejection(ctx context.Context, riderID uuid.UUID, penalized bool, points int) (*models.EfficiencyRecord, error) {
	record := models.EfficiencyRecord{
		RiderID:        riderID,
		RejectedOrders: 1,
	}
	assignments := map[string]any{
		"rejected_orders": gorm.Expr("efficiency_records.rejected_orders + 1"),
	}
	if penalized {
		record.PenalizedRejections = 1
		record.TotalPoints = points
		assignments["penalized_rejections"] = gorm.Expr("efficiency_records.penalized_rejections + 1")
		assignments["total_points"] = gorm.Expr("efficiency_records.total_points + ?", points)
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rider_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&record).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, riderID)
}
