package efficiency

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

// Repository defines persistence operations for efficiency_records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, riderID uuid.UUID) (*models.EfficiencyRecord, error)
	// ApplyAcceptance increments accepted_orders and total_points in a
	// single statement and returns the refreshed row.
	ApplyAcceptance(ctx context.Context, riderID uuid.UUID, points int) (*models.EfficiencyRecord, error)
	// ApplyRejection increments rejected_orders and, when penalized,
	// penalized_rejections and total_points.
	ApplyRejection(ctx context.Context, riderID uuid.UUID, penalized bool, points int) (*models.EfficiencyRecord, error)
}
