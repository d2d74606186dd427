package incidents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an incidents repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, incident *models.Incident) (*models.Incident, error) {
	if err := r.db.WithContext(ctx).Create(incident).Error; err != nil {
		return nil, err
	}
	return incident, nil
}

func (r *repository) Find(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error) {
	var incident models.Incident
	err := r.db.WithContext(ctx).
		Where("id = ?", incidentID).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *repository) FindOpenByOrderKind(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind) (*models.Incident, error) {
	var incident models.Incident
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND kind = ? AND status = ?", orderID, kind, enums.IncidentStatusOpen).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters Filters) (*IncidentList, error) {
	query := r.db.WithContext(ctx).Model(&models.Incident{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}

	limit := pagination.NormalizeLimit(params.Limit)
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

	var incidents []models.Incident
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}

	list := &IncidentList{Incidents: incidents}
	if len(incidents) > limit {
		list.Incidents = incidents[:limit]
		last := list.Incidents[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

func (r *repository) Resolve(ctx context.Context, incidentID uuid.UUID, resolution string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Incident{}).
		Where("id = ? AND status = ?", incidentID, enums.IncidentStatusOpen).
		Updates(map[string]any{
			"status":      enums.IncidentStatusResolved,
			"resolution":  resolution,
			"resolved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
