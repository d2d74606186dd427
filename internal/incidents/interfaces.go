package incidents

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

// Repository defines persistence operations for the incidents table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, incident *models.Incident) (*models.Incident, error)
	Find(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error)
	// FindOpenByOrderKind returns the open incident for an order and
	// kind, if one exists.
	FindOpenByOrderKind(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind) (*models.Incident, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*IncidentList, error)
	Resolve(ctx context.Context, incidentID uuid.UUID, resolution string) (bool, error)
}

// Filters narrows admin incident listings.
type Filters struct {
	Status *enums.IncidentStatus
	Kind   *enums.IncidentKind
}

// IncidentList is one page of incidents with the cursor for the next page.
type IncidentList struct {
	Incidents  []models.Incident
	NextCursor string
}
