package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*OrderList, error)
	ListByRider(ctx context.Context, riderID uuid.UUID, params pagination.Params) (*OrderList, error)
	// UpdateStatus is a guarded compare-and-swap on the status column.
	// Returns false when the order was no longer in the expected status.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	AppendExcludedRider(ctx context.Context, orderID, riderID uuid.UUID) error
	IncrementDispatchAttempts(ctx context.Context, orderID uuid.UUID) (int, error)
	// FindInProgressAssignedBefore feeds late detection: in-progress
	// orders whose assignment is older than the cutoff.
	FindInProgressAssignedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	// FindStuckPending returns pending orders that exhausted their
	// dispatch attempt budget.
	FindStuckPending(ctx context.Context, minAttempts int) ([]models.Order, error)
}

// Filters narrows admin order listings.
type Filters struct {
	Status *enums.OrderStatus
}

// OrderList is one page of orders with the cursor for the next page.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}
