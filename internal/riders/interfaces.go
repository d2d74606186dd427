package riders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

// Repository defines persistence operations for the riders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rider *models.Rider) (*models.Rider, error)
	Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
	List(ctx context.Context, params pagination.Params) (*RiderList, error)
	// CandidatePool returns free, verified, active, unpaused riders not in
	// the excluded set, best candidate first.
	CandidatePool(ctx context.Context, excluded []uuid.UUID) ([]models.Rider, error)
	// ClaimOrder conditionally sets current_order_id from NULL. Returns
	// false when the rider is busy, inactive, paused or unverified.
	ClaimOrder(ctx context.Context, riderID, orderID uuid.UUID) (bool, error)
	// ReleaseOrder clears current_order_id only if it still points at
	// orderID, and restamps available_since.
	ReleaseOrder(ctx context.Context, riderID, orderID uuid.UUID) error
	SetPaused(ctx context.Context, riderID uuid.UUID, paused bool) error
	UpdateBankAccount(ctx context.Context, riderID uuid.UUID, account BankAccount) error
}

// RiderList is one page of riders with the cursor for the next page.
type RiderList struct {
	Riders     []models.Rider
	NextCursor string
}

// BankAccount holds UK bank details for weekly payouts.
type BankAccount struct {
	HolderName    string
	AccountNumber string
	SortCode      string
	BankName      string
}
