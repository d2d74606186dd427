package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

// OfferRepository archives decision windows in the delivery_offers
// table. A pending row is written when the window opens and flipped to
// its terminal outcome exactly once.
type OfferRepository interface {
	WithTx(tx *gorm.DB) OfferRepository
	Create(ctx context.Context, offer *models.DeliveryOffer) (*models.DeliveryOffer, error)
	Find(ctx context.Context, offerID uuid.UUID) (*models.DeliveryOffer, error)
	// MarkResolved flips a pending row to a terminal outcome. Returns
	// false when the row was already terminal.
	MarkResolved(ctx context.Context, offerID uuid.UUID, outcome enums.OfferOutcome, penaltyApplied bool, resolvedAt time.Time) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOffer, error)
	// ListStalePending returns pending rows whose deadline passed before
	// the cutoff. A live engine expires its own windows within seconds,
	// so anything past a generous cutoff was orphaned by a restart.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryOffer, error)
}
