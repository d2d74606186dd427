package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

func newTestReaper(t *testing.T, offers *fakeOffers, orderRepo *fakeOrders, riderRepo *fakeRiders, ledger *fakeLedger) *Reaper {
	t.Helper()
	reaper, err := NewReaper(offers, orderRepo, riderRepo, ledger, fakeTxRunner{}, nil, nil, time.Minute)
	require.NoError(t, err)
	return reaper
}

func TestReaperResolvesOrphanedOffer(t *testing.T) {
	orderID := uuid.New()
	riderID := uuid.New()
	orderRepo := newFakeOrders(&models.Order{ID: orderID, Status: enums.OrderStatusPending})
	riderRepo := newFakeRiders(models.Rider{ID: riderID, CurrentOrderID: &orderID})
	ledger := &fakeLedger{}

	offers := newFakeOffers()
	stale := &models.DeliveryOffer{
		ID:        uuid.New(),
		OrderID:   orderID,
		RiderID:   riderID,
		OfferedAt: time.Now().UTC().Add(-10 * time.Minute),
		ExpiresAt: time.Now().UTC().Add(-10 * time.Minute),
		Outcome:   enums.OfferOutcomePending,
	}
	offers.rows[stale.ID] = stale

	reaper := newTestReaper(t, offers, orderRepo, riderRepo, ledger)
	reaped, err := reaper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	archived, err := offers.Find(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferOutcomeExpired, archived.Outcome)
	assert.True(t, archived.PenaltyApplied)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, riderID, ledger.entries[0].riderID)
	assert.True(t, ledger.entries[0].penalized)

	require.Len(t, riderRepo.released, 1)
	assert.Equal(t, riderID, riderRepo.released[0])

	order, err := orderRepo.Find(context.Background(), orderID)
	require.NoError(t, err)
	assert.Contains(t, order.ExcludedRiderIDs, riderID.String())
}

func TestReaperSkipsOffersInsideTheLag(t *testing.T) {
	offers := newFakeOffers()
	fresh := &models.DeliveryOffer{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		RiderID:   uuid.New(),
		OfferedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(-5 * time.Second),
		Outcome:   enums.OfferOutcomePending,
	}
	offers.rows[fresh.ID] = fresh
	ledger := &fakeLedger{}

	reaper := newTestReaper(t, offers, newFakeOrders(), newFakeRiders(), ledger)
	reaped, err := reaper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reaped)
	assert.Empty(t, ledger.entries)

	unchanged, err := offers.Find(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferOutcomePending, unchanged.Outcome)
}

func TestReaperSkipsRowsResolvedUnderneathIt(t *testing.T) {
	offers := newFakeOffers()
	stale := &models.DeliveryOffer{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		RiderID:   uuid.New(),
		ExpiresAt: time.Now().UTC().Add(-10 * time.Minute),
		Outcome:   enums.OfferOutcomePending,
	}
	offers.rows[stale.ID] = stale
	ledger := &fakeLedger{}
	reaper := newTestReaper(t, offers, newFakeOrders(), newFakeRiders(), ledger)

	// A concurrent engine resolves the row between the listing and the
	// reap transaction.
	resolvedAt := time.Now().UTC()
	ok, err := offers.MarkResolved(context.Background(), stale.ID, enums.OfferOutcomeRejected, false, resolvedAt)
	require.NoError(t, err)
	require.True(t, ok)
	// Reap from a stale snapshot of the row, as a sweep that listed it
	// before the race would.
	errReap := reaper.reap(context.Background(), *stale)
	require.ErrorIs(t, errReap, errAlreadyResolved)
	assert.Empty(t, ledger.entries)

	unchanged, findErr := offers.Find(context.Background(), stale.ID)
	require.NoError(t, findErr)
	assert.Equal(t, enums.OfferOutcomeRejected, unchanged.Outcome)
}
