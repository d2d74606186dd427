package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/metrics"
)

const (
	defaultReapLag   = 5 * time.Minute
	defaultReapBatch = 100
)

var errAlreadyResolved = errors.New("offer already resolved")

// Reaper recovers decision windows orphaned by an engine restart.
// Windows live in the engine's process memory; when that process dies,
// their archive rows stay pending forever and the offered riders stay
// claimed. The reaper resolves those rows with the expiry bookkeeping a
// live engine would have applied. The lag keeps it well behind any live
// engine's own timers, and the conditional MarkResolved makes a race
// with one harmless.
type Reaper struct {
	offers OfferRepository
	orders orders.Repository
	riders riders.Repository
	ledger scoreLedger
	tx     txRunner
	dm     *metrics.DispatchMetrics
	logg   *logger.Logger
	lag    time.Duration
	batch  int
}

// NewReaper wires the orphaned-window reaper.
func NewReaper(
	offerRepo OfferRepository,
	orderRepo orders.Repository,
	riderRepo riders.Repository,
	ledger scoreLedger,
	tx txRunner,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
	lag time.Duration,
) (*Reaper, error) {
	if offerRepo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if riderRepo == nil {
		return nil, fmt.Errorf("rider repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("score ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if lag <= 0 {
		lag = defaultReapLag
	}
	return &Reaper{
		offers: offerRepo,
		orders: orderRepo,
		riders: riderRepo,
		ledger: ledger,
		tx:     tx,
		dm:     dispatchMetrics,
		logg:   logg,
		lag:    lag,
		batch:  defaultReapBatch,
	}, nil
}

// Run sweeps on the given interval until the context is canceled.
// Sweep errors are logged, never fatal.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if _, err := r.SweepOnce(ctx); err != nil {
		r.logError(ctx, "orphaned offer sweep failed", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.logError(ctx, "orphaned offer sweep failed", err)
			}
		}
	}
}

// SweepOnce reaps one batch of orphaned pending offers and reports how
// many rows it resolved.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.lag)
	stale, err := r.offers.ListStalePending(ctx, cutoff, r.batch)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range stale {
		offer := stale[i]
		if err := r.reap(ctx, offer); err != nil {
			if errors.Is(err, errAlreadyResolved) {
				continue
			}
			r.logError(ctx, "reap orphaned offer", err)
			continue
		}
		reaped++
		r.dm.IncOutcome(string(enums.OfferOutcomeExpired))
		if r.logg != nil {
			fields := map[string]any{
				"offer_id":   offer.ID.String(),
				"order_id":   offer.OrderID.String(),
				"rider_id":   offer.RiderID.String(),
				"expired_at": offer.ExpiresAt,
			}
			r.logg.Warn(r.logg.WithFields(ctx, fields), "reaped orphaned delivery offer")
		}
	}
	return reaped, nil
}

// reap applies the expiry bookkeeping for one orphaned offer. A timed
// out offer counts as a penalized rejection, same as a live expiry.
func (r *Reaper) reap(ctx context.Context, offer models.DeliveryOffer) error {
	now := time.Now().UTC()
	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		swapped, err := r.offers.WithTx(tx).MarkResolved(ctx, offer.ID, enums.OfferOutcomeExpired, true, now)
		if err != nil {
			return err
		}
		if !swapped {
			return errAlreadyResolved
		}
		if _, err := r.ledger.RecordRejectionTx(ctx, tx, offer.RiderID, true); err != nil {
			return err
		}
		if err := r.riders.WithTx(tx).ReleaseOrder(ctx, offer.RiderID, offer.OrderID); err != nil {
			return err
		}
		if err := r.orders.WithTx(tx).AppendExcludedRider(ctx, offer.OrderID, offer.RiderID); err != nil {
			return err
		}
		return nil
	})
}

func (r *Reaper) logError(ctx context.Context, msg string, err error) {
	if r.logg == nil {
		return
	}
	r.logg.Error(ctx, msg, err)
}
