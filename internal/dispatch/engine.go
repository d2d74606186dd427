package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/geo"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/metrics"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// scoreLedger is the slice of the efficiency service the engine needs:
// ledger updates inside the window resolution transaction.
type scoreLedger interface {
	RecordAcceptanceTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID) (*efficiency.Snapshot, error)
	RecordRejectionTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID, penalized bool) (*efficiency.Snapshot, error)
}

// incidentOpener raises an operational incident when dispatch gives up
// on an order.
type incidentOpener interface {
	Open(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind, message string) (*models.Incident, error)
}

// offerLocker serializes dispatch per order across workers.
type offerLocker interface {
	AcquireOfferLock(ctx context.Context, orderID, owner string, ttl time.Duration) (bool, error)
	ReleaseOfferLock(ctx context.Context, orderID string) error
}

// Engine owns the decision windows and drives rider assignment.
type Engine interface {
	// AutoAssign offers the order to the best free candidate and opens
	// a decision window. Sequential policy: one rider at a time.
	AutoAssign(ctx context.Context, orderID uuid.UUID) (*Window, error)
	Accept(ctx context.Context, windowID, riderID uuid.UUID) (*models.Order, error)
	// Reject resolves the window against the rider. The returned bool
	// reports whether an efficiency penalty was applied.
	Reject(ctx context.Context, windowID, riderID uuid.UUID) (bool, error)
	// Expire times out a window. Safe to call repeatedly and safe to
	// race with a rider decision.
	Expire(ctx context.Context, windowID uuid.UUID) error
	ManualAssign(ctx context.Context, orderID, riderID uuid.UUID) (*models.Order, error)
	// OpenOffers returns the live windows currently offered to a rider.
	OpenOffers(ctx context.Context, riderID uuid.UUID) []*Window
	// SweepExpired expires every window past its deadline. Catch-up for
	// timers lost to a restart.
	SweepExpired(ctx context.Context) error
}

type engine struct {
	registry   *Registry
	orders     orders.Repository
	riders     riders.Repository
	offers     OfferRepository
	ledger     scoreLedger
	incidents  incidentOpener
	tx         txRunner
	outbox     outboxPublisher
	locks      offerLocker
	metrics    *metrics.DispatchMetrics
	logg       *logger.Logger
	cfg        config.DispatchConfig
	instanceID string

	// retryAfter defaults to time.AfterFunc; tests swap it to run
	// retries synchronously.
	retryAfter func(d time.Duration, fn func())
}

// NewEngine wires the dispatch engine.
func NewEngine(
	orderRepo orders.Repository,
	riderRepo riders.Repository,
	offerRepo OfferRepository,
	ledger scoreLedger,
	incidents incidentOpener,
	tx txRunner,
	publisher outboxPublisher,
	locks offerLocker,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
	cfg config.DispatchConfig,
) (Engine, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if riderRepo == nil {
		return nil, fmt.Errorf("rider repository required")
	}
	if offerRepo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("score ledger required")
	}
	if incidents == nil {
		return nil, fmt.Errorf("incident opener required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.OfferTTL <= 0 {
		return nil, fmt.Errorf("offer ttl must be positive")
	}
	if cfg.MaxAssignAttempts <= 0 {
		return nil, fmt.Errorf("max assign attempts must be positive")
	}
	return &engine{
		registry:   NewRegistry(),
		orders:     orderRepo,
		riders:     riderRepo,
		offers:     offerRepo,
		ledger:     ledger,
		incidents:  incidents,
		tx:         tx,
		outbox:     publisher,
		locks:      locks,
		metrics:    dispatchMetrics,
		logg:       logg,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		retryAfter: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}, nil
}

func (e *engine) AutoAssign(ctx context.Context, orderID uuid.UUID) (*Window, error) {
	return e.assign(ctx, orderID, "auto")
}

func (e *engine) assign(ctx context.Context, orderID uuid.UUID, trigger string) (*Window, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if e.locks != nil {
		acquired, err := e.locks.AcquireOfferLock(ctx, orderID.String(), e.instanceID, e.cfg.OfferLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already being dispatched")
		}
		defer func() {
			if err := e.locks.ReleaseOfferLock(context.WithoutCancel(ctx), orderID.String()); err != nil {
				e.logError(ctx, "release offer lock failed", err)
			}
		}()
	}
	if w := e.registry.ByOrder(orderID); w != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an open offer")
	}

	order, err := e.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s, not pending dispatch", order.Status))
	}

	attempts, err := e.orders.IncrementDispatchAttempts(ctx, orderID)
	if err != nil {
		return nil, err
	}

	excluded := excludedRiderIDs(order)
	candidates, err := e.riders.CandidatePool(ctx, excluded)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidate := candidates[i]
		claimed, err := e.riders.ClaimOrder(ctx, candidate.ID, orderID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		window, err := e.openWindow(ctx, order, candidate.ID)
		if err != nil {
			if releaseErr := e.riders.ReleaseOrder(ctx, candidate.ID, orderID); releaseErr != nil {
				e.logError(ctx, "release rider after failed offer", releaseErr)
			}
			return nil, err
		}
		e.metrics.IncOffersOpened(trigger)
		e.metrics.SetOpenWindows(e.registry.Len())
		return window, nil
	}

	return nil, e.handleNoCandidates(ctx, orderID, attempts)
}

func (e *engine) handleNoCandidates(ctx context.Context, orderID uuid.UUID, attempts int) error {
	if attempts >= e.cfg.MaxAssignAttempts {
		message := fmt.Sprintf("no rider accepted order after %d dispatch attempts", attempts)
		if _, err := e.incidents.Open(ctx, orderID, enums.IncidentKindDispatchFailure, message); err != nil {
			e.logError(ctx, "open dispatch incident", err)
		}
		return pkgerrors.New(pkgerrors.CodeUnavailable, "no riders available, dispatch attempts exhausted")
	}
	e.scheduleRetry(orderID)
	return pkgerrors.New(pkgerrors.CodeUnavailable, "no riders available")
}

func (e *engine) openWindow(ctx context.Context, order *models.Order, riderID uuid.UUID) (*Window, error) {
	window := newWindow(order.ID, riderID, e.cfg.OfferTTL, order.PreparationStartedAt)

	distance := geo.Distance(
		geo.LatLng{Lat: order.PickupLat, Lng: order.PickupLng},
		geo.LatLng{Lat: order.DeliveryLat, Lng: order.DeliveryLng},
	)
	estimated := geo.EstimateDeliveryMinutes(distance, geo.IsPeakTime(window.OfferedAt), order.Weather)

	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, txErr := e.offers.WithTx(tx).Create(ctx, &models.DeliveryOffer{
			ID:                   window.ID,
			OrderID:              order.ID,
			RiderID:              riderID,
			OfferedAt:            window.OfferedAt,
			ExpiresAt:            window.ExpiresAt,
			PreparationStartedAt: order.PreparationStartedAt,
			Outcome:              enums.OfferOutcomePending,
		})
		if txErr != nil {
			return txErr
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushNotification,
			AggregateType: enums.AggregateOffer,
			AggregateID:   window.ID,
			Version:       1,
			Data: payloads.DeliveryOfferEvent{
				OfferID:          window.ID,
				OrderID:          order.ID,
				RiderID:          riderID,
				RestaurantName:   order.RestaurantName,
				PickupAddress:    order.PickupAddress,
				DeliveryAddress:  order.DeliveryAddress,
				DistanceKm:       distance,
				EstimatedMinutes: estimated,
				ExpiresAt:        window.ExpiresAt,
				ExpiresInSeconds: int(e.cfg.OfferTTL.Seconds()),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	e.registry.add(window)
	e.retryAfter(e.cfg.OfferTTL, func() {
		if expireErr := e.Expire(context.Background(), window.ID); expireErr != nil {
			e.logError(context.Background(), "window expiry timer", expireErr)
		}
	})
	return window, nil
}

func (e *engine) Accept(ctx context.Context, windowID, riderID uuid.UUID) (*models.Order, error) {
	window, err := e.liveWindow(ctx, windowID, riderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := window.resolve(enums.OfferOutcomeAccepted, now); err != nil {
		return nil, e.loseResolve(ctx, window, err)
	}

	var order *models.Order
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := e.orders.WithTx(tx)
		current, txErr := orderRepo.Find(ctx, window.OrderID)
		if txErr != nil {
			return txErr
		}

		est := geo.EstimateDeliveryMinutes(
			geo.Distance(
				geo.LatLng{Lat: current.PickupLat, Lng: current.PickupLng},
				geo.LatLng{Lat: current.DeliveryLat, Lng: current.DeliveryLng},
			),
			geo.IsPeakTime(now),
			current.Weather,
		)
		swapped, txErr := orderRepo.UpdateStatus(ctx, window.OrderID,
			enums.OrderStatusPending, enums.OrderStatusInProgress, map[string]any{
				"assigned_rider_id": riderID,
				"assigned_at":       now,
				"estimated_minutes": est,
			})
		if txErr != nil {
			return txErr
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer available")
		}

		if _, txErr = e.ledger.RecordAcceptanceTx(ctx, tx, riderID); txErr != nil {
			return txErr
		}
		if _, txErr = e.offers.WithTx(tx).MarkResolved(ctx, windowID, enums.OfferOutcomeAccepted, false, now); txErr != nil {
			return txErr
		}

		order, txErr = orderRepo.Find(ctx, window.OrderID)
		if txErr != nil {
			return txErr
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushOrderStatusUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusUpdatedEvent{
				OrderID:    order.ID,
				Status:     order.Status,
				RiderID:    order.AssignedRiderID,
				OccurredAt: now,
			},
		})
	})
	if err != nil {
		// The order vanished under the accepted window. Free the rider
		// and archive the window as superseded; no ledger entry.
		e.releaseAndArchive(ctx, window, enums.OfferOutcomeSuperseded, false)
		e.finishWindow(windowID, enums.OfferOutcomeSuperseded)
		return nil, err
	}

	e.finishWindow(windowID, enums.OfferOutcomeAccepted)
	return order, nil
}

func (e *engine) Reject(ctx context.Context, windowID, riderID uuid.UUID) (bool, error) {
	window, err := e.liveWindow(ctx, windowID, riderID)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	if err := window.resolve(enums.OfferOutcomeRejected, now); err != nil {
		return false, e.loseResolve(ctx, window, err)
	}

	penalized := rejectionPenalized(window.PreparationStartedAt, now, e.cfg.PreparationGrace)
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, txErr := e.ledger.RecordRejectionTx(ctx, tx, riderID, penalized); txErr != nil {
			return txErr
		}
		if txErr := e.riders.WithTx(tx).ReleaseOrder(ctx, riderID, window.OrderID); txErr != nil {
			return txErr
		}
		if txErr := e.orders.WithTx(tx).AppendExcludedRider(ctx, window.OrderID, riderID); txErr != nil {
			return txErr
		}
		_, txErr := e.offers.WithTx(tx).MarkResolved(ctx, windowID, enums.OfferOutcomeRejected, penalized, now)
		return txErr
	})
	if err != nil {
		return false, err
	}

	e.finishWindow(windowID, enums.OfferOutcomeRejected)
	e.scheduleRetry(window.OrderID)
	return penalized, nil
}

func (e *engine) Expire(ctx context.Context, windowID uuid.UUID) error {
	window := e.registry.Get(windowID)
	if window == nil {
		return nil
	}

	now := time.Now().UTC()
	if err := window.resolve(enums.OfferOutcomeExpired, now); err != nil {
		// Already resolved by a rider decision or a concurrent sweep.
		return nil
	}

	// Letting an offer time out counts as a penalized rejection.
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, txErr := e.ledger.RecordRejectionTx(ctx, tx, window.RiderID, true); txErr != nil {
			return txErr
		}
		if txErr := e.riders.WithTx(tx).ReleaseOrder(ctx, window.RiderID, window.OrderID); txErr != nil {
			return txErr
		}
		if txErr := e.orders.WithTx(tx).AppendExcludedRider(ctx, window.OrderID, window.RiderID); txErr != nil {
			return txErr
		}
		_, txErr := e.offers.WithTx(tx).MarkResolved(ctx, windowID, enums.OfferOutcomeExpired, true, now)
		return txErr
	})
	if err != nil {
		return err
	}

	e.finishWindow(windowID, enums.OfferOutcomeExpired)
	e.scheduleRetry(window.OrderID)
	return nil
}

func (e *engine) ManualAssign(ctx context.Context, orderID, riderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and rider id are required")
	}

	claimed, err := e.riders.ClaimOrder(ctx, riderID, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "rider is not available for assignment")
	}

	// An admin assignment overrides any open offer for the order. The
	// offered rider keeps a clean ledger.
	now := time.Now().UTC()
	if open := e.registry.ByOrder(orderID); open != nil {
		if resolveErr := open.resolve(enums.OfferOutcomeSuperseded, now); resolveErr == nil {
			e.releaseAndArchive(ctx, open, enums.OfferOutcomeSuperseded, false)
			e.finishWindow(open.ID, enums.OfferOutcomeSuperseded)
		}
	}

	var order *models.Order
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := e.orders.WithTx(tx)
		current, txErr := orderRepo.Find(ctx, orderID)
		if txErr != nil {
			return txErr
		}
		est := geo.EstimateDeliveryMinutes(
			geo.Distance(
				geo.LatLng{Lat: current.PickupLat, Lng: current.PickupLng},
				geo.LatLng{Lat: current.DeliveryLat, Lng: current.DeliveryLng},
			),
			geo.IsPeakTime(now),
			current.Weather,
		)
		swapped, txErr := orderRepo.UpdateStatus(ctx, orderID,
			enums.OrderStatusPending, enums.OrderStatusInProgress, map[string]any{
				"assigned_rider_id": riderID,
				"assigned_at":       now,
				"estimated_minutes": est,
			})
		if txErr != nil {
			return txErr
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending assignment")
		}

		order, txErr = orderRepo.Find(ctx, orderID)
		if txErr != nil {
			return txErr
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushOrderStatusUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusUpdatedEvent{
				OrderID:    order.ID,
				Status:     order.Status,
				RiderID:    order.AssignedRiderID,
				OccurredAt: now,
			},
		})
	})
	if err != nil {
		if releaseErr := e.riders.ReleaseOrder(ctx, riderID, orderID); releaseErr != nil {
			e.logError(ctx, "release rider after failed manual assign", releaseErr)
		}
		return nil, err
	}

	e.metrics.IncOffersOpened("manual")
	return order, nil
}

func (e *engine) OpenOffers(ctx context.Context, riderID uuid.UUID) []*Window {
	return e.registry.ByRider(riderID)
}

func (e *engine) SweepExpired(ctx context.Context) error {
	var errs error
	for _, window := range e.registry.ExpiredBefore(time.Now().UTC()) {
		if err := e.Expire(ctx, window.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire window %s: %w", window.ID, err))
		}
	}
	return errs
}

// liveWindow fetches the window for a decision, falling back to the
// archive so a rider deciding on a long-dead offer gets the right
// terminal error instead of a 404.
func (e *engine) liveWindow(ctx context.Context, windowID, riderID uuid.UUID) (*Window, error) {
	if windowID == uuid.Nil || riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id and rider id are required")
	}
	window := e.registry.Get(windowID)
	if window == nil {
		offer, err := e.offers.Find(ctx, windowID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		if offer.RiderID != riderID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to another rider")
		}
		return nil, terminalError(offer.Outcome)
	}
	if window.RiderID != riderID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to another rider")
	}
	return window, nil
}

// loseResolve runs after a lost resolve race. A caller whose own
// deadline check flipped the window to expired still owes the expiry
// bookkeeping; the armed timer will then find the window terminal.
func (e *engine) loseResolve(ctx context.Context, window *Window, cause error) error {
	if cause == errDeadlineExpired {
		if err := e.expireResolved(ctx, window); err != nil {
			e.logError(ctx, "archive expired window", err)
		}
	}
	return cause
}

// expireResolved performs the expiry side effects for a window that was
// already flipped to expired by a deadline check inside resolve.
func (e *engine) expireResolved(ctx context.Context, window *Window) error {
	now := time.Now().UTC()
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, txErr := e.ledger.RecordRejectionTx(ctx, tx, window.RiderID, true); txErr != nil {
			return txErr
		}
		if txErr := e.riders.WithTx(tx).ReleaseOrder(ctx, window.RiderID, window.OrderID); txErr != nil {
			return txErr
		}
		if txErr := e.orders.WithTx(tx).AppendExcludedRider(ctx, window.OrderID, window.RiderID); txErr != nil {
			return txErr
		}
		_, txErr := e.offers.WithTx(tx).MarkResolved(ctx, window.ID, enums.OfferOutcomeExpired, true, now)
		return txErr
	})
	if err != nil {
		return err
	}
	e.finishWindow(window.ID, enums.OfferOutcomeExpired)
	e.scheduleRetry(window.OrderID)
	return nil
}

// releaseAndArchive frees the rider slot and archives the window with
// the given outcome, logging rather than failing on cleanup errors.
func (e *engine) releaseAndArchive(ctx context.Context, window *Window, outcome enums.OfferOutcome, penalty bool) {
	if err := e.riders.ReleaseOrder(ctx, window.RiderID, window.OrderID); err != nil {
		e.logError(ctx, "release rider slot", err)
	}
	if _, err := e.offers.MarkResolved(ctx, window.ID, outcome, penalty, time.Now().UTC()); err != nil {
		e.logError(ctx, "archive window outcome", err)
	}
}

func (e *engine) finishWindow(windowID uuid.UUID, outcome enums.OfferOutcome) {
	e.registry.remove(windowID)
	e.metrics.IncOutcome(string(outcome))
	e.metrics.SetOpenWindows(e.registry.Len())
}

func (e *engine) scheduleRetry(orderID uuid.UUID) {
	e.metrics.IncRetry()
	e.retryAfter(e.cfg.RetryDelay, func() {
		ctx := context.Background()
		if _, err := e.assign(ctx, orderID, "retry"); err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUnavailable {
				return
			}
			e.logError(ctx, "dispatch retry", err)
		}
	})
}

func (e *engine) logError(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	e.logg.Error(ctx, msg, err)
}

// rejectionPenalized applies the preparation grace rule: a rejection is
// penalized unless the kitchen has kept the order waiting past the
// grace period. An unknown preparation start always penalizes.
func rejectionPenalized(preparationStartedAt *time.Time, now time.Time, grace time.Duration) bool {
	if preparationStartedAt == nil {
		return true
	}
	return now.Before(preparationStartedAt.Add(grace))
}

func excludedRiderIDs(order *models.Order) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(order.ExcludedRiderIDs))
	for _, raw := range order.ExcludedRiderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
