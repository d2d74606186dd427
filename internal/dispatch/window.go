package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
)

// Window is a live decision window: one offer to one rider with a
// deadline. Windows are in-memory state owned by the engine; terminal
// outcomes are archived to the delivery_offers table.
type Window struct {
	ID                   uuid.UUID
	OrderID              uuid.UUID
	RiderID              uuid.UUID
	OfferedAt            time.Time
	ExpiresAt            time.Time
	PreparationStartedAt *time.Time

	mu         sync.Mutex
	outcome    enums.OfferOutcome
	resolvedAt time.Time
}

func newWindow(orderID, riderID uuid.UUID, ttl time.Duration, preparationStartedAt *time.Time) *Window {
	now := time.Now().UTC()
	return &Window{
		ID:                   uuid.New(),
		OrderID:              orderID,
		RiderID:              riderID,
		OfferedAt:            now,
		ExpiresAt:            now.Add(ttl),
		PreparationStartedAt: preparationStartedAt,
		outcome:              enums.OfferOutcomePending,
	}
}

// Outcome returns the window's current outcome.
func (w *Window) Outcome() enums.OfferOutcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// ExpiresIn returns the remaining decision time, floored at zero.
func (w *Window) ExpiresIn(now time.Time) time.Duration {
	remaining := w.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// errDeadlineExpired is returned to the caller whose own resolve
// attempt flipped the window to expired. That caller owes the expiry
// bookkeeping; any later caller sees a plain terminal error.
var errDeadlineExpired = pkgerrors.New(pkgerrors.CodeGone, "decision window has expired")

// resolve is the single transition point for a window. Exactly one
// caller wins the race to a terminal outcome; every other caller gets
// a terminal error describing how it lost.
func (w *Window) resolve(to enums.OfferOutcome, now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.outcome != enums.OfferOutcomePending {
		return terminalError(w.outcome)
	}
	// A decision arriving after the deadline loses to the expiry even
	// if the expiry timer has not fired yet.
	if to != enums.OfferOutcomeExpired && !now.Before(w.ExpiresAt) {
		w.outcome = enums.OfferOutcomeExpired
		w.resolvedAt = now
		return errDeadlineExpired
	}
	w.outcome = to
	w.resolvedAt = now
	return nil
}

func terminalError(outcome enums.OfferOutcome) error {
	if outcome == enums.OfferOutcomeExpired {
		return pkgerrors.New(pkgerrors.CodeGone, "decision window has expired")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "decision window already resolved")
}

// Registry indexes live windows by id and by order. At most one open
// window exists per order.
type Registry struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Window
	byOrder map[uuid.UUID]*Window
}

// NewRegistry builds an empty window registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    map[uuid.UUID]*Window{},
		byOrder: map[uuid.UUID]*Window{},
	}
}

func (r *Registry) add(w *Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[w.ID] = w
	r.byOrder[w.OrderID] = w
}

func (r *Registry) remove(windowID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[windowID]
	if !ok {
		return
	}
	delete(r.byID, windowID)
	if current, ok := r.byOrder[w.OrderID]; ok && current.ID == windowID {
		delete(r.byOrder, w.OrderID)
	}
}

// Get returns the live window with the given id, or nil.
func (r *Registry) Get(windowID uuid.UUID) *Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[windowID]
}

// ByOrder returns the live window for an order, or nil.
func (r *Registry) ByOrder(orderID uuid.UUID) *Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byOrder[orderID]
}

// ByRider returns the live windows offered to a rider.
func (r *Registry) ByRider(riderID uuid.UUID) []*Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var windows []*Window
	for _, w := range r.byID {
		if w.RiderID == riderID {
			windows = append(windows, w)
		}
	}
	return windows
}

// ExpiredBefore returns live windows whose deadline passed before now.
func (r *Registry) ExpiredBefore(now time.Time) []*Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var windows []*Window
	for _, w := range r.byID {
		if !now.Before(w.ExpiresAt) {
			windows = append(windows, w)
		}
	}
	return windows
}

// Len returns how many windows are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
