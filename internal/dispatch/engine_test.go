package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

type fakeOrders struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*models.Order
	attempts map[uuid.UUID]int
}

func newFakeOrders(rows ...*models.Order) *fakeOrders {
	f := &fakeOrders{rows: map[uuid.UUID]*models.Order{}, attempts: map[uuid.UUID]int{}}
	for _, row := range rows {
		f.rows[row.ID] = row
	}
	return f
}

func (f *fakeOrders) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrders) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[order.ID] = order
	return order, nil
}

func (f *fakeOrders) Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.rows[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrders) List(ctx context.Context, params pagination.Params, filters orders.Filters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (f *fakeOrders) ListByRider(ctx context.Context, riderID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.rows[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	if riderID, ok := updates["assigned_rider_id"].(uuid.UUID); ok {
		order.AssignedRiderID = &riderID
	}
	if at, ok := updates["assigned_at"].(time.Time); ok {
		order.AssignedAt = &at
	}
	if est, ok := updates["estimated_minutes"].(int); ok {
		order.EstimatedMinutes = &est
	}
	return true, nil
}

func (f *fakeOrders) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeOrders) AppendExcludedRider(ctx context.Context, orderID, riderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.rows[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.ExcludedRiderIDs = append(order.ExcludedRiderIDs, riderID.String())
	return nil
}

func (f *fakeOrders) IncrementDispatchAttempts(ctx context.Context, orderID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[orderID]++
	return f.attempts[orderID], nil
}

func (f *fakeOrders) FindInProgressAssignedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrders) FindStuckPending(ctx context.Context, minAttempts int) ([]models.Order, error) {
	return nil, nil
}

type fakeRiders struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Rider
	pool      []models.Rider
	released  []uuid.UUID
	claimFail bool
}

func newFakeRiders(pool ...models.Rider) *fakeRiders {
	f := &fakeRiders{rows: map[uuid.UUID]*models.Rider{}, pool: pool}
	for i := range pool {
		rider := pool[i]
		f.rows[rider.ID] = &rider
	}
	return f
}

func (f *fakeRiders) WithTx(tx *gorm.DB) riders.Repository { return f }

func (f *fakeRiders) Create(ctx context.Context, rider *models.Rider) (*models.Rider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rider.ID] = rider
	return rider, nil
}

func (f *fakeRiders) Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rider, ok := f.rows[riderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rider, nil
}

func (f *fakeRiders) List(ctx context.Context, params pagination.Params) (*riders.RiderList, error) {
	return &riders.RiderList{}, nil
}

func (f *fakeRiders) CandidatePool(ctx context.Context, excluded []uuid.UUID) ([]models.Rider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skip := map[uuid.UUID]bool{}
	for _, id := range excluded {
		skip[id] = true
	}
	var available []models.Rider
	for _, candidate := range f.pool {
		rider := f.rows[candidate.ID]
		if skip[candidate.ID] || rider.CurrentOrderID != nil {
			continue
		}
		available = append(available, *rider)
	}
	return available, nil
}

func (f *fakeRiders) ClaimOrder(ctx context.Context, riderID, orderID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimFail {
		return false, nil
	}
	rider, ok := f.rows[riderID]
	if !ok || rider.CurrentOrderID != nil {
		return false, nil
	}
	rider.CurrentOrderID = &orderID
	return true, nil
}

func (f *fakeRiders) ReleaseOrder(ctx context.Context, riderID, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rider, ok := f.rows[riderID]
	if !ok {
		return nil
	}
	if rider.CurrentOrderID != nil && *rider.CurrentOrderID == orderID {
		rider.CurrentOrderID = nil
		f.released = append(f.released, riderID)
	}
	return nil
}

func (f *fakeRiders) SetPaused(ctx context.Context, riderID uuid.UUID, paused bool) error {
	return nil
}

func (f *fakeRiders) UpdateBankAccount(ctx context.Context, riderID uuid.UUID, account riders.BankAccount) error {
	return nil
}

type fakeOffers struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.DeliveryOffer
}

func newFakeOffers() *fakeOffers {
	return &fakeOffers{rows: map[uuid.UUID]*models.DeliveryOffer{}}
}

func (f *fakeOffers) WithTx(tx *gorm.DB) OfferRepository { return f }

func (f *fakeOffers) Create(ctx context.Context, offer *models.DeliveryOffer) (*models.DeliveryOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[offer.ID] = offer
	return offer, nil
}

func (f *fakeOffers) Find(ctx context.Context, offerID uuid.UUID) (*models.DeliveryOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.rows[offerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *offer
	return &copied, nil
}

func (f *fakeOffers) MarkResolved(ctx context.Context, offerID uuid.UUID, outcome enums.OfferOutcome, penaltyApplied bool, resolvedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.rows[offerID]
	if !ok || offer.Outcome != enums.OfferOutcomePending {
		return false, nil
	}
	offer.Outcome = outcome
	offer.PenaltyApplied = penaltyApplied
	offer.ResolvedAt = &resolvedAt
	return true, nil
}

func (f *fakeOffers) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOffer, error) {
	return nil, nil
}

func (f *fakeOffers) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []models.DeliveryOffer
	for _, offer := range f.rows {
		if offer.Outcome == enums.OfferOutcomePending && offer.ExpiresAt.Before(cutoff) {
			stale = append(stale, *offer)
		}
	}
	return stale, nil
}

type ledgerEntry struct {
	riderID   uuid.UUID
	accepted  bool
	penalized bool
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledgerEntry
}

func (f *fakeLedger) RecordAcceptanceTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID) (*efficiency.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, ledgerEntry{riderID: riderID, accepted: true})
	return &efficiency.Snapshot{RiderID: riderID}, nil
}

func (f *fakeLedger) RecordRejectionTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID, penalized bool) (*efficiency.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, ledgerEntry{riderID: riderID, penalized: penalized})
	return &efficiency.Snapshot{RiderID: riderID}, nil
}

type fakeIncidents struct {
	mu     sync.Mutex
	opened []enums.IncidentKind
}

func (f *fakeIncidents) Open(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind, message string) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, kind)
	return &models.Incident{ID: uuid.New(), OrderID: &orderID, Kind: kind}, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (f *fakePublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) byType(eventType enums.PushEventType) []outbox.DomainEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []outbox.DomainEvent
	for _, event := range f.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		OfferTTL:          30 * time.Second,
		PreparationGrace:  10 * time.Minute,
		MaxAssignAttempts: 3,
		RetryDelay:        5 * time.Second,
		OfferLockTTL:      45 * time.Second,
	}
}

type engineFixture struct {
	engine    *engine
	orders    *fakeOrders
	riders    *fakeRiders
	offers    *fakeOffers
	ledger    *fakeLedger
	incidents *fakeIncidents
	publisher *fakePublisher
	retries   *[]func()
}

func newEngineFixture(t *testing.T, orderRows []*models.Order, pool []models.Rider) *engineFixture {
	t.Helper()

	orderRepo := newFakeOrders(orderRows...)
	riderRepo := newFakeRiders(pool...)
	offerRepo := newFakeOffers()
	ledger := &fakeLedger{}
	incidents := &fakeIncidents{}
	publisher := &fakePublisher{}

	eng, err := NewEngine(orderRepo, riderRepo, offerRepo, ledger, incidents,
		fakeTxRunner{}, publisher, nil, nil, nil, testDispatchConfig())
	if err != nil {
		t.Fatalf("unexpected engine error: %v", err)
	}

	// Capture retries and timers instead of arming real clocks.
	var retries []func()
	impl := eng.(*engine)
	impl.retryAfter = func(d time.Duration, fn func()) {
		retries = append(retries, fn)
	}
	return &engineFixture{
		engine:    impl,
		orders:    orderRepo,
		riders:    riderRepo,
		offers:    offerRepo,
		ledger:    ledger,
		incidents: incidents,
		publisher: publisher,
		retries:   &retries,
	}
}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		RestaurantName: "Harbour Fish Bar",
		PickupLat:      50.7192,
		PickupLng:      -1.8808,
		PickupAddress:  "12 Pier Approach, Bournemouth",
		DeliveryLat:    50.7225,
		DeliveryLng:    -1.8790,
		DeliveryAddress: "4 Old Christchurch Rd, Bournemouth",
		ValueCents:     2350,
		Currency:       "GBP",
		Status:         enums.OrderStatusPending,
		Weather:        enums.WeatherNormal,
	}
}

func freeRider(name string) models.Rider {
	return models.Rider{ID: uuid.New(), Name: name, IsActive: true, DocumentsVerified: true}
}

func TestEngine_AutoAssignOpensWindow(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("First Pick")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}
	if window.RiderID != rider.ID || window.OrderID != order.ID {
		t.Fatalf("window bound to wrong parties: %+v", window)
	}
	if fx.engine.registry.Get(window.ID) == nil {
		t.Fatal("window not registered")
	}

	claimed, _ := fx.riders.Find(context.Background(), rider.ID)
	if claimed.CurrentOrderID == nil || *claimed.CurrentOrderID != order.ID {
		t.Fatal("rider slot not claimed")
	}

	archived, err := fx.offers.Find(context.Background(), window.ID)
	if err != nil {
		t.Fatalf("offer row missing: %v", err)
	}
	if archived.Outcome != enums.OfferOutcomePending {
		t.Fatalf("expected pending archive row, got %s", archived.Outcome)
	}
	if got := fx.publisher.byType(enums.PushNotification); len(got) != 1 {
		t.Fatalf("expected one offer push, got %d", len(got))
	}
	// One armed expiry timer, no retries.
	if len(*fx.retries) != 1 {
		t.Fatalf("expected the expiry timer only, got %d callbacks", len(*fx.retries))
	}
}

func TestEngine_AutoAssignSkipsBusyRider(t *testing.T) {
	order := pendingOrder()
	busy := freeRider("Busy")
	other := uuid.New()
	busy.CurrentOrderID = &other
	free := freeRider("Free")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{busy, free})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}
	if window.RiderID != free.ID {
		t.Fatal("expected the free rider to get the offer")
	}
}

func TestEngine_AutoAssignNoRiders(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, []*models.Order{order}, nil)

	_, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(*fx.retries) != 1 {
		t.Fatalf("expected a scheduled retry, got %d", len(*fx.retries))
	}
	if len(fx.incidents.opened) != 0 {
		t.Fatal("incident opened before attempts exhausted")
	}
}

func TestEngine_AutoAssignExhaustedOpensIncident(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, []*models.Order{order}, nil)

	for i := 0; i < 3; i++ {
		_, err := fx.engine.AutoAssign(context.Background(), order.ID)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnavailable {
			t.Fatalf("attempt %d: expected unavailable, got %v", i+1, err)
		}
	}
	if len(fx.incidents.opened) != 1 || fx.incidents.opened[0] != enums.IncidentKindDispatchFailure {
		t.Fatalf("expected one dispatch_failure incident, got %v", fx.incidents.opened)
	}
	// Attempts one and two retry; the third gives up.
	if len(*fx.retries) != 2 {
		t.Fatalf("expected 2 retries, got %d", len(*fx.retries))
	}
}

func TestEngine_AcceptAssignsOrder(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("Acceptor")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}

	assigned, err := fx.engine.Accept(context.Background(), window.ID, rider.ID)
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if assigned.Status != enums.OrderStatusInProgress {
		t.Fatalf("expected in_progress, got %s", assigned.Status)
	}
	if assigned.AssignedRiderID == nil || *assigned.AssignedRiderID != rider.ID {
		t.Fatal("rider not recorded on the order")
	}
	if assigned.EstimatedMinutes == nil || *assigned.EstimatedMinutes <= 0 {
		t.Fatal("estimated minutes not frozen at assignment")
	}

	if len(fx.ledger.entries) != 1 || !fx.ledger.entries[0].accepted {
		t.Fatalf("expected one acceptance ledger entry, got %+v", fx.ledger.entries)
	}
	archived, _ := fx.offers.Find(context.Background(), window.ID)
	if archived.Outcome != enums.OfferOutcomeAccepted {
		t.Fatalf("expected accepted archive, got %s", archived.Outcome)
	}
	if fx.engine.registry.Len() != 0 {
		t.Fatal("window still live after accept")
	}
	if got := fx.publisher.byType(enums.PushOrderStatusUpdated); len(got) != 1 {
		t.Fatalf("expected one status push, got %d", len(got))
	}
}

func TestEngine_AcceptWrongRider(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("Rightful")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}

	_, err = fx.engine.Accept(context.Background(), window.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if window.Outcome() != enums.OfferOutcomePending {
		t.Fatal("window resolved by the wrong rider")
	}
}

func TestEngine_RejectGracePeriod(t *testing.T) {
	tests := []struct {
		name          string
		prepStarted   *time.Time
		wantPenalized bool
	}{
		{name: "inside grace", prepStarted: minutesAgo(9), wantPenalized: true},
		{name: "past grace", prepStarted: minutesAgo(11), wantPenalized: false},
		{name: "unknown preparation start", prepStarted: nil, wantPenalized: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := pendingOrder()
			order.PreparationStartedAt = tc.prepStarted
			rider := freeRider("Decider")
			fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

			window, err := fx.engine.AutoAssign(context.Background(), order.ID)
			if err != nil {
				t.Fatalf("AutoAssign error: %v", err)
			}

			penalized, err := fx.engine.Reject(context.Background(), window.ID, rider.ID)
			if err != nil {
				t.Fatalf("Reject error: %v", err)
			}
			if penalized != tc.wantPenalized {
				t.Fatalf("penalized = %v, want %v", penalized, tc.wantPenalized)
			}
			if len(fx.ledger.entries) != 1 || fx.ledger.entries[0].penalized != tc.wantPenalized {
				t.Fatalf("ledger entries %+v", fx.ledger.entries)
			}

			// Rider freed and excluded from the next attempt.
			freed, _ := fx.riders.Find(context.Background(), rider.ID)
			if freed.CurrentOrderID != nil {
				t.Fatal("rider slot not released")
			}
			updated, _ := fx.orders.Find(context.Background(), order.ID)
			if len(updated.ExcludedRiderIDs) != 1 {
				t.Fatal("rider not excluded after rejection")
			}
		})
	}
}

func TestEngine_ExpireIsIdempotent(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("Sleeper")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}

	if err := fx.engine.Expire(context.Background(), window.ID); err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if err := fx.engine.Expire(context.Background(), window.ID); err != nil {
		t.Fatalf("second Expire error: %v", err)
	}

	if len(fx.ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(fx.ledger.entries))
	}
	if !fx.ledger.entries[0].penalized {
		t.Fatal("expiry should be a penalized rejection")
	}
	archived, _ := fx.offers.Find(context.Background(), window.ID)
	if archived.Outcome != enums.OfferOutcomeExpired || !archived.PenaltyApplied {
		t.Fatalf("unexpected archive state %+v", archived)
	}
}

func TestEngine_AcceptRacesExpire(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("Racer")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var acceptErr error
	go func() {
		defer wg.Done()
		_, acceptErr = fx.engine.Accept(context.Background(), window.ID, rider.ID)
	}()
	go func() {
		defer wg.Done()
		_ = fx.engine.Expire(context.Background(), window.ID)
	}()
	wg.Wait()

	if len(fx.ledger.entries) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(fx.ledger.entries))
	}
	entry := fx.ledger.entries[0]
	finalOrder, _ := fx.orders.Find(context.Background(), order.ID)
	if entry.accepted {
		if acceptErr != nil {
			t.Fatalf("accept won the race but returned %v", acceptErr)
		}
		if finalOrder.Status != enums.OrderStatusInProgress {
			t.Fatalf("accept won but order is %s", finalOrder.Status)
		}
	} else {
		if acceptErr == nil {
			t.Fatal("expiry won the race but accept reported success")
		}
		if finalOrder.Status != enums.OrderStatusPending {
			t.Fatalf("expiry won but order is %s", finalOrder.Status)
		}
	}
	if fx.engine.registry.Len() != 0 {
		t.Fatal("window survived the race")
	}
}

func TestEngine_ManualAssignSupersedesOpenWindow(t *testing.T) {
	order := pendingOrder()
	offered := freeRider("Offered")
	chosen := freeRider("Chosen")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{offered, chosen})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}
	if window.RiderID != offered.ID {
		t.Fatal("expected the first rider to be offered")
	}

	assigned, err := fx.engine.ManualAssign(context.Background(), order.ID, chosen.ID)
	if err != nil {
		t.Fatalf("ManualAssign error: %v", err)
	}
	if assigned.AssignedRiderID == nil || *assigned.AssignedRiderID != chosen.ID {
		t.Fatal("order not assigned to the chosen rider")
	}

	// The superseded rider is freed and keeps a clean ledger.
	freed, _ := fx.riders.Find(context.Background(), offered.ID)
	if freed.CurrentOrderID != nil {
		t.Fatal("superseded rider still holds the order")
	}
	if len(fx.ledger.entries) != 0 {
		t.Fatalf("supersede touched the ledger: %+v", fx.ledger.entries)
	}
	archived, _ := fx.offers.Find(context.Background(), window.ID)
	if archived.Outcome != enums.OfferOutcomeSuperseded {
		t.Fatalf("expected superseded archive, got %s", archived.Outcome)
	}
}

func TestEngine_ManualAssignBusyRider(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("Occupied")
	otherOrder := uuid.New()
	rider.CurrentOrderID = &otherOrder
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	_, err := fx.engine.ManualAssign(context.Background(), order.ID, rider.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for busy rider, got %v", err)
	}
}

func TestEngine_SweepExpired(t *testing.T) {
	order := pendingOrder()
	rider := freeRider("Slow")
	fx := newEngineFixture(t, []*models.Order{order}, []models.Rider{rider})

	window, err := fx.engine.AutoAssign(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("AutoAssign error: %v", err)
	}
	// Force the deadline into the past.
	window.ExpiresAt = time.Now().UTC().Add(-time.Second)

	if err := fx.engine.SweepExpired(context.Background()); err != nil {
		t.Fatalf("SweepExpired error: %v", err)
	}
	if fx.engine.registry.Len() != 0 {
		t.Fatal("expired window survived the sweep")
	}
	if len(fx.ledger.entries) != 1 || !fx.ledger.entries[0].penalized {
		t.Fatalf("sweep ledger entries %+v", fx.ledger.entries)
	}
}

func minutesAgo(minutes int) *time.Time {
	at := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
	return &at
}
