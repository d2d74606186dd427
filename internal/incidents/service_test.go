package incidents

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn  func(incident *models.Incident) (*models.Incident, error)
	open      map[string]*models.Incident
	incidents map[uuid.UUID]*models.Incident
	resolveFn func(incidentID uuid.UUID, resolution string) (bool, error)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		open:      map[string]*models.Incident{},
		incidents: map[uuid.UUID]*models.Incident{},
	}
}

func openKey(orderID uuid.UUID, kind enums.IncidentKind) string {
	return orderID.String() + "/" + string(kind)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, incident *models.Incident) (*models.Incident, error) {
	if f.createFn != nil {
		return f.createFn(incident)
	}
	f.incidents[incident.ID] = incident
	f.open[openKey(*incident.OrderID, incident.Kind)] = incident
	return incident, nil
}

func (f *fakeRepository) Find(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error) {
	incident, ok := f.incidents[incidentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return incident, nil
}

func (f *fakeRepository) FindOpenByOrderKind(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind) (*models.Incident, error) {
	incident, ok := f.open[openKey(orderID, kind)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return incident, nil
}

func (f *fakeRepository) List(ctx context.Context, params pagination.Params, filters Filters) (*IncidentList, error) {
	return &IncidentList{}, nil
}

func (f *fakeRepository) Resolve(ctx context.Context, incidentID uuid.UUID, resolution string) (bool, error) {
	if f.resolveFn != nil {
		return f.resolveFn(incidentID, resolution)
	}
	incident, ok := f.incidents[incidentID]
	if !ok || incident.Status != enums.IncidentStatusOpen {
		return false, nil
	}
	incident.Status = enums.IncidentStatusResolved
	incident.Resolution = &resolution
	return true, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePublisher struct {
	events []outbox.DomainEvent
}

func (f *fakePublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newIncidentService(t *testing.T, repo Repository, publisher *fakePublisher) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, publisher)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_OpenEmitsAlert(t *testing.T) {
	repo := newFakeRepository()
	publisher := &fakePublisher{}
	svc := newIncidentService(t, repo, publisher)

	orderID := uuid.New()
	incident, err := svc.Open(context.Background(), orderID, enums.IncidentKindDispatchFailure, "no rider accepted after 3 attempts")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if incident.Status != enums.IncidentStatusOpen {
		t.Fatalf("expected open incident, got %s", incident.Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.EventType != enums.PushSystemAlert {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	alert, ok := event.Data.(payloads.SystemAlertEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if alert.Severity != "critical" || *alert.OrderID != orderID {
		t.Fatalf("unexpected alert payload %+v", alert)
	}
}

func TestService_OpenIsIdempotentPerOrderAndKind(t *testing.T) {
	repo := newFakeRepository()
	publisher := &fakePublisher{}
	svc := newIncidentService(t, repo, publisher)

	orderID := uuid.New()
	first, err := svc.Open(context.Background(), orderID, enums.IncidentKindLateOrder, "running 12 minutes behind")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	repo.createFn = func(incident *models.Incident) (*models.Incident, error) {
		return nil, errors.New(`duplicate key value violates unique constraint "ux_incidents_order_kind_open"`)
	}
	second, err := svc.Open(context.Background(), orderID, enums.IncidentKindLateOrder, "running 15 minutes behind")
	if err != nil {
		t.Fatalf("second Open error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing incident returned, got %s and %s", first.ID, second.ID)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected a single alert, got %d", len(publisher.events))
	}
}

func TestService_OpenValidation(t *testing.T) {
	svc := newIncidentService(t, newFakeRepository(), &fakePublisher{})

	if _, err := svc.Open(context.Background(), uuid.Nil, enums.IncidentKindLateOrder, "msg"); err == nil {
		t.Fatal("expected error for missing order id")
	}
	if _, err := svc.Open(context.Background(), uuid.New(), enums.IncidentKind("bogus"), "msg"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := svc.Open(context.Background(), uuid.New(), enums.IncidentKindLateOrder, "  "); err == nil {
		t.Fatal("expected error for blank message")
	}
}

func TestService_Resolve(t *testing.T) {
	repo := newFakeRepository()
	svc := newIncidentService(t, repo, &fakePublisher{})

	incident, err := svc.Open(context.Background(), uuid.New(), enums.IncidentKindStuckOrder, "4 failed dispatch attempts")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), incident.ID, "manually assigned to rider")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Status != enums.IncidentStatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}

	_, err = svc.Resolve(context.Background(), incident.ID, "again")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on double resolve, got %v", err)
	}
}

func TestService_ResolveMissingIncident(t *testing.T) {
	svc := newIncidentService(t, newFakeRepository(), &fakePublisher{})

	_, err := svc.Resolve(context.Background(), uuid.New(), "done")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
