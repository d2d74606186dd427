package incidents

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service raises and resolves operational incidents.
type Service interface {
	// Open raises an incident for an order. At most one incident per
	// order and kind can be open at a time; reopening returns the
	// existing row.
	Open(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind, message string) (*models.Incident, error)
	Resolve(ctx context.Context, incidentID uuid.UUID, resolution string) (*models.Incident, error)
	Find(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*IncidentList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the incident service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("incident repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

func (s *service) Open(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind, message string) (*models.Incident, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid incident kind")
	}
	if strings.TrimSpace(message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incident message is required")
	}

	incident := &models.Incident{
		ID:      uuid.New(),
		OrderID: &orderID,
		Kind:    kind,
		Message: message,
		Status:  enums.IncidentStatusOpen,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, txErr := s.repo.WithTx(tx).Create(ctx, incident); txErr != nil {
			return txErr
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushSystemAlert,
			AggregateType: enums.AggregateIncident,
			AggregateID:   incident.ID,
			Version:       1,
			Data: payloads.SystemAlertEvent{
				Severity:   severityFor(kind),
				Message:    message,
				OrderID:    &orderID,
				IncidentID: &incident.ID,
			},
		})
	})
	if err != nil {
		// The partial unique index allows one open incident per order
		// and kind; a second open attempt returns the existing row.
		if db.IsUniqueViolation(err, "ux_incidents_order_kind_open") {
			return s.repo.FindOpenByOrderKind(ctx, orderID, kind)
		}
		return nil, err
	}
	return incident, nil
}

func (s *service) Resolve(ctx context.Context, incidentID uuid.UUID, resolution string) (*models.Incident, error) {
	if incidentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incident id is required")
	}
	if strings.TrimSpace(resolution) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution is required")
	}

	resolved, err := s.repo.Resolve(ctx, incidentID, resolution)
	if err != nil {
		return nil, err
	}
	if !resolved {
		incident, findErr := s.repo.Find(ctx, incidentID)
		if findErr != nil {
			if stdErrors.Is(findErr, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "incident not found")
			}
			return nil, findErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("incident is already %s", incident.Status))
	}
	return s.repo.Find(ctx, incidentID)
}

func (s *service) Find(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error) {
	incident, err := s.repo.Find(ctx, incidentID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "incident not found")
		}
		return nil, err
	}
	return incident, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters Filters) (*IncidentList, error) {
	return s.repo.List(ctx, params, filters)
}

func severityFor(kind enums.IncidentKind) string {
	switch kind {
	case enums.IncidentKindDispatchFailure:
		return "critical"
	default:
		return "warning"
	}
}
