package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

const defaultLateSlack = 15 * time.Minute

type lateOrderSource interface {
	FindInProgressAssignedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type lateMarker interface {
	MarkLate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type lateIncidentOpener interface {
	Open(ctx context.Context, orderID uuid.UUID, kind enums.IncidentKind, message string) (*models.Incident, error)
}

// LateOrdersJobParams configure the late delivery sweep.
type LateOrdersJobParams struct {
	Logger    *logger.Logger
	Orders    lateOrderSource
	Marker    lateMarker
	Incidents lateIncidentOpener
	Slack     time.Duration
}

// NewLateOrdersJob flags in-progress orders that have blown through
// their frozen estimate plus slack.
func NewLateOrdersJob(params LateOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if params.Marker == nil {
		return nil, fmt.Errorf("late marker required")
	}
	if params.Incidents == nil {
		return nil, fmt.Errorf("incident opener required")
	}
	slack := params.Slack
	if slack <= 0 {
		slack = defaultLateSlack
	}
	return &lateOrdersJob{
		logg:      params.Logger,
		orders:    params.Orders,
		marker:    params.Marker,
		incidents: params.Incidents,
		slack:     slack,
		now:       time.Now,
	}, nil
}

type lateOrdersJob struct {
	logg      *logger.Logger
	orders    lateOrderSource
	marker    lateMarker
	incidents lateIncidentOpener
	slack     time.Duration
	now       func() time.Time
}

func (j *lateOrdersJob) Name() string { return "late-orders" }

func (j *lateOrdersJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	// Only orders assigned at least a slack ago can possibly be late.
	candidates, err := j.orders.FindInProgressAssignedBefore(ctx, now.Add(-j.slack))
	if err != nil {
		return fmt.Errorf("late order sweep: %w", err)
	}

	var errs error
	marked := 0
	for i := range candidates {
		order := candidates[i]
		if order.AssignedAt == nil || order.EstimatedMinutes == nil {
			continue
		}
		deadline := order.AssignedAt.
			Add(time.Duration(*order.EstimatedMinutes) * time.Minute).
			Add(j.slack)
		if now.Before(deadline) {
			continue
		}

		if _, err := j.marker.MarkLate(ctx, order.ID); err != nil {
			// The rider finished or an admin cancelled while sweeping.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("mark order %s late: %w", order.ID, err))
			continue
		}
		marked++

		overdue := now.Sub(deadline).Round(time.Minute)
		message := fmt.Sprintf("delivery is %s past its %d minute estimate", overdue, *order.EstimatedMinutes)
		if _, err := j.incidents.Open(ctx, order.ID, enums.IncidentKindLateOrder, message); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("open late incident for order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"marked":     marked,
	})
	j.logg.Info(logCtx, "late order sweep complete")
	return errs
}
