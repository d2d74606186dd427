package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

type stuckOrderSource interface {
	FindStuckPending(ctx context.Context, minAttempts int) ([]models.Order, error)
}

// StuckOrdersJobParams configure the stuck order sweep.
type StuckOrdersJobParams struct {
	Logger      *logger.Logger
	Orders      stuckOrderSource
	Incidents   lateIncidentOpener
	MinAttempts int
}

// NewStuckOrdersJob raises incidents for pending orders that exhausted
// their dispatch attempts. Reruns are harmless: at most one incident
// per order stays open.
func NewStuckOrdersJob(params StuckOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if params.Incidents == nil {
		return nil, fmt.Errorf("incident opener required")
	}
	if params.MinAttempts <= 0 {
		return nil, fmt.Errorf("min attempts must be positive")
	}
	return &stuckOrdersJob{
		logg:        params.Logger,
		orders:      params.Orders,
		incidents:   params.Incidents,
		minAttempts: params.MinAttempts,
	}, nil
}

type stuckOrdersJob struct {
	logg        *logger.Logger
	orders      stuckOrderSource
	incidents   lateIncidentOpener
	minAttempts int
}

func (j *stuckOrdersJob) Name() string { return "stuck-orders" }

func (j *stuckOrdersJob) Run(ctx context.Context) error {
	stuck, err := j.orders.FindStuckPending(ctx, j.minAttempts)
	if err != nil {
		return fmt.Errorf("stuck order sweep: %w", err)
	}

	var errs error
	for i := range stuck {
		order := stuck[i]
		message := fmt.Sprintf("order still pending after %d dispatch attempts", order.DispatchAttempts)
		if _, err := j.incidents.Open(ctx, order.ID, enums.IncidentKindStuckOrder, message); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("open stuck incident for order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": len(stuck)})
	j.logg.Info(logCtx, "stuck order sweep complete")
	return errs
}
