package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/payouts"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
)

type payoutReporter interface {
	GenerateReport(ctx context.Context, period payouts.Period) (*payouts.Report, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// WeeklyPayoutJobParams configure the payout report job.
type WeeklyPayoutJobParams struct {
	Logger  *logger.Logger
	Payouts payoutReporter
	DB      txRunner
	Outbox  outboxPublisher
}

// NewWeeklyPayoutJob generates the weekly payout report once the
// Saturday cutoff has passed and pushes a summary to the admin
// dashboard. On any other day the job is a no-op.
func NewWeeklyPayoutJob(params WeeklyPayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout reporter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &weeklyPayoutJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		db:      params.DB,
		outbox:  params.Outbox,
		now:     time.Now,
	}, nil
}

type weeklyPayoutJob struct {
	logg    *logger.Logger
	payouts payoutReporter
	db      txRunner
	outbox  outboxPublisher
	now     func() time.Time
}

func (j *weeklyPayoutJob) Name() string { return "weekly-payout" }

func (j *weeklyPayoutJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	periodEnd := payouts.NextPayoutDate(now).AddDate(0, 0, -7)
	// The report is generated on the cadence day only; the daily cron
	// cycle skips the other six.
	if now.Before(periodEnd) || now.Sub(periodEnd) >= 24*time.Hour {
		j.logg.Info(ctx, "not a payout day; skipping weekly payout report")
		return nil
	}

	period := payouts.Period{Start: periodEnd.AddDate(0, 0, -7), End: periodEnd}
	report, err := j.payouts.GenerateReport(ctx, period)
	if err != nil {
		return fmt.Errorf("generate payout report: %w", err)
	}

	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushNotification,
			AggregateType: enums.AggregatePayout,
			AggregateID:   uuid.New(),
			Version:       1,
			Data: payloads.NotificationEvent{
				Audience: "admin",
				Title:    "Weekly payout report ready",
				Message: fmt.Sprintf("%d of %d riders eligible, £%s to pay out",
					report.EligibleRiders, report.TotalRiders, report.TotalPayouts.StringFixed(2)),
			},
		})
	})
	if err != nil {
		return fmt.Errorf("publish payout notification: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"period_end":      periodEnd,
		"total_riders":    report.TotalRiders,
		"eligible_riders": report.EligibleRiders,
		"total_payouts":   report.TotalPayouts.StringFixed(2),
	})
	j.logg.Info(logCtx, "weekly payout report generated")
	return nil
}
