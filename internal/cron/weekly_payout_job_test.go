package cron

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/payouts"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
)

type fakePayoutReporter struct {
	periods []payouts.Period
}

func (f *fakePayoutReporter) GenerateReport(ctx context.Context, period payouts.Period) (*payouts.Report, error) {
	f.periods = append(f.periods, period)
	return &payouts.Report{
		Period:         period,
		TotalRiders:    5,
		EligibleRiders: 3,
		TotalPayouts:   decimal.RequireFromString("112.40"),
	}, nil
}

type fakeJobTxRunner struct{}

func (fakeJobTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeJobPublisher struct {
	events []outbox.DomainEvent
}

func (f *fakeJobPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newWeeklyPayoutJob(t *testing.T, reporter *fakePayoutReporter, publisher *fakeJobPublisher, now time.Time) Job {
	t.Helper()
	job, err := NewWeeklyPayoutJob(WeeklyPayoutJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Payouts: reporter,
		DB:      fakeJobTxRunner{},
		Outbox:  publisher,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	job.(*weeklyPayoutJob).now = func() time.Time { return now }
	return job
}

func TestWeeklyPayoutJobRunsOnPayoutDay(t *testing.T) {
	reporter := &fakePayoutReporter{}
	publisher := &fakeJobPublisher{}
	// Saturday at 10:00, one hour past the cutoff.
	saturday := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	job := newWeeklyPayoutJob(t, reporter, publisher, saturday)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(reporter.periods) != 1 {
		t.Fatalf("expected one report, got %d", len(reporter.periods))
	}
	period := reporter.periods[0]
	wantEnd := time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC)
	if !period.End.Equal(wantEnd) || !period.Start.Equal(wantEnd.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected period %+v", period)
	}

	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.PushNotification {
		t.Fatalf("expected one notification event, got %+v", publisher.events)
	}
	note, ok := publisher.events[0].Data.(payloads.NotificationEvent)
	if !ok || note.Audience != "admin" {
		t.Fatalf("unexpected notification payload %+v", publisher.events[0].Data)
	}
}

func TestWeeklyPayoutJobSkipsMidweek(t *testing.T) {
	reporter := &fakePayoutReporter{}
	publisher := &fakeJobPublisher{}
	wednesday := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	job := newWeeklyPayoutJob(t, reporter, publisher, wednesday)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reporter.periods) != 0 || len(publisher.events) != 0 {
		t.Fatal("midweek run should be a no-op")
	}
}

func TestWeeklyPayoutJobSkipsSaturdayBeforeCutoff(t *testing.T) {
	reporter := &fakePayoutReporter{}
	publisher := &fakeJobPublisher{}
	earlySaturday := time.Date(2026, time.March, 7, 8, 0, 0, 0, time.UTC)
	job := newWeeklyPayoutJob(t, reporter, publisher, earlySaturday)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reporter.periods) != 0 {
		t.Fatal("the report belongs to the cutoff, not before it")
	}
}
