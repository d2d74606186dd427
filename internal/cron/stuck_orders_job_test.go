package cron

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
)

type fakeStuckSource struct {
	orders []models.Order
}

func (f *fakeStuckSource) FindStuckPending(ctx context.Context, minAttempts int) ([]models.Order, error) {
	var matched []models.Order
	for _, order := range f.orders {
		if order.DispatchAttempts >= minAttempts {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

func TestStuckOrdersJobOpensIncidents(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	source := &fakeStuckSource{orders: []models.Order{
		{ID: uuid.New(), Status: enums.OrderStatusPending, DispatchAttempts: 5},
		{ID: uuid.New(), Status: enums.OrderStatusPending, DispatchAttempts: 2},
	}}
	incidents := &fakeJobIncidents{}

	job, err := NewStuckOrdersJob(StuckOrdersJobParams{
		Logger:      logg,
		Orders:      source,
		Incidents:   incidents,
		MinAttempts: 5,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(incidents.opened) != 1 || incidents.opened[0] != enums.IncidentKindStuckOrder {
		t.Fatalf("expected one stuck_order incident, got %v", incidents.opened)
	}
}
