package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/riders"
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

// paymentRecorder archives the payment breakdown for a completed
// delivery inside the completion transaction.
type paymentRecorder interface {
	RecordDeliveryTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.PaymentRecord, error)
}

// CreateOrderInput carries the fields needed to register a new order.
type CreateOrderInput struct {
	RestaurantName       string
	PickupLat            float64
	PickupLng            float64
	PickupAddress        string
	DeliveryLat          float64
	DeliveryLng          float64
	DeliveryAddress      string
	ValueCents           int64
	Currency             string
	PreparationStartedAt *time.Time
}

// Service manages the order lifecycle outside of dispatch itself.
type Service interface {
	Create(ctx context.Context, in CreateOrderInput) (*models.Order, error)
	Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*OrderList, error)
	ListRiderDeliveries(ctx context.Context, riderID uuid.UUID, params pagination.Params) (*OrderList, error)
	MarkPreparationStarted(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkLate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// CompleteDelivery finishes the order, frees the rider and records
	// the payment breakdown in one transaction.
	CompleteDelivery(ctx context.Context, orderID, riderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo     Repository
	riders   riders.Repository
	payments paymentRecorder
	tx       txRunner
	outbox   outboxPublisher
}

// NewService wires the orders service.
func NewService(repo Repository, riderRepo riders.Repository, payments paymentRecorder, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if riderRepo == nil {
		return nil, fmt.Errorf("riders repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, riders: riderRepo, payments: payments, tx: tx, outbox: publisher}, nil
}

func (s *service) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "GBP"
	}

	order := &models.Order{
		ID:                   uuid.New(),
		RestaurantName:       strings.TrimSpace(in.RestaurantName),
		PickupLat:            in.PickupLat,
		PickupLng:            in.PickupLng,
		PickupAddress:        strings.TrimSpace(in.PickupAddress),
		DeliveryLat:          in.DeliveryLat,
		DeliveryLng:          in.DeliveryLng,
		DeliveryAddress:      strings.TrimSpace(in.DeliveryAddress),
		ValueCents:           in.ValueCents,
		Currency:             currency,
		Status:               enums.OrderStatusPending,
		PreparationStartedAt: in.PreparationStartedAt,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushOrderUpdate,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderUpdateEvent{
				OrderID:         order.ID,
				RestaurantName:  order.RestaurantName,
				PickupAddress:   order.PickupAddress,
				DeliveryAddress: order.DeliveryAddress,
				Status:          order.Status,
				ValueCents:      order.ValueCents,
				Currency:        order.Currency,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters Filters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	return s.repo.List(ctx, params, filters)
}

func (s *service) ListRiderDeliveries(ctx context.Context, riderID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	return s.repo.ListByRider(ctx, riderID, params)
}

func (s *service) MarkPreparationStarted(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already closed")
	}
	if order.PreparationStartedAt != nil {
		return order, nil
	}
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, orderID, map[string]any{"preparation_started_at": now}); err != nil {
		return nil, err
	}
	order.PreparationStartedAt = &now
	return order, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		order, txErr = repo.Find(ctx, orderID)
		if txErr != nil {
			if stdErrors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return txErr
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel order in status %s", order.Status))
		}

		swapped, txErr := repo.UpdateStatus(ctx, orderID, order.Status, enums.OrderStatusCancelled, nil)
		if txErr != nil {
			return txErr
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed status concurrently")
		}
		if order.AssignedRiderID != nil {
			if txErr := s.riders.WithTx(tx).ReleaseOrder(ctx, *order.AssignedRiderID, orderID); txErr != nil {
				return txErr
			}
		}
		order.Status = enums.OrderStatusCancelled
		return s.emitStatus(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) MarkLate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		swapped, txErr := repo.UpdateStatus(ctx, orderID, enums.OrderStatusInProgress, enums.OrderStatusLate, nil)
		if txErr != nil {
			return txErr
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in progress")
		}
		order, txErr = repo.Find(ctx, orderID)
		if txErr != nil {
			return txErr
		}
		return s.emitStatus(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) CompleteDelivery(ctx context.Context, orderID, riderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and rider id are required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		order, txErr = repo.Find(ctx, orderID)
		if txErr != nil {
			if stdErrors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return txErr
		}
		if order.AssignedRiderID == nil || *order.AssignedRiderID != riderID {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is not assigned to this rider")
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCompleted) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot complete order in status %s", order.Status))
		}

		now := time.Now().UTC()
		swapped, txErr := repo.UpdateStatus(ctx, orderID, order.Status, enums.OrderStatusCompleted, map[string]any{
			"completed_at": now,
		})
		if txErr != nil {
			return txErr
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed status concurrently")
		}
		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &now

		if txErr := s.riders.WithTx(tx).ReleaseOrder(ctx, riderID, orderID); txErr != nil {
			return txErr
		}
		if _, txErr := s.payments.RecordDeliveryTx(ctx, tx, order); txErr != nil {
			return txErr
		}
		return s.emitStatus(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.PushOrderStatusUpdated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStatusUpdatedEvent{
			OrderID:    order.ID,
			Status:     order.Status,
			RiderID:    order.AssignedRiderID,
			OccurredAt: time.Now().UTC(),
		},
		Version: 1,
	})
}

func validateCreateInput(in CreateOrderInput) error {
	if strings.TrimSpace(in.RestaurantName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant name is required")
	}
	if strings.TrimSpace(in.PickupAddress) == "" || strings.TrimSpace(in.DeliveryAddress) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery addresses are required")
	}
	if !validCoordinate(in.PickupLat, in.PickupLng) || !validCoordinate(in.DeliveryLat, in.DeliveryLng) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	if in.ValueCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order value must be positive")
	}
	return nil
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
