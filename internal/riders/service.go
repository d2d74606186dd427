package riders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
	"github.com/piersideeats/dispatch-backend/pkg/pagination"
)

var (
	ukAccountNumberPattern = regexp.MustCompile(`^[0-9]{8}$`)
	ukSortCodePattern      = regexp.MustCompile(`^[0-9]{6}$`)
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages rider profiles and availability.
type Service interface {
	Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
	List(ctx context.Context, params pagination.Params) (*RiderList, error)
	Pause(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
	Resume(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
	UpdateBankAccount(ctx context.Context, riderID uuid.UUID, account BankAccount) (*models.Rider, error)
	// PushLocation broadcasts the rider's position through the push
	// channel. Positions are never persisted.
	PushLocation(ctx context.Context, riderID uuid.UUID, lat, lng float64) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the riders service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("riders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

func (s *service) Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	rider, err := s.repo.Find(ctx, riderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
		}
		return nil, err
	}
	return rider, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*RiderList, error) {
	return s.repo.List(ctx, params)
}

func (s *service) Pause(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	return s.setPaused(ctx, riderID, true)
}

func (s *service) Resume(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	return s.setPaused(ctx, riderID, false)
}

func (s *service) setPaused(ctx context.Context, riderID uuid.UUID, paused bool) (*models.Rider, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}

	var rider *models.Rider
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetPaused(ctx, riderID, paused); err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
			}
			return err
		}
		var txErr error
		rider, txErr = repo.Find(ctx, riderID)
		if txErr != nil {
			return txErr
		}
		return s.emitRiderUpdate(ctx, tx, rider)
	})
	if err != nil {
		return nil, err
	}
	return rider, nil
}

func (s *service) UpdateBankAccount(ctx context.Context, riderID uuid.UUID, account BankAccount) (*models.Rider, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	if err := validateBankAccount(account); err != nil {
		return nil, err
	}

	var rider *models.Rider
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateBankAccount(ctx, riderID, account); err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
			}
			return err
		}
		var txErr error
		rider, txErr = repo.Find(ctx, riderID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return rider, nil
}

func (s *service) PushLocation(ctx context.Context, riderID uuid.UUID, lat, lng float64) error {
	if riderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.PushRiderLocationUpdated,
			AggregateType: enums.AggregateRider,
			AggregateID:   riderID,
			Data: payloads.RiderLocationUpdatedEvent{
				RiderID:    riderID,
				Lat:        lat,
				Lng:        lng,
				RecordedAt: time.Now().UTC(),
			},
			Version: 1,
		})
	})
}

func (s *service) emitRiderUpdate(ctx context.Context, tx *gorm.DB, rider *models.Rider) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.PushRiderUpdate,
		AggregateType: enums.AggregateRider,
		AggregateID:   rider.ID,
		Data: payloads.RiderUpdateEvent{
			RiderID:        rider.ID,
			IsActive:       rider.IsActive,
			OrdersPaused:   rider.OrdersPaused,
			CurrentOrderID: rider.CurrentOrderID,
		},
		Version: 1,
	})
}

func validateBankAccount(account BankAccount) error {
	if strings.TrimSpace(account.HolderName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account holder name is required")
	}
	if !ukAccountNumberPattern.MatchString(account.AccountNumber) {
		return pkgerrors.New(pkgerrors.CodeValidation, "account number must be 8 digits")
	}
	if !ukSortCodePattern.MatchString(account.SortCode) {
		return pkgerrors.New(pkgerrors.CodeValidation, "sort code must be 6 digits")
	}
	if strings.TrimSpace(account.BankName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "bank name is required")
	}
	return nil
}
