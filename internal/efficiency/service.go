package efficiency

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Snapshot is a consistent view of a rider's ledger. Percentage and
// bonus eligibility are derived here, never stored.
type Snapshot struct {
	RiderID             uuid.UUID `json:"rider_id"`
	AcceptedOrders      int       `json:"accepted_orders"`
	RejectedOrders      int       `json:"rejected_orders"`
	PenalizedRejections int       `json:"penalized_rejections"`
	TotalPoints         int       `json:"total_points"`
	Percentage          float64   `json:"percentage"`
	BonusEligible       bool      `json:"bonus_eligible"`
}

// Rules carries the scoring constants.
type Rules struct {
	PointsPerAcceptance         int
	PointsPerPenalizedRejection int
	BonusThresholdPercent       float64
}

// Service is the rider efficiency ledger.
type Service interface {
	RecordAcceptance(ctx context.Context, riderID uuid.UUID) (*Snapshot, error)
	RecordRejection(ctx context.Context, riderID uuid.UUID, penalized bool) (*Snapshot, error)
	// Tx variants run inside a caller-owned transaction so dispatch can
	// resolve a window and update the ledger atomically.
	RecordAcceptanceTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID) (*Snapshot, error)
	RecordRejectionTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID, penalized bool) (*Snapshot, error)
	Snapshot(ctx context.Context, riderID uuid.UUID) (*Snapshot, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	rules  Rules
}

// NewService wires the efficiency ledger.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, rules Rules) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("efficiency repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if rules.BonusThresholdPercent <= 0 {
		return nil, fmt.Errorf("bonus threshold must be positive")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, rules: rules}, nil
}

func (s *service) RecordAcceptance(ctx context.Context, riderID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		snap, txErr = s.RecordAcceptanceTx(ctx, tx, riderID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) RecordRejection(ctx context.Context, riderID uuid.UUID, penalized bool) (*Snapshot, error) {
	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		snap, txErr = s.RecordRejectionTx(ctx, tx, riderID, penalized)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) RecordAcceptanceTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID) (*Snapshot, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	record, err := s.repo.WithTx(tx).ApplyAcceptance(ctx, riderID, s.rules.PointsPerAcceptance)
	if err != nil {
		return nil, err
	}
	snap := s.snapshotOf(record)
	if err := s.emitScore(ctx, tx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) RecordRejectionTx(ctx context.Context, tx *gorm.DB, riderID uuid.UUID, penalized bool) (*Snapshot, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	record, err := s.repo.WithTx(tx).ApplyRejection(ctx, riderID, penalized, s.rules.PointsPerPenalizedRejection)
	if err != nil {
		return nil, err
	}
	snap := s.snapshotOf(record)
	if err := s.emitScore(ctx, tx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) Snapshot(ctx context.Context, riderID uuid.UUID) (*Snapshot, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	record, err := s.repo.Find(ctx, riderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A rider with no decisions yet starts at 100%.
			return s.snapshotOf(&models.EfficiencyRecord{RiderID: riderID}), nil
		}
		return nil, err
	}
	return s.snapshotOf(record), nil
}

func (s *service) snapshotOf(record *models.EfficiencyRecord) *Snapshot {
	pct := Percentage(record.AcceptedOrders, record.RejectedOrders)
	return &Snapshot{
		RiderID:             record.RiderID,
		AcceptedOrders:      record.AcceptedOrders,
		RejectedOrders:      record.RejectedOrders,
		PenalizedRejections: record.PenalizedRejections,
		TotalPoints:         record.TotalPoints,
		Percentage:          pct,
		BonusEligible:       pct >= s.rules.BonusThresholdPercent,
	}
}

func (s *service) emitScore(ctx context.Context, tx *gorm.DB, snap *Snapshot) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.PushRiderScoreUpdated,
		AggregateType: enums.AggregateRider,
		AggregateID:   snap.RiderID,
		Data: payloads.RiderScoreUpdatedEvent{
			RiderID:             snap.RiderID,
			AcceptedOrders:      snap.AcceptedOrders,
			RejectedOrders:      snap.RejectedOrders,
			PenalizedRejections: snap.PenalizedRejections,
			TotalPoints:         snap.TotalPoints,
			Percentage:          snap.Percentage,
			BonusEligible:       snap.BonusEligible,
		},
		Version: 1,
	})
}

// Percentage is the share of offers the rider accepted, in [0,100]
// rounded to two decimals. A rider with no decided offers scores 100.
func Percentage(accepted, rejected int) float64 {
	total := accepted + rejected
	if total == 0 {
		return 100
	}
	pct := float64(accepted) / float64(total) * 100
	return math.Round(pct*100) / 100
}
