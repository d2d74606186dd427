package payments

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/pkg/db"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
	"github.com/piersideeats/dispatch-backend/pkg/geo"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// scoreReader exposes the slice of the efficiency ledger the payment
// math needs.
type scoreReader interface {
	Snapshot(ctx context.Context, riderID uuid.UUID) (*efficiency.Snapshot, error)
}

// EarningsSummary is a rider's earnings over a period.
type EarningsSummary struct {
	RiderID    uuid.UUID              `json:"rider_id"`
	From       time.Time              `json:"from"`
	To         time.Time              `json:"to"`
	Deliveries int                    `json:"deliveries"`
	Total      decimal.Decimal        `json:"total"`
	Records    []models.PaymentRecord `json:"records"`
}

// Service owns payment math, versioned settings and payment records.
type Service interface {
	// Calculate runs the payment math against the current settings
	// without persisting anything.
	Calculate(ctx context.Context, in CalculateInput) (*Breakdown, int, error)
	CurrentSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*Settings, error)
	// RecordDeliveryTx freezes the breakdown for a completed delivery
	// inside the caller's transaction. Idempotent per order.
	RecordDeliveryTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.PaymentRecord, error)
	RiderEarnings(ctx context.Context, riderID uuid.UUID, from, to time.Time) (*EarningsSummary, error)
	RiderTotalsBetween(ctx context.Context, from, to time.Time) ([]RiderTotals, error)
}

type service struct {
	records  Repository
	settings SettingsRepository
	scores   scoreReader
	tx       txRunner
}

// NewService wires the payments service.
func NewService(records Repository, settings SettingsRepository, scores scoreReader, tx txRunner) (Service, error) {
	if records == nil {
		return nil, fmt.Errorf("payment records repository required")
	}
	if settings == nil {
		return nil, fmt.Errorf("payment settings repository required")
	}
	if scores == nil {
		return nil, fmt.Errorf("efficiency reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{records: records, settings: settings, scores: scores, tx: tx}, nil
}

func (s *service) Calculate(ctx context.Context, in CalculateInput) (*Breakdown, int, error) {
	settings, err := s.CurrentSettings(ctx)
	if err != nil {
		return nil, 0, err
	}
	breakdown, err := Calculate(in, *settings)
	if err != nil {
		return nil, 0, err
	}
	return breakdown, settings.Version, nil
}

func (s *service) CurrentSettings(ctx context.Context) (*Settings, error) {
	version, err := s.settings.Current(ctx)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment settings missing")
		}
		return nil, err
	}
	settings := SettingsFromModel(version)
	return &settings, nil
}

func (s *service) UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*Settings, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	version := &models.PaymentSettingsVersion{
		RiderBaseFee:          in.RiderBaseFee,
		RiderPerKmRate:        in.RiderPerKmRate,
		RiderPerMinuteRate:    in.RiderPerMinuteRate,
		EfficiencyThreshold:   in.EfficiencyThreshold,
		EfficiencyBonusRate:   in.EfficiencyBonusRate,
		PeakBonusRate:         in.PeakBonusRate,
		WeatherBonusRate:      in.WeatherBonusRate,
		LongDistanceKm:        in.LongDistanceKm,
		LongDistanceRate:      in.LongDistanceRate,
		CustomerBaseFee:       in.CustomerBaseFee,
		CustomerPerKmRate:     in.CustomerPerKmRate,
		CustomerPerMinuteRate: in.CustomerPerMinuteRate,
		CustomerPeakRate:      in.CustomerPeakRate,
		CustomerWeatherRate:   in.CustomerWeatherRate,
		CustomerLongDistRate:  in.CustomerLongDistRate,
		CustomerMargin:        in.CustomerMargin,
		MinimumPayout:         in.MinimumPayout,
		ProcessingFee:         in.ProcessingFee,
		EffectiveAt:           time.Now().UTC(),
		CreatedBy:             in.CreatedBy,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, txErr := s.settings.WithTx(tx).Append(ctx, version)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	settings := SettingsFromModel(version)
	return &settings, nil
}

func (s *service) RecordDeliveryTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.PaymentRecord, error) {
	if order.AssignedRiderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no assigned rider")
	}
	riderID := *order.AssignedRiderID

	settings, err := s.CurrentSettings(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.scores.Snapshot(ctx, riderID)
	if err != nil {
		return nil, err
	}

	distance := geo.Distance(
		geo.LatLng{Lat: order.PickupLat, Lng: order.PickupLng},
		geo.LatLng{Lat: order.DeliveryLat, Lng: order.DeliveryLng},
	)
	weather := order.Weather
	if weather == "" {
		weather = enums.WeatherNormal
	}
	peakRef := order.CreatedAt
	if order.AssignedAt != nil {
		peakRef = *order.AssignedAt
	}
	peak := geo.IsPeakTime(peakRef)

	minutes := 0
	if order.EstimatedMinutes != nil {
		minutes = *order.EstimatedMinutes
	} else {
		minutes = geo.EstimateDeliveryMinutes(distance, peak, weather)
	}

	breakdown, err := Calculate(CalculateInput{
		DistanceKm:        distance,
		DeliveryMinutes:   minutes,
		EfficiencyPercent: snapshot.Percentage,
		Peak:              peak,
		Weather:           weather,
	}, *settings)
	if err != nil {
		return nil, err
	}

	record := &models.PaymentRecord{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		RiderID:              riderID,
		DistanceKm:           decimal.NewFromFloat(distance),
		EstimatedMinutes:     minutes,
		Peak:                 peak,
		Weather:              weather,
		RiderBase:            breakdown.Rider.Base,
		RiderDistance:        breakdown.Rider.Distance,
		RiderTime:            breakdown.Rider.Time,
		RiderEfficiencyBonus: breakdown.Rider.EfficiencyBonus,
		RiderPeakBonus:       breakdown.Rider.PeakBonus,
		RiderWeatherBonus:    breakdown.Rider.WeatherBonus,
		RiderLongDistance:    breakdown.Rider.LongDistanceBonus,
		RiderTotal:           breakdown.Rider.Total,
		CustomerBase:         breakdown.Customer.Base,
		CustomerDistance:     breakdown.Customer.Distance,
		CustomerTime:         breakdown.Customer.Time,
		CustomerPeak:         breakdown.Customer.PeakSurcharge,
		CustomerWeather:      breakdown.Customer.WeatherSurcharge,
		CustomerLongDist:     breakdown.Customer.LongDistanceSurcharge,
		CustomerTotal:        breakdown.Customer.Total,
		SettingsVersion:      settings.Version,
	}

	inserted, err := s.records.WithTx(tx).Insert(ctx, record)
	if err != nil {
		// One payment record per order; a replayed completion returns
		// the original.
		if db.IsUniqueViolation(err, "ux_payment_records_order") {
			return s.records.WithTx(tx).FindByOrder(ctx, order.ID)
		}
		return nil, err
	}
	return inserted, nil
}

func (s *service) RiderEarnings(ctx context.Context, riderID uuid.UUID, from, to time.Time) (*EarningsSummary, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period end must be after start")
	}

	records, err := s.records.ListByRider(ctx, riderID, from, to)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.RiderTotal)
	}
	return &EarningsSummary{
		RiderID:    riderID,
		From:       from,
		To:         to,
		Deliveries: len(records),
		Total:      total,
		Records:    records,
	}, nil
}

func (s *service) RiderTotalsBetween(ctx context.Context, from, to time.Time) ([]RiderTotals, error) {
	return s.records.RiderTotalsBetween(ctx, from, to)
}
