package payouts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// earningsSource is the slice of the payments service the aggregator
// reads from.
type earningsSource interface {
	RiderTotalsBetween(ctx context.Context, from, to time.Time) ([]payments.RiderTotals, error)
	CurrentSettings(ctx context.Context) (*payments.Settings, error)
}

// riderDirectory resolves rider profiles for the report rows.
type riderDirectory interface {
	Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error)
}

// Period is a half-open payout window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PayoutDetail is one rider's row in the weekly report.
type PayoutDetail struct {
	RiderID       uuid.UUID       `json:"rider_id"`
	RiderName     string          `json:"rider_name"`
	Deliveries    int             `json:"deliveries"`
	Earnings      decimal.Decimal `json:"earnings"`
	Bonuses       decimal.Decimal `json:"bonuses"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	IsEligible    bool            `json:"is_eligible"`
	PayoutAmount  decimal.Decimal `json:"payout_amount"`
	Reason        string          `json:"reason,omitempty"`
	HasBankDetail bool            `json:"has_bank_details"`
}

// Report is the weekly payout summary.
type Report struct {
	Period         Period          `json:"period"`
	GeneratedAt    time.Time       `json:"generated_at"`
	NextPayoutDate time.Time       `json:"next_payout_date"`
	TotalRiders    int             `json:"total_riders"`
	EligibleRiders int             `json:"eligible_riders"`
	TotalPayouts   decimal.Decimal `json:"total_payouts"`
	ProcessingFees decimal.Decimal `json:"processing_fees"`
	PayoutDetails  []PayoutDetail  `json:"payout_details"`
}

// Service aggregates weekly rider payouts.
type Service interface {
	// GenerateReport is read-only and repeatable: the same period over
	// the same records yields the same report.
	GenerateReport(ctx context.Context, period Period) (*Report, error)
	AwardBonus(ctx context.Context, riderID uuid.UUID, amount decimal.Decimal, reason, awardedBy string) (*models.RiderBonus, error)
}

type service struct {
	earnings earningsSource
	bonuses  BonusRepository
	riders   riderDirectory
	tx       txRunner
}

// NewService wires the payout aggregator.
func NewService(earnings earningsSource, bonuses BonusRepository, riderDir riderDirectory, tx txRunner) (Service, error) {
	if earnings == nil {
		return nil, fmt.Errorf("earnings source required")
	}
	if bonuses == nil {
		return nil, fmt.Errorf("bonus repository required")
	}
	if riderDir == nil {
		return nil, fmt.Errorf("rider directory required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{earnings: earnings, bonuses: bonuses, riders: riderDir, tx: tx}, nil
}

func (s *service) GenerateReport(ctx context.Context, period Period) (*Report, error) {
	if !period.End.After(period.Start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period end must be after start")
	}

	totals, err := s.earnings.RiderTotalsBetween(ctx, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	bonusTotals, err := s.bonuses.SumByRiderBetween(ctx, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	settings, err := s.earnings.CurrentSettings(ctx)
	if err != nil {
		return nil, err
	}

	byRider := make(map[uuid.UUID]payments.RiderTotals, len(totals))
	for _, item := range totals {
		byRider[item.RiderID] = item
	}
	for riderID := range bonusTotals {
		if _, ok := byRider[riderID]; !ok {
			byRider[riderID] = payments.RiderTotals{RiderID: riderID, Total: decimal.Zero}
		}
	}

	belowMinimum := fmt.Sprintf("Below minimum payout threshold of £%s", settings.MinimumPayout.StringFixed(2))

	report := &Report{
		Period:         period,
		GeneratedAt:    time.Now().UTC(),
		NextPayoutDate: NextPayoutDate(time.Now().UTC()),
		TotalPayouts:   decimal.Zero,
		ProcessingFees: decimal.Zero,
	}

	for riderID, item := range byRider {
		bonus := bonusTotals[riderID]
		totalEarnings := item.Total.Add(bonus)

		detail := PayoutDetail{
			RiderID:       riderID,
			Deliveries:    item.Deliveries,
			Earnings:      item.Total,
			Bonuses:       bonus,
			TotalEarnings: totalEarnings,
			PayoutAmount:  decimal.Zero,
		}
		if rider, err := s.riders.Find(ctx, riderID); err == nil {
			detail.RiderName = rider.Name
			detail.HasBankDetail = rider.BankAccountNumber != nil && rider.BankSortCode != nil
		}

		if totalEarnings.GreaterThanOrEqual(settings.MinimumPayout) {
			detail.IsEligible = true
			detail.PayoutAmount = totalEarnings.Sub(settings.ProcessingFee)
			report.EligibleRiders++
			report.TotalPayouts = report.TotalPayouts.Add(detail.PayoutAmount)
			report.ProcessingFees = report.ProcessingFees.Add(settings.ProcessingFee)
		} else {
			detail.Reason = belowMinimum
		}
		report.PayoutDetails = append(report.PayoutDetails, detail)
	}
	report.TotalRiders = len(report.PayoutDetails)

	sort.Slice(report.PayoutDetails, func(i, j int) bool {
		a, b := report.PayoutDetails[i], report.PayoutDetails[j]
		if !a.TotalEarnings.Equal(b.TotalEarnings) {
			return a.TotalEarnings.GreaterThan(b.TotalEarnings)
		}
		return a.RiderID.String() < b.RiderID.String()
	})
	return report, nil
}

func (s *service) AwardBonus(ctx context.Context, riderID uuid.UUID, amount decimal.Decimal, reason, awardedBy string) (*models.RiderBonus, error) {
	if riderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bonus amount must be positive")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bonus reason is required")
	}
	if awardedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awarded_by is required")
	}
	if _, err := s.riders.Find(ctx, riderID); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
	}

	bonus := &models.RiderBonus{
		ID:        uuid.New(),
		RiderID:   riderID,
		Amount:    amount.RoundBank(2),
		Reason:    reason,
		AwardedBy: awardedBy,
		AwardedAt: time.Now().UTC(),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, txErr := s.bonuses.WithTx(tx).Create(ctx, bonus)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return bonus, nil
}

// NextPayoutDate returns the next Saturday 09:00 UTC strictly after
// now, or today at 09:00 when now is a Saturday morning before nine.
func NextPayoutDate(now time.Time) time.Time {
	now = now.UTC()
	daysAhead := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.UTC).AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// CurrentPeriod is the payout week containing now: from the previous
// payout date to the next one.
func CurrentPeriod(now time.Time) Period {
	end := NextPayoutDate(now)
	return Period{Start: end.AddDate(0, 0, -7), End: end}
}
