package payouts

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

type fakeEarnings struct {
	totals []payments.RiderTotals
}

func (f *fakeEarnings) RiderTotalsBetween(ctx context.Context, from, to time.Time) ([]payments.RiderTotals, error) {
	return f.totals, nil
}

func (f *fakeEarnings) CurrentSettings(ctx context.Context) (*payments.Settings, error) {
	return &payments.Settings{
		Version:       1,
		MinimumPayout: decimal.RequireFromString("25.00"),
		ProcessingFee: decimal.RequireFromString("1.50"),
	}, nil
}

type fakeBonusRepo struct {
	sums    map[uuid.UUID]decimal.Decimal
	created []*models.RiderBonus
}

func (f *fakeBonusRepo) WithTx(tx *gorm.DB) BonusRepository { return f }

func (f *fakeBonusRepo) Create(ctx context.Context, bonus *models.RiderBonus) (*models.RiderBonus, error) {
	f.created = append(f.created, bonus)
	return bonus, nil
}

func (f *fakeBonusRepo) SumByRiderBetween(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	if f.sums == nil {
		return map[uuid.UUID]decimal.Decimal{}, nil
	}
	return f.sums, nil
}

func (f *fakeBonusRepo) ListByRider(ctx context.Context, riderID uuid.UUID, from, to time.Time) ([]models.RiderBonus, error) {
	return nil, nil
}

type fakeDirectory struct {
	riders map[uuid.UUID]*models.Rider
}

func (f *fakeDirectory) Find(ctx context.Context, riderID uuid.UUID) (*models.Rider, error) {
	rider, ok := f.riders[riderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rider, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func weekPeriod() Period {
	end := time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC)
	return Period{Start: end.AddDate(0, 0, -7), End: end}
}

func newPayoutService(t *testing.T, earnings *fakeEarnings, bonuses *fakeBonusRepo, dir *fakeDirectory) Service {
	t.Helper()
	svc, err := NewService(earnings, bonuses, dir, fakeTxRunner{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_GenerateReportEligibility(t *testing.T) {
	account := "12345678"
	sortCode := "200000"
	eligible := &models.Rider{ID: uuid.New(), Name: "Eligible Rider", BankAccountNumber: &account, BankSortCode: &sortCode}
	justUnder := &models.Rider{ID: uuid.New(), Name: "Just Under"}
	exactly := &models.Rider{ID: uuid.New(), Name: "Exactly At"}

	earnings := &fakeEarnings{totals: []payments.RiderTotals{
		{RiderID: eligible.ID, Deliveries: 12, Total: decimal.RequireFromString("80.40")},
		{RiderID: justUnder.ID, Deliveries: 4, Total: decimal.RequireFromString("24.99")},
		{RiderID: exactly.ID, Deliveries: 5, Total: decimal.RequireFromString("25.00")},
	}}
	dir := &fakeDirectory{riders: map[uuid.UUID]*models.Rider{
		eligible.ID: eligible, justUnder.ID: justUnder, exactly.ID: exactly,
	}}
	svc := newPayoutService(t, earnings, &fakeBonusRepo{}, dir)

	report, err := svc.GenerateReport(context.Background(), weekPeriod())
	if err != nil {
		t.Fatalf("GenerateReport error: %v", err)
	}
	if report.TotalRiders != 3 || report.EligibleRiders != 2 {
		t.Fatalf("expected 3 riders / 2 eligible, got %d/%d", report.TotalRiders, report.EligibleRiders)
	}

	byName := map[string]PayoutDetail{}
	for _, detail := range report.PayoutDetails {
		byName[detail.RiderName] = detail
	}

	if got := byName["Eligible Rider"]; !got.PayoutAmount.Equal(decimal.RequireFromString("78.90")) {
		t.Fatalf("expected 78.90 payout, got %s", got.PayoutAmount)
	}
	if got := byName["Eligible Rider"]; !got.HasBankDetail {
		t.Fatal("expected bank details flagged present")
	}
	if got := byName["Exactly At"]; !got.IsEligible || !got.PayoutAmount.Equal(decimal.RequireFromString("23.50")) {
		t.Fatalf("25.00 exactly should be eligible for 23.50, got %+v", got)
	}
	under := byName["Just Under"]
	if under.IsEligible || !under.PayoutAmount.IsZero() {
		t.Fatalf("24.99 should be ineligible with zero payout, got %+v", under)
	}
	if under.Reason != "Below minimum payout threshold of £25.00" {
		t.Fatalf("unexpected reason %q", under.Reason)
	}

	// 78.90 + 23.50 payouts, two 1.50 fees withheld.
	if !report.TotalPayouts.Equal(decimal.RequireFromString("102.40")) {
		t.Fatalf("expected 102.40 total payouts, got %s", report.TotalPayouts)
	}
	if !report.ProcessingFees.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("expected 3.00 processing fees, got %s", report.ProcessingFees)
	}
}

func TestService_GenerateReportCountsBonuses(t *testing.T) {
	rider := &models.Rider{ID: uuid.New(), Name: "Bonus Rider"}
	earnings := &fakeEarnings{totals: []payments.RiderTotals{
		{RiderID: rider.ID, Deliveries: 3, Total: decimal.RequireFromString("20.00")},
	}}
	bonuses := &fakeBonusRepo{sums: map[uuid.UUID]decimal.Decimal{
		rider.ID: decimal.RequireFromString("6.00"),
	}}
	svc := newPayoutService(t, earnings, bonuses, &fakeDirectory{riders: map[uuid.UUID]*models.Rider{rider.ID: rider}})

	report, err := svc.GenerateReport(context.Background(), weekPeriod())
	if err != nil {
		t.Fatalf("GenerateReport error: %v", err)
	}
	detail := report.PayoutDetails[0]
	if !detail.TotalEarnings.Equal(decimal.RequireFromString("26.00")) {
		t.Fatalf("expected bonuses added, got %s", detail.TotalEarnings)
	}
	if !detail.IsEligible {
		t.Fatal("bonuses should push rider over the threshold")
	}
}

func TestService_GenerateReportBonusOnlyRider(t *testing.T) {
	riderID := uuid.New()
	bonuses := &fakeBonusRepo{sums: map[uuid.UUID]decimal.Decimal{
		riderID: decimal.RequireFromString("30.00"),
	}}
	svc := newPayoutService(t, &fakeEarnings{}, bonuses, &fakeDirectory{})

	report, err := svc.GenerateReport(context.Background(), weekPeriod())
	if err != nil {
		t.Fatalf("GenerateReport error: %v", err)
	}
	if report.TotalRiders != 1 || !report.PayoutDetails[0].IsEligible {
		t.Fatalf("bonus-only rider should appear eligible, got %+v", report)
	}
}

func TestService_GenerateReportRepeatable(t *testing.T) {
	rider := &models.Rider{ID: uuid.New(), Name: "Repeat Rider"}
	earnings := &fakeEarnings{totals: []payments.RiderTotals{
		{RiderID: rider.ID, Deliveries: 8, Total: decimal.RequireFromString("52.00")},
	}}
	svc := newPayoutService(t, earnings, &fakeBonusRepo{}, &fakeDirectory{riders: map[uuid.UUID]*models.Rider{rider.ID: rider}})

	first, err := svc.GenerateReport(context.Background(), weekPeriod())
	if err != nil {
		t.Fatalf("GenerateReport error: %v", err)
	}
	second, err := svc.GenerateReport(context.Background(), weekPeriod())
	if err != nil {
		t.Fatalf("GenerateReport error: %v", err)
	}
	first.GeneratedAt = second.GeneratedAt
	first.NextPayoutDate = second.NextPayoutDate
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated report differs:\n%+v\n%+v", first, second)
	}
}

func TestService_AwardBonus(t *testing.T) {
	rider := &models.Rider{ID: uuid.New(), Name: "Awarded"}
	bonuses := &fakeBonusRepo{}
	svc := newPayoutService(t, &fakeEarnings{}, bonuses, &fakeDirectory{riders: map[uuid.UUID]*models.Rider{rider.ID: rider}})

	bonus, err := svc.AwardBonus(context.Background(), rider.ID, decimal.RequireFromString("5.00"), "Customer praise", "admin@piersideeats.co.uk")
	if err != nil {
		t.Fatalf("AwardBonus error: %v", err)
	}
	if len(bonuses.created) != 1 || !bonus.Amount.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected bonus persisted, got %+v", bonuses.created)
	}

	if _, err := svc.AwardBonus(context.Background(), rider.ID, decimal.Zero, "reason", "admin"); err == nil {
		t.Fatal("expected validation error for zero amount")
	}
	if _, err := svc.AwardBonus(context.Background(), uuid.New(), decimal.RequireFromString("5.00"), "reason", "admin"); err == nil {
		t.Fatal("expected not found for unknown rider")
	}
}

func TestNextPayoutDate(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midweek",
			now:  time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC), // Wednesday
			want: time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday before nine",
			now:  time.Date(2026, time.March, 7, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday after nine rolls a week",
			now:  time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextPayoutDate(tc.now); !got.Equal(tc.want) {
				t.Fatalf("NextPayoutDate(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

func TestCurrentPeriod(t *testing.T) {
	now := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	period := CurrentPeriod(now)
	if !period.End.Equal(time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period end %s", period.End)
	}
	if !period.Start.Equal(period.End.AddDate(0, 0, -7)) {
		t.Fatalf("expected a seven day window, got %s", period.Start)
	}
}
