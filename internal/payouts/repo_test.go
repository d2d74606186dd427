package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

func setupPayoutsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS rider_bonuses (
  id TEXT PRIMARY KEY,
  rider_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  reason TEXT NOT NULL,
  awarded_by TEXT NOT NULL,
  awarded_at DATETIME NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	t.Cleanup(func() {
		db.Exec("DELETE FROM rider_bonuses")
	})
	return db
}

func insertBonus(t *testing.T, repo BonusRepository, riderID uuid.UUID, amount string, awardedAt time.Time) {
	t.Helper()
	_, err := repo.Create(context.Background(), &models.RiderBonus{
		ID:        uuid.New(),
		RiderID:   riderID,
		Amount:    decimal.RequireFromString(amount),
		Reason:    "Weekend surge cover",
		AwardedBy: "ops@piersideeats.co.uk",
		AwardedAt: awardedAt,
	})
	require.NoError(t, err)
}

func TestBonusRepositorySumByRiderBetween(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewBonusRepository(db)
	ctx := context.Background()

	riderA := uuid.New()
	riderB := uuid.New()
	from := time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	insertBonus(t, repo, riderA, "5.00", from.Add(24*time.Hour))
	insertBonus(t, repo, riderA, "2.50", from.Add(48*time.Hour))
	insertBonus(t, repo, riderB, "10.00", from.Add(72*time.Hour))
	// Outside the window on both sides.
	insertBonus(t, repo, riderA, "99.00", from.Add(-time.Hour))
	insertBonus(t, repo, riderB, "99.00", to)

	totals, err := repo.SumByRiderBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.True(t, totals[riderA].Equal(decimal.RequireFromString("7.50")), "rider A total %s", totals[riderA])
	assert.True(t, totals[riderB].Equal(decimal.RequireFromString("10.00")), "rider B total %s", totals[riderB])
}

func TestBonusRepositoryListByRider(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewBonusRepository(db)
	ctx := context.Background()

	riderID := uuid.New()
	from := time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	insertBonus(t, repo, riderID, "5.00", from.Add(24*time.Hour))
	insertBonus(t, repo, riderID, "2.50", from.Add(48*time.Hour))
	insertBonus(t, repo, uuid.New(), "10.00", from.Add(24*time.Hour))

	bonuses, err := repo.ListByRider(ctx, riderID, from, to)
	require.NoError(t, err)
	require.Len(t, bonuses, 2)
	// Most recent first.
	assert.True(t, bonuses[0].Amount.Equal(decimal.RequireFromString("2.50")))
	assert.True(t, bonuses[1].Amount.Equal(decimal.RequireFromString("5.00")))
}
