package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adibqt/LibroTrack/internal/config"
)

func TestPolicy_OverdueFine(t *testing.T) {
	policy := DefaultPolicy()
	due := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		returnedAt time.Time
		wantDays   int64
		wantAmount string
	}{
		{name: "early", returnedAt: due.Add(-48 * time.Hour), wantDays: 0, wantAmount: "0.00"},
		{name: "exactly on due date", returnedAt: due, wantDays: 0, wantAmount: "0.00"},
		{name: "one minute late", returnedAt: due.Add(time.Minute), wantDays: 1, wantAmount: "0.50"},
		{name: "exactly one day late", returnedAt: due.Add(24 * time.Hour), wantDays: 1, wantAmount: "0.50"},
		{name: "a day and an hour late", returnedAt: due.Add(25 * time.Hour), wantDays: 2, wantAmount: "1.00"},
		{name: "six days late", returnedAt: due.AddDate(0, 0, 6), wantDays: 6, wantAmount: "3.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, amount := policy.OverdueFine(due, tt.returnedAt)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, tt.wantAmount, amount.StringFixed(2))
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.LendingConfig{
		DefaultDueDays:    21,
		MaxDueDays:        60,
		FinePerDay:        "0.25",
		MaxUnpaidFines:    "5.00",
		LostItemFee:       "30",
		DefaultExpiryDays: 3,
		MaxExpiryDays:     10,
		DefaultPriority:   2,
		MaxPriority:       4,
		SweepBatchSize:    100,
		LowStockThreshold: 1,
		DefaultMaxBooks:   8,
	}

	policy, err := PolicyFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, 21, policy.DefaultDueDays)
	assert.Equal(t, 60, policy.MaxDueDays)
	assert.Equal(t, "0.25", policy.FinePerDay.StringFixed(2))
	assert.Equal(t, "5.00", policy.MaxUnpaidFines.StringFixed(2))
	assert.Equal(t, "30.00", policy.LostItemFee.StringFixed(2))
	assert.Equal(t, int32(1), policy.LowStockThreshold)
	assert.Equal(t, int32(8), policy.DefaultMaxBooks)
	assert.Equal(t, 100, policy.SweepBatchSize)

	cfg.FinePerDay = "half a dollar"
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)
}

func TestValidateLimit(t *testing.T) {
	assert.NoError(t, validateLimit(0))
	assert.NoError(t, validateLimit(maxListLimit))
	assert.ErrorIs(t, validateLimit(-1), ErrValidation)
	assert.ErrorIs(t, validateLimit(maxListLimit+1), ErrValidation)
	assert.ErrorContains(t, validateLimit(-1), "between 0 and 500 (0 = default)")
}
