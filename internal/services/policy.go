package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/config"
)

const maxListLimit = 500

// Policy holds the lending rules shared by the ledger, queue and assessor
type Policy struct {
	DefaultDueDays    int
	MaxDueDays        int
	FinePerDay        decimal.Decimal
	MaxUnpaidFines    decimal.Decimal
	LostItemFee       decimal.Decimal
	DefaultExpiryDays int
	MaxExpiryDays     int
	DefaultPriority   int
	MaxPriority       int
	LowStockThreshold int32
	SweepBatchSize    int
	DefaultMaxBooks   int32
}

// DefaultPolicy returns the rules the service ships with
func DefaultPolicy() Policy {
	return Policy{
		DefaultDueDays:    14,
		MaxDueDays:        90,
		FinePerDay:        decimal.RequireFromString("0.50"),
		MaxUnpaidFines:    decimal.RequireFromString("10.00"),
		LostItemFee:       decimal.RequireFromString("25.00"),
		DefaultExpiryDays: 7,
		MaxExpiryDays:     30,
		DefaultPriority:   1,
		MaxPriority:       5,
		LowStockThreshold: 2,
		SweepBatchSize:    500,
		DefaultMaxBooks:   5,
	}
}

// PolicyFromConfig builds a Policy from the lending section of the config
func PolicyFromConfig(cfg config.LendingConfig) (Policy, error) {
	finePerDay, maxUnpaid, lostFee, err := cfg.Amounts()
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		DefaultDueDays:    cfg.DefaultDueDays,
		MaxDueDays:        cfg.MaxDueDays,
		FinePerDay:        finePerDay,
		MaxUnpaidFines:    maxUnpaid,
		LostItemFee:       lostFee,
		DefaultExpiryDays: cfg.DefaultExpiryDays,
		MaxExpiryDays:     cfg.MaxExpiryDays,
		DefaultPriority:   cfg.DefaultPriority,
		MaxPriority:       cfg.MaxPriority,
		LowStockThreshold: int32(cfg.LowStockThreshold),
		SweepBatchSize:    cfg.SweepBatchSize,
		DefaultMaxBooks:   int32(cfg.DefaultMaxBooks),
	}, nil
}

// OverdueFine prices a return at returnedAt of a loan due at dueDate. Every
// started 24 hour period past the due date is charged as one day.
func (p Policy) OverdueFine(dueDate, returnedAt time.Time) (days int64, amount decimal.Decimal) {
	late := returnedAt.Sub(dueDate)
	if late <= 0 {
		return 0, decimal.Zero
	}
	const day = 24 * time.Hour
	days = int64(late / day)
	if late%day != 0 {
		days++
	}
	return days, p.FinePerDay.Mul(decimal.NewFromInt(days))
}

func validateLimit(limit int) error {
	if limit < 0 || limit > maxListLimit {
		return validationError("limit must be between 0 and %d (0 = default)", maxListLimit)
	}
	return nil
}
