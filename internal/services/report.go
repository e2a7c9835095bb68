package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/models"
)

const defaultReportLimit = 10

// ReportQuerier interface defines the database operations needed for reports
type ReportQuerier interface {
	PopularBooks(ctx context.Context, from, to time.Time, limit int) ([]models.PopularBookDetail, error)
	MemberActivity(ctx context.Context, now time.Time, limit int) ([]models.MemberActivityDetail, error)
	FinesSummary(ctx context.Context) ([]models.FinesSummaryRow, error)
}

// ReportService handles the read-only lending reports
type ReportService struct {
	db  ReportQuerier
	now func() time.Time
}

// NewReportService creates a new report service instance
func NewReportService(db ReportQuerier) *ReportService {
	return &ReportService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// PopularBooks ranks titles by loans issued within the period
func (rs *ReportService) PopularBooks(ctx context.Context, period models.ReportPeriod) (*models.PopularBooksReport, error) {
	now := rs.now()
	if period.To.IsZero() {
		period.To = now
	}
	if period.From.IsZero() {
		period.From = period.To.AddDate(0, 0, -30)
	}
	if err := rs.validateDateRange(period.From, period.To); err != nil {
		return nil, err
	}
	limit, err := reportLimit(period.Limit)
	if err != nil {
		return nil, err
	}

	books, err := rs.db.PopularBooks(ctx, period.From, period.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get popular books: %w", err)
	}

	return &models.PopularBooksReport{
		Books:       books,
		From:        period.From,
		To:          period.To,
		GeneratedAt: now,
	}, nil
}

// MemberActivity summarises loans, holds and unpaid fines per member
func (rs *ReportService) MemberActivity(ctx context.Context, limit int) (*models.MemberActivityReport, error) {
	limit, err := reportLimit(limit)
	if err != nil {
		return nil, err
	}

	now := rs.now()
	members, err := rs.db.MemberActivity(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get member activity: %w", err)
	}

	return &models.MemberActivityReport{
		Members:     members,
		GeneratedAt: now,
	}, nil
}

// FinesSummary aggregates fines by status and type
func (rs *ReportService) FinesSummary(ctx context.Context) (*models.FinesSummaryReport, error) {
	rows, err := rs.db.FinesSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fines summary: %w", err)
	}

	totalUnpaid := decimal.Zero
	for _, row := range rows {
		if row.Status == models.FineStatusUnpaid {
			totalUnpaid = totalUnpaid.Add(row.Total)
		}
	}

	return &models.FinesSummaryReport{
		Rows:        rows,
		TotalUnpaid: totalUnpaid,
		GeneratedAt: rs.now(),
	}, nil
}

// validateDateRange validates that the date range is valid
func (rs *ReportService) validateDateRange(from, to time.Time) error {
	if from.After(to) {
		return validationError("start date cannot be after end date")
	}
	if to.Sub(from) > 366*24*time.Hour {
		return validationError("date range cannot exceed one year")
	}
	return nil
}

func reportLimit(limit int) (int, error) {
	if err := validateLimit(limit); err != nil {
		return 0, err
	}
	if limit == 0 {
		return defaultReportLimit, nil
	}
	return limit, nil
}
