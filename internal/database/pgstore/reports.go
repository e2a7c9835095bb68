package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/adibqt/LibroTrack/internal/models"
)

// ReportStore serves the read-only reporting queries through sqlx so rows
// map straight onto the report structs by their db tags.
type ReportStore struct {
	db *sqlx.DB
}

// NewReportStore shares the pgx pool through the database/sql adapter
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{db: sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")}
}

func (r *ReportStore) Close() error {
	return r.db.Close()
}

func (r *ReportStore) PopularBooks(ctx context.Context, from, to time.Time, limit int) ([]models.PopularBookDetail, error) {
	rows := make([]models.PopularBookDetail, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT b.book_id, b.title, b.isbn,
			COUNT(l.loan_id) AS borrow_count,
			COUNT(DISTINCT l.user_id) AS unique_users
		FROM loans l
		JOIN books b ON b.book_id = l.book_id
		WHERE l.issue_date >= $1 AND l.issue_date < $2
		GROUP BY b.book_id, b.title, b.isbn
		ORDER BY borrow_count DESC, b.title ASC
		LIMIT $3`,
		from, to, int64(clampLimit(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular books: %w", err)
	}
	return rows, nil
}

func (r *ReportStore) MemberActivity(ctx context.Context, now time.Time, limit int) ([]models.MemberActivityDetail, error) {
	rows := make([]models.MemberActivityDetail, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT m.user_id, m.username,
			(SELECT COUNT(*) FROM loans l WHERE l.user_id = m.user_id) AS total_loans,
			(SELECT COUNT(*) FROM loans l WHERE l.user_id = m.user_id AND l.status = 'ISSUED') AS active_loans,
			(SELECT COUNT(*) FROM loans l WHERE l.user_id = m.user_id AND l.status = 'ISSUED' AND l.due_date < $1) AS overdue_loans,
			(SELECT COUNT(*) FROM reservations r WHERE r.user_id = m.user_id AND r.status = 'PENDING') AS pending_reservations,
			(SELECT COALESCE(SUM(f.amount), 0) FROM fines f WHERE f.user_id = m.user_id AND f.status = 'UNPAID') AS unpaid_fines
		FROM members m
		ORDER BY total_loans DESC, m.username ASC
		LIMIT $2`,
		now, int64(clampLimit(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query member activity: %w", err)
	}
	return rows, nil
}

func (r *ReportStore) FinesSummary(ctx context.Context) ([]models.FinesSummaryRow, error) {
	rows := make([]models.FinesSummaryRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, fine_type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM fines
		GROUP BY status, fine_type
		ORDER BY status, fine_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fines summary: %w", err)
	}
	return rows, nil
}
