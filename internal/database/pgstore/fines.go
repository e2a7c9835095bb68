package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

const fineColumns = `fine_id, user_id, loan_id, amount, fine_type, status, fine_date, resolved_at`

var fineSelect = []any{"fine_id", "user_id", "loan_id", "amount", "fine_type", "status", "fine_date", "resolved_at"}

func scanFine(row pgx.Row) (models.Fine, error) {
	var f models.Fine
	err := row.Scan(&f.ID, &f.UserID, &f.LoanID, &f.Amount, &f.FineType, &f.Status, &f.FineDate, &f.ResolvedAt)
	return f, translate(err)
}

func (q *Queries) CreateFine(ctx context.Context, f models.Fine) (models.Fine, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO fines (user_id, loan_id, amount, fine_type, status, fine_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+fineColumns,
		f.UserID, f.LoanID, f.Amount, f.FineType, f.Status, f.FineDate,
	)
	return scanFine(row)
}

func (q *Queries) GetFine(ctx context.Context, id int64) (models.Fine, error) {
	return scanFine(q.db.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE fine_id = $1`, id))
}

func (q *Queries) GetFineForUpdate(ctx context.Context, id int64) (models.Fine, error) {
	return scanFine(q.db.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE fine_id = $1 FOR UPDATE`, id))
}

func (q *Queries) UpdateFineStatus(ctx context.Context, id int64, status models.FineStatus, resolvedAt time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE fines SET status = $2, resolved_at = $3 WHERE fine_id = $1`,
		id, status, resolvedAt,
	)
	if err != nil {
		return translate(fmt.Errorf("failed to update fine %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (q *Queries) ListFines(ctx context.Context, filter models.FineFilter) ([]models.Fine, error) {
	ds := dialect.From("fines").
		Select(fineSelect...).
		Order(goqu.I("fine_date").Desc(), goqu.I("fine_id").Desc()).
		Limit(clampLimit(filter.Limit))

	if filter.UserID != nil {
		ds = ds.Where(goqu.Ex{"user_id": *filter.UserID})
	}
	if filter.Status != nil {
		ds = ds.Where(goqu.Ex{"status": string(*filter.Status)})
	}

	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fines := make([]models.Fine, 0)
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		fines = append(fines, f)
	}
	return fines, translate(rows.Err())
}

func (q *Queries) SumUnpaidFines(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM fines WHERE user_id = $1 AND status = $2`,
		userID, models.FineStatusUnpaid,
	).Scan(&total)
	return total, translate(err)
}
