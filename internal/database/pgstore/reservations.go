package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

const reservationColumns = `reservation_id, user_id, book_id, reservation_date, expiry_date, priority_level, status, loan_id`

func scanReservation(row pgx.Row) (models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.BookID, &r.ReservationDate, &r.ExpiryDate, &r.PriorityLevel, &r.Status, &r.LoanID)
	return r, translate(err)
}

func (q *Queries) CreateReservation(ctx context.Context, r models.Reservation) (models.Reservation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO reservations (user_id, book_id, reservation_date, expiry_date, priority_level, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+reservationColumns,
		r.UserID, r.BookID, r.ReservationDate, r.ExpiryDate, r.PriorityLevel, r.Status,
	)
	return scanReservation(row)
}

func (q *Queries) GetReservation(ctx context.Context, id int64) (models.Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE reservation_id = $1`, id))
}

func (q *Queries) GetReservationForUpdate(ctx context.Context, id int64) (models.Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE reservation_id = $1 FOR UPDATE`, id))
}

func (q *Queries) FindPendingReservation(ctx context.Context, userID, bookID int64) (models.Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE user_id = $1 AND book_id = $2 AND status = $3`,
		userID, bookID, models.ReservationStatusPending,
	))
}

func (q *Queries) PendingReservations(ctx context.Context, bookID int64) ([]models.Reservation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE book_id = $1 AND status = $2
		ORDER BY priority_level ASC, reservation_date ASC, reservation_id ASC
		FOR UPDATE`,
		bookID, models.ReservationStatusPending,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var queue []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		queue = append(queue, r)
	}
	return queue, translate(rows.Err())
}

func (q *Queries) UpdateReservationStatus(ctx context.Context, id int64, status models.ReservationStatus, loanID *int64) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE reservations SET status = $2, loan_id = COALESCE($3, loan_id) WHERE reservation_id = $1`,
		id, status, loanID,
	)
	if err != nil {
		return translate(fmt.Errorf("failed to update reservation %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (q *Queries) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationDetails, error) {
	ds := dialect.From(goqu.T("reservations").As("r")).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.user_id").Eq(goqu.I("r.user_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("r.book_id")))).
		Select(
			"r.reservation_id", "r.user_id", "r.book_id", "r.reservation_date", "r.expiry_date",
			"r.priority_level", "r.status", "r.loan_id",
			"m.username", "m.first_name", "m.last_name", "m.email",
			"b.title", "b.isbn",
		).
		Order(goqu.I("r.reservation_date").Desc(), goqu.I("r.reservation_id").Desc()).
		Limit(clampLimit(filter.Limit))

	if filter.Status != nil {
		ds = ds.Where(goqu.I("r.status").Eq(string(*filter.Status)))
	}
	if filter.UserID != nil {
		ds = ds.Where(goqu.I("r.user_id").Eq(*filter.UserID))
	}
	if filter.BookID != nil {
		ds = ds.Where(goqu.I("r.book_id").Eq(*filter.BookID))
	}

	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ReservationDetails, 0)
	for rows.Next() {
		var d models.ReservationDetails
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.BookID, &d.ReservationDate, &d.ExpiryDate,
			&d.PriorityLevel, &d.Status, &d.LoanID,
			&d.Username, &d.FirstName, &d.LastName, &d.Email,
			&d.BookTitle, &d.ISBN,
		); err != nil {
			return nil, translate(err)
		}
		out = append(out, d)
	}
	return out, translate(rows.Err())
}

func (q *Queries) ListDueReservationIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := q.db.Query(ctx, `
		SELECT reservation_id
		FROM reservations
		WHERE status = $1 AND expiry_date < $2
		ORDER BY expiry_date ASC, reservation_id ASC
		LIMIT $3`,
		models.ReservationStatusPending, now, int64(clampLimit(limit)),
	)
	if err != nil {
		return nil, translate(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, translate(err)
}

func (q *Queries) AppendReservationHistory(ctx context.Context, h models.ReservationHistory) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO reservation_history (reservation_id, user_id, book_id, action, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ReservationID, h.UserID, h.BookID, h.Action, h.FromStatus, h.ToStatus, h.ChangedAt,
	)
	return translate(err)
}

func (q *Queries) ListReservationHistory(ctx context.Context, filter models.HistoryFilter) ([]models.ReservationHistory, error) {
	ds := dialect.From(goqu.T("reservation_history").As("h")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("h.book_id")))).
		Select("h.history_id", "h.reservation_id", "h.user_id", "h.book_id", "h.action",
			"h.from_status", "h.to_status", "h.changed_at", "b.title").
		Where(goqu.I("h.user_id").Eq(filter.UserID)).
		Order(goqu.I("h.changed_at").Desc(), goqu.I("h.history_id").Desc()).
		Limit(clampLimit(filter.Limit))

	if filter.ToStatus != nil {
		ds = ds.Where(goqu.I("h.to_status").Eq(string(*filter.ToStatus)))
	}

	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ReservationHistory, 0)
	for rows.Next() {
		var h models.ReservationHistory
		if err := rows.Scan(
			&h.ID, &h.ReservationID, &h.UserID, &h.BookID, &h.Action,
			&h.FromStatus, &h.ToStatus, &h.ChangedAt, &h.BookTitle,
		); err != nil {
			return nil, translate(err)
		}
		out = append(out, h)
	}
	return out, translate(rows.Err())
}
