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

const loanColumns = `loan_id, user_id, book_id, issue_date, due_date, return_date, status`

func scanLoan(row pgx.Row) (models.Loan, error) {
	var l models.Loan
	err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.IssueDate, &l.DueDate, &l.ReturnDate, &l.Status)
	return l, translate(err)
}

const memberColumns = `user_id, username, email, first_name, last_name, max_books_allowed, status`

func scanMember(row pgx.Row) (models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.Username, &m.Email, &m.FirstName, &m.LastName, &m.MaxBooksAllowed, &m.Status)
	return m, translate(err)
}

func (q *Queries) GetMember(ctx context.Context, id int64) (models.Member, error) {
	return scanMember(q.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_id = $1`, id))
}

// GetMemberForUpdate serializes borrowing decisions for one member
func (q *Queries) GetMemberForUpdate(ctx context.Context, id int64) (models.Member, error) {
	return scanMember(q.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_id = $1 FOR UPDATE`, id))
}

// UpsertMember copies a user record from the identity service into the
// lending read model
func (q *Queries) UpsertMember(ctx context.Context, m models.Member) (models.Member, error) {
	if m.MaxBooksAllowed == 0 {
		m.MaxBooksAllowed = models.DefaultMaxBooksAllowed
	}
	if m.Status == "" {
		m.Status = models.MemberStatusActive
	}
	var out models.Member
	err := q.db.QueryRow(ctx, `
		INSERT INTO members (user_id, username, email, first_name, last_name, max_books_allowed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			max_books_allowed = EXCLUDED.max_books_allowed,
			status = EXCLUDED.status
		RETURNING user_id, username, email, first_name, last_name, max_books_allowed, status`,
		m.ID, m.Username, m.Email, m.FirstName, m.LastName, m.MaxBooksAllowed, m.Status,
	).Scan(&out.ID, &out.Username, &out.Email, &out.FirstName, &out.LastName, &out.MaxBooksAllowed, &out.Status)
	return out, translate(err)
}

func (q *Queries) CreateLoan(ctx context.Context, l models.Loan) (models.Loan, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO loans (user_id, book_id, issue_date, due_date, return_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+loanColumns,
		l.UserID, l.BookID, l.IssueDate, l.DueDate, l.ReturnDate, l.Status,
	)
	return scanLoan(row)
}

func (q *Queries) GetLoan(ctx context.Context, id int64) (models.Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE loan_id = $1`, id))
}

func (q *Queries) GetLoanForUpdate(ctx context.Context, id int64) (models.Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE loan_id = $1 FOR UPDATE`, id))
}

func (q *Queries) UpdateLoanStatus(ctx context.Context, id int64, status models.LoanStatus, returnDate *time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE loans SET status = $2, return_date = $3 WHERE loan_id = $1`,
		id, status, returnDate,
	)
	if err != nil {
		return translate(fmt.Errorf("failed to update loan %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (q *Queries) CountActiveLoans(ctx context.Context, userID int64) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM loans WHERE user_id = $1 AND status = $2`,
		userID, models.LoanStatusIssued,
	).Scan(&n)
	return n, translate(err)
}

func (q *Queries) ListLoansByUser(ctx context.Context, userID int64, status *models.LoanStatus) ([]models.LoanDetails, error) {
	ds := dialect.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("l.book_id")))).
		Select("l.loan_id", "l.user_id", "l.book_id", "l.issue_date", "l.due_date", "l.return_date", "l.status",
			"b.title", "b.isbn").
		Where(goqu.I("l.user_id").Eq(userID)).
		Order(goqu.I("l.issue_date").Desc(), goqu.I("l.loan_id").Desc())

	if status != nil {
		ds = ds.Where(goqu.I("l.status").Eq(string(*status)))
	}

	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]models.LoanDetails, 0)
	for rows.Next() {
		var d models.LoanDetails
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.BookID, &d.IssueDate, &d.DueDate, &d.ReturnDate, &d.Status,
			&d.BookTitle, &d.ISBN,
		); err != nil {
			return nil, translate(err)
		}
		loans = append(loans, d)
	}
	return loans, translate(rows.Err())
}
