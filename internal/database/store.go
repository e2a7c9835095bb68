package database

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness rule
	ErrDuplicate = errors.New("duplicate record")
	// ErrCheckViolation is returned when a write breaks a table CHECK
	// constraint, such as the book copy counters
	ErrCheckViolation = errors.New("check constraint violated")
)

// Querier is the set of persistence operations the lending services need.
// Methods suffixed ForUpdate lock the returned row until the surrounding
// transaction ends. Callers lock the book row first, then loan or
// reservation rows, and the member row last.
type Querier interface {
	BookQuerier
	MemberQuerier
	LoanQuerier
	ReservationQuerier
	FineQuerier
}

type BookQuerier interface {
	GetBook(ctx context.Context, id int64) (models.Book, error)
	GetBookForUpdate(ctx context.Context, id int64) (models.Book, error)
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	ListLowStockBooks(ctx context.Context, threshold int32, limit int) ([]models.Book, error)
	CreateBook(ctx context.Context, book models.Book) (models.Book, error)
	UpdateBook(ctx context.Context, book models.Book) (models.Book, error)
	SetBookCopies(ctx context.Context, id int64, total, available, reserved int32, status models.BookStatus) error
}

type MemberQuerier interface {
	GetMember(ctx context.Context, id int64) (models.Member, error)
	GetMemberForUpdate(ctx context.Context, id int64) (models.Member, error)
}

type LoanQuerier interface {
	CreateLoan(ctx context.Context, loan models.Loan) (models.Loan, error)
	GetLoan(ctx context.Context, id int64) (models.Loan, error)
	GetLoanForUpdate(ctx context.Context, id int64) (models.Loan, error)
	UpdateLoanStatus(ctx context.Context, id int64, status models.LoanStatus, returnDate *time.Time) error
	CountActiveLoans(ctx context.Context, userID int64) (int, error)
	ListLoansByUser(ctx context.Context, userID int64, status *models.LoanStatus) ([]models.LoanDetails, error)
}

type ReservationQuerier interface {
	CreateReservation(ctx context.Context, r models.Reservation) (models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (models.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id int64) (models.Reservation, error)
	FindPendingReservation(ctx context.Context, userID, bookID int64) (models.Reservation, error)
	// PendingReservations locks the book's queue and returns it ordered by
	// priority_level, reservation_date then reservation_id.
	PendingReservations(ctx context.Context, bookID int64) ([]models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, status models.ReservationStatus, loanID *int64) error
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationDetails, error)
	ListDueReservationIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)
	AppendReservationHistory(ctx context.Context, h models.ReservationHistory) error
	ListReservationHistory(ctx context.Context, filter models.HistoryFilter) ([]models.ReservationHistory, error)
}

type FineQuerier interface {
	CreateFine(ctx context.Context, fine models.Fine) (models.Fine, error)
	GetFine(ctx context.Context, id int64) (models.Fine, error)
	GetFineForUpdate(ctx context.Context, id int64) (models.Fine, error)
	UpdateFineStatus(ctx context.Context, id int64, status models.FineStatus, resolvedAt time.Time) error
	ListFines(ctx context.Context, filter models.FineFilter) ([]models.Fine, error)
	SumUnpaidFines(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// Store is the transactional entry point to persistence. Reads made through
// the embedded Querier run outside any transaction.
type Store interface {
	Querier
	// InTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(q Querier) error) error
	Health(ctx context.Context) error
}
