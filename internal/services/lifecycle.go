package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/events"
	"github.com/adibqt/LibroTrack/internal/metrics"
	"github.com/adibqt/LibroTrack/internal/models"
)

// Lifecycle is the entry point for every lending operation. Each call runs
// in a single store transaction; events, notifications and metrics are
// emitted only after it commits and their failures are logged, not returned.
type Lifecycle struct {
	store        database.Store
	catalog      *CatalogStore
	loans        *LoanLedger
	reservations *ReservationQueue
	fines        *FineAssessor
	policy       Policy

	publisher     events.Publisher
	notifications NotificationQueue
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Lifecycle
type Option func(*Lifecycle)

func WithPublisher(p events.Publisher) Option {
	return func(l *Lifecycle) { l.publisher = p }
}

func WithNotifications(n NotificationQueue) Option {
	return func(l *Lifecycle) { l.notifications = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// NewLifecycle wires the lending components over store
func NewLifecycle(store database.Store, policy Policy, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:     store,
		policy:    policy,
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}

	l.catalog = NewCatalogStore()
	l.fines = NewFineAssessor(l.now)
	l.reservations = NewReservationQueue(l.catalog, policy, l.now)
	l.loans = NewLoanLedger(l.catalog, l.reservations, l.fines, policy, l.now)
	return l
}

// Policy returns the lending rules in effect
func (l *Lifecycle) Policy() Policy {
	return l.policy
}

// inTx runs fn in one store transaction and records the outcome under op
func inTx[T any](ctx context.Context, l *Lifecycle, op string, fn func(q database.Querier) (T, error)) (T, error) {
	var out T
	err := l.store.InTx(ctx, func(q database.Querier) error {
		var err error
		out, err = fn(q)
		return err
	})
	l.metrics.Observe(op, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func requireStaff(caller models.Identity, action string) error {
	if !caller.IsStaff() {
		return forbiddenError("only staff may %s", action)
	}
	return nil
}

func requireSelfOrStaff(caller models.Identity, userID int64) error {
	if !caller.CanActFor(userID) {
		return forbiddenError("member %d cannot act for member %d", caller.UserID, userID)
	}
	return nil
}

func bookKey(bookID int64) string {
	return fmt.Sprintf("book-%d", bookID)
}

func memberKey(userID int64) string {
	return fmt.Sprintf("member-%d", userID)
}

func (l *Lifecycle) publish(ctx context.Context, eventType events.Type, key string, payload any) {
	env, err := events.New(eventType, key, payload, l.now())
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := l.publisher.Publish(ctx, env); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", eventType,
			"event_id", env.EventID,
			"error", err)
	}
}

func (l *Lifecycle) fineAssessed(ctx context.Context, fine models.Fine) {
	l.metrics.FineAssessed(string(fine.FineType))
	l.publish(ctx, events.FineAssessed, memberKey(fine.UserID), fine)
}

// fulfilled announces a hold that became a loan and queues the
// reservation-ready alert for its member.
func (l *Lifecycle) fulfilled(ctx context.Context, result models.FulfillResult) {
	l.publish(ctx, events.ReservationFulfilled, bookKey(result.Reservation.BookID), result)

	if l.notifications == nil {
		return
	}
	n, err := l.notifications.Enqueue(ctx, ReadyNotification(result))
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to queue reservation ready notification",
			"reservation_id", result.Reservation.ID,
			"error", err)
		return
	}
	l.logger.InfoContext(ctx, "Reservation ready notification queued",
		"notification_id", n.ID,
		"reservation_id", result.Reservation.ID,
		"user_id", result.Reservation.UserID)
}

// Loans

// IssueLoan lends a copy to req.UserID. Members may only borrow for themselves.
func (l *Lifecycle) IssueLoan(ctx context.Context, caller models.Identity, req models.IssueLoanRequest) (models.Loan, error) {
	if err := requireSelfOrStaff(caller, req.UserID); err != nil {
		return models.Loan{}, err
	}

	loan, err := inTx(ctx, l, "loan.issue", func(q database.Querier) (models.Loan, error) {
		return l.loans.Issue(ctx, q, req)
	})
	if err != nil {
		return models.Loan{}, err
	}

	l.publish(ctx, events.LoanIssued, bookKey(loan.BookID), loan)
	return loan, nil
}

// ReturnLoan closes a loan; any overdue fine and the auto-fulfilment of the
// next hold commit together with it.
func (l *Lifecycle) ReturnLoan(ctx context.Context, caller models.Identity, loanID int64) (models.ReturnResult, error) {
	result, err := inTx(ctx, l, "loan.return", func(q database.Querier) (models.ReturnResult, error) {
		return l.loans.Return(ctx, q, loanID, caller)
	})
	if err != nil {
		return models.ReturnResult{}, err
	}

	l.publish(ctx, events.LoanReturned, bookKey(result.Loan.BookID), result.Loan)
	if result.Fine != nil {
		l.fineAssessed(ctx, *result.Fine)
	}
	if result.FulfilledReservation != nil && result.FulfilledLoan != nil {
		l.fulfilled(ctx, models.FulfillResult{Reservation: *result.FulfilledReservation, Loan: *result.FulfilledLoan})
	}
	return result, nil
}

// MarkLost closes a loan as LOST
func (l *Lifecycle) MarkLost(ctx context.Context, caller models.Identity, loanID int64) (models.LostResult, error) {
	result, err := inTx(ctx, l, "loan.lost", func(q database.Querier) (models.LostResult, error) {
		return l.loans.MarkLost(ctx, q, loanID, caller)
	})
	if err != nil {
		return models.LostResult{}, err
	}

	l.publish(ctx, events.LoanLost, bookKey(result.Loan.BookID), result.Loan)
	l.fineAssessed(ctx, result.Fine)
	return result, nil
}

// ListLoans returns a member's loans
func (l *Lifecycle) ListLoans(ctx context.Context, caller models.Identity, userID int64, status *models.LoanStatus) ([]models.LoanDetails, error) {
	if err := requireSelfOrStaff(caller, userID); err != nil {
		return nil, err
	}
	return l.loans.ListForUser(ctx, l.store, userID, status)
}

// Catalog

// GetAvailability returns the copy counters of a book
func (l *Lifecycle) GetAvailability(ctx context.Context, bookID int64) (models.Availability, error) {
	return l.catalog.GetAvailability(ctx, l.store, bookID)
}

func (l *Lifecycle) GetBook(ctx context.Context, bookID int64) (models.Book, error) {
	return l.catalog.GetBook(ctx, l.store, bookID)
}

func (l *Lifecycle) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	return l.catalog.ListBooks(ctx, l.store, filter)
}

// LowStock lists books at or below threshold available copies. A nil
// threshold uses the policy default.
func (l *Lifecycle) LowStock(ctx context.Context, caller models.Identity, threshold *int32, limit int) ([]models.Book, error) {
	if err := requireStaff(caller, "view low stock"); err != nil {
		return nil, err
	}
	t := l.policy.LowStockThreshold
	if threshold != nil {
		t = *threshold
	}
	return l.catalog.LowStock(ctx, l.store, t, limit)
}

func (l *Lifecycle) CreateBook(ctx context.Context, caller models.Identity, req models.CreateBookRequest) (models.Book, error) {
	if err := requireStaff(caller, "add books"); err != nil {
		return models.Book{}, err
	}
	return inTx(ctx, l, "book.create", func(q database.Querier) (models.Book, error) {
		return l.catalog.CreateBook(ctx, q, req)
	})
}

// UpdateBook edits a book. New copies are handed to waiting holds in the
// same transaction.
func (l *Lifecycle) UpdateBook(ctx context.Context, caller models.Identity, bookID int64, req models.UpdateBookRequest) (models.Book, error) {
	if err := requireStaff(caller, "edit books"); err != nil {
		return models.Book{}, err
	}

	type outcome struct {
		book      models.Book
		fulfilled []models.FulfillResult
	}
	out, err := inTx(ctx, l, "book.update", func(q database.Querier) (outcome, error) {
		book, err := l.catalog.UpdateBook(ctx, q, bookID, req)
		if err != nil {
			return outcome{}, err
		}
		fulfilled, err := l.reservations.Drain(ctx, q, bookID)
		if err != nil {
			return outcome{}, err
		}
		if len(fulfilled) > 0 {
			if book, err = l.catalog.GetBook(ctx, q, bookID); err != nil {
				return outcome{}, err
			}
		}
		return outcome{book: book, fulfilled: fulfilled}, nil
	})
	if err != nil {
		return models.Book{}, err
	}

	for _, result := range out.fulfilled {
		l.fulfilled(ctx, result)
	}
	return out.book, nil
}
