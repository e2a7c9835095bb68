package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

// ReservationQueue manages the per-book queue of PENDING holds. Holds are
// served by priority_level, then reservation_date, then reservation_id.
type ReservationQueue struct {
	catalog *CatalogStore
	policy  Policy
	now     func() time.Time
}

// NewReservationQueue creates a new reservation queue
func NewReservationQueue(catalog *CatalogStore, policy Policy, now func() time.Time) *ReservationQueue {
	return &ReservationQueue{
		catalog: catalog,
		policy:  policy,
		now:     now,
	}
}

// Create places a hold. A PENDING hold for the same member and book is
// returned as is with Existing set. A hold placed while a copy is on the
// shelf is fulfilled straight away, so the member must be allowed to borrow.
func (r *ReservationQueue) Create(ctx context.Context, q database.Querier, req models.CreateReservationRequest) (models.CreateReservationResult, error) {
	existing, err := q.FindPendingReservation(ctx, req.UserID, req.BookID)
	switch {
	case err == nil:
		return models.CreateReservationResult{Reservation: existing, Existing: true}, nil
	case !errors.Is(err, database.ErrNotFound):
		return models.CreateReservationResult{}, fmt.Errorf("failed to check pending reservations: %w", err)
	}

	if _, err := q.GetMember(ctx, req.UserID); err != nil {
		return models.CreateReservationResult{}, lookupError("member", req.UserID, err)
	}
	if _, err := q.GetBook(ctx, req.BookID); err != nil {
		return models.CreateReservationResult{}, lookupError("book", req.BookID, err)
	}

	expiryDays := r.policy.DefaultExpiryDays
	if req.ExpiryDays != nil {
		expiryDays = *req.ExpiryDays
	}
	if expiryDays < 1 || expiryDays > r.policy.MaxExpiryDays {
		return models.CreateReservationResult{}, validationError("expiry_days must be between 1 and %d", r.policy.MaxExpiryDays)
	}
	priority := r.policy.DefaultPriority
	if req.PriorityLevel != nil {
		priority = *req.PriorityLevel
	}
	if priority < 1 || priority > r.policy.MaxPriority {
		return models.CreateReservationResult{}, validationError("priority_level must be between 1 and %d", r.policy.MaxPriority)
	}

	book, err := r.catalog.LockBook(ctx, q, req.BookID)
	if err != nil {
		return models.CreateReservationResult{}, err
	}
	if book.AvailableCopies > 0 {
		if _, err := lockBorrower(ctx, q, r.policy, req.UserID); err != nil {
			return models.CreateReservationResult{}, err
		}
	}

	now := r.now()
	reservation, err := q.CreateReservation(ctx, models.Reservation{
		UserID:          req.UserID,
		BookID:          req.BookID,
		ReservationDate: now,
		ExpiryDate:      now.AddDate(0, 0, expiryDays),
		PriorityLevel:   int32(priority),
		Status:          models.ReservationStatusPending,
	})
	if err != nil {
		return models.CreateReservationResult{}, fmt.Errorf("failed to create reservation: %w", err)
	}

	if _, err := r.catalog.AdjustCopies(ctx, q, req.BookID, 0, 1); err != nil {
		return models.CreateReservationResult{}, err
	}
	if err := r.appendHistory(ctx, q, reservation, models.ReservationActionCreate, ""); err != nil {
		return models.CreateReservationResult{}, err
	}

	result := models.CreateReservationResult{Reservation: reservation}
	fulfilled, err := r.TryAutoFulfill(ctx, q, req.BookID)
	if err != nil {
		return models.CreateReservationResult{}, err
	}
	if fulfilled != nil {
		result.Fulfilled = fulfilled
		if fulfilled.Reservation.ID == reservation.ID {
			result.Reservation = fulfilled.Reservation
		}
	}
	return result, nil
}

// Cancel withdraws a PENDING hold and releases its reserved copy
func (r *ReservationQueue) Cancel(ctx context.Context, q database.Querier, reservationID int64, caller models.Identity) (models.Reservation, error) {
	current, err := q.GetReservation(ctx, reservationID)
	if err != nil {
		return models.Reservation{}, lookupError("reservation", reservationID, err)
	}
	if !caller.CanActFor(current.UserID) {
		return models.Reservation{}, forbiddenError("reservation %d belongs to another member", reservationID)
	}

	reservation, err := r.lockPending(ctx, q, current.BookID, reservationID)
	if err != nil {
		return models.Reservation{}, err
	}
	return r.release(ctx, q, reservation, models.ReservationStatusCancelled, models.ReservationActionCancel)
}

// Fulfill promotes a PENDING hold to a loan for its member
func (r *ReservationQueue) Fulfill(ctx context.Context, q database.Querier, reservationID int64) (models.FulfillResult, error) {
	current, err := q.GetReservation(ctx, reservationID)
	if err != nil {
		return models.FulfillResult{}, lookupError("reservation", reservationID, err)
	}

	reservation, err := r.lockPending(ctx, q, current.BookID, reservationID)
	if err != nil {
		return models.FulfillResult{}, err
	}
	book, err := q.GetBookForUpdate(ctx, reservation.BookID)
	if err != nil {
		return models.FulfillResult{}, lookupError("book", reservation.BookID, err)
	}
	if book.AvailableCopies == 0 {
		return models.FulfillResult{}, fmt.Errorf("%w: no copy of book %d is available", ErrOutOfStock, book.ID)
	}
	if _, err := lockBorrower(ctx, q, r.policy, reservation.UserID); err != nil {
		return models.FulfillResult{}, err
	}
	return r.fulfill(ctx, q, reservation)
}

// TryAutoFulfill fulfills the first hold in queue order whose member may
// still borrow, when a copy is on the shelf. Holds of members over a limit
// stay PENDING. It returns nil when nothing was fulfilled.
func (r *ReservationQueue) TryAutoFulfill(ctx context.Context, q database.Querier, bookID int64) (*models.FulfillResult, error) {
	book, err := r.catalog.LockBook(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	if book.AvailableCopies == 0 {
		return nil, nil
	}

	queue, err := q.PendingReservations(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation queue of book %d: %w", bookID, err)
	}
	for _, next := range queue {
		if _, err := lockBorrower(ctx, q, r.policy, next.UserID); err != nil {
			if errors.Is(err, ErrBorrowingLimit) {
				continue
			}
			return nil, err
		}
		result, err := r.fulfill(ctx, q, next)
		if err != nil {
			return nil, err
		}
		return &result, nil
	}
	return nil, nil
}

// Drain fulfills holds until the book has no free copy or no PENDING hold
func (r *ReservationQueue) Drain(ctx context.Context, q database.Querier, bookID int64) ([]models.FulfillResult, error) {
	var fulfilled []models.FulfillResult
	for {
		result, err := r.TryAutoFulfill(ctx, q, bookID)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return fulfilled, nil
		}
		fulfilled = append(fulfilled, *result)
	}
}

// ExpireOne expires a single due hold. The boolean is false when the hold
// was no longer PENDING or not yet due, which callers count as already
// resolved.
func (r *ReservationQueue) ExpireOne(ctx context.Context, q database.Querier, reservationID int64) (models.Reservation, bool, error) {
	current, err := q.GetReservation(ctx, reservationID)
	if err != nil {
		return models.Reservation{}, false, lookupError("reservation", reservationID, err)
	}
	if _, err := r.catalog.LockBook(ctx, q, current.BookID); err != nil {
		return models.Reservation{}, false, err
	}

	reservation, err := q.GetReservationForUpdate(ctx, reservationID)
	if err != nil {
		return models.Reservation{}, false, lookupError("reservation", reservationID, err)
	}
	if reservation.Status != models.ReservationStatusPending || !reservation.ExpiryDate.Before(r.now()) {
		return reservation, false, nil
	}

	expired, err := r.release(ctx, q, reservation, models.ReservationStatusExpired, models.ReservationActionExpire)
	if err != nil {
		return models.Reservation{}, false, err
	}
	return expired, true, nil
}

// List returns reservations joined with member and book details, newest first
func (r *ReservationQueue) List(ctx context.Context, q database.ReservationQuerier, filter models.ReservationFilter) ([]models.ReservationDetails, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}
	if filter.Status != nil && !models.ValidateReservationStatus(*filter.Status) {
		return nil, validationError("unknown reservation status %q", *filter.Status)
	}

	reservations, err := q.ListReservations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// History returns a member's reservation transitions, newest first
func (r *ReservationQueue) History(ctx context.Context, q database.ReservationQuerier, filter models.HistoryFilter) ([]models.ReservationHistory, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}
	if filter.ToStatus != nil && !models.ValidateReservationStatus(*filter.ToStatus) {
		return nil, validationError("unknown reservation status %q", *filter.ToStatus)
	}

	history, err := q.ListReservationHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation history: %w", err)
	}
	return history, nil
}

// lockPending locks the book and then the reservation, and requires the
// reservation to still be PENDING.
func (r *ReservationQueue) lockPending(ctx context.Context, q database.Querier, bookID, reservationID int64) (models.Reservation, error) {
	if _, err := r.catalog.LockBook(ctx, q, bookID); err != nil {
		return models.Reservation{}, err
	}
	reservation, err := q.GetReservationForUpdate(ctx, reservationID)
	if err != nil {
		return models.Reservation{}, lookupError("reservation", reservationID, err)
	}
	if reservation.Status != models.ReservationStatusPending {
		return models.Reservation{}, invalidStateError("reservation %d is %s", reservationID, reservation.Status)
	}
	return reservation, nil
}

// fulfill turns a locked PENDING hold into a loan. The caller has checked
// that a copy is available.
func (r *ReservationQueue) fulfill(ctx context.Context, q database.Querier, reservation models.Reservation) (models.FulfillResult, error) {
	loan, err := openLoan(ctx, q, reservation.UserID, reservation.BookID, r.now(), r.policy.DefaultDueDays)
	if err != nil {
		return models.FulfillResult{}, err
	}
	if _, err := r.catalog.AdjustCopies(ctx, q, reservation.BookID, -1, -1); err != nil {
		return models.FulfillResult{}, err
	}
	if err := r.transition(ctx, q, &reservation, models.ReservationStatusFulfilled, &loan.ID); err != nil {
		return models.FulfillResult{}, err
	}
	if err := r.appendHistory(ctx, q, reservation, models.ReservationActionFulfill, models.ReservationStatusPending); err != nil {
		return models.FulfillResult{}, err
	}
	return models.FulfillResult{Reservation: reservation, Loan: loan}, nil
}

// release moves a locked PENDING hold to a terminal state that gives back
// its reserved copy.
func (r *ReservationQueue) release(ctx context.Context, q database.Querier, reservation models.Reservation, to models.ReservationStatus, action models.ReservationAction) (models.Reservation, error) {
	if err := r.transition(ctx, q, &reservation, to, nil); err != nil {
		return models.Reservation{}, err
	}
	if _, err := r.catalog.AdjustCopies(ctx, q, reservation.BookID, 0, -1); err != nil {
		return models.Reservation{}, err
	}
	if err := r.appendHistory(ctx, q, reservation, action, models.ReservationStatusPending); err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (r *ReservationQueue) transition(ctx context.Context, q database.ReservationQuerier, reservation *models.Reservation, to models.ReservationStatus, loanID *int64) error {
	if !models.IsValidReservationTransition(reservation.Status, to) {
		return invalidStateError("reservation %d cannot move from %s to %s", reservation.ID, reservation.Status, to)
	}
	if err := q.UpdateReservationStatus(ctx, reservation.ID, to, loanID); err != nil {
		return fmt.Errorf("failed to update reservation %d: %w", reservation.ID, err)
	}
	reservation.Status = to
	if loanID != nil {
		reservation.LoanID = loanID
	}
	return nil
}

func (r *ReservationQueue) appendHistory(ctx context.Context, q database.ReservationQuerier, reservation models.Reservation, action models.ReservationAction, from models.ReservationStatus) error {
	err := q.AppendReservationHistory(ctx, models.ReservationHistory{
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		BookID:        reservation.BookID,
		Action:        action,
		FromStatus:    from,
		ToStatus:      reservation.Status,
		ChangedAt:     r.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record history of reservation %d: %w", reservation.ID, err)
	}
	return nil
}
