package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

// LoanLedger issues and closes loans against catalog availability
type LoanLedger struct {
	catalog      *CatalogStore
	reservations *ReservationQueue
	fines        *FineAssessor
	policy       Policy
	now          func() time.Time
}

// NewLoanLedger creates a new loan ledger
func NewLoanLedger(catalog *CatalogStore, reservations *ReservationQueue, fines *FineAssessor, policy Policy, now func() time.Time) *LoanLedger {
	return &LoanLedger{
		catalog:      catalog,
		reservations: reservations,
		fines:        fines,
		policy:       policy,
		now:          now,
	}
}

// Issue lends one copy of a book to a member
func (l *LoanLedger) Issue(ctx context.Context, q database.Querier, req models.IssueLoanRequest) (models.Loan, error) {
	dueDays := l.policy.DefaultDueDays
	if req.DueDays != nil {
		dueDays = *req.DueDays
	}
	if dueDays < 1 || dueDays > l.policy.MaxDueDays {
		return models.Loan{}, validationError("due_days must be between 1 and %d", l.policy.MaxDueDays)
	}

	if _, err := q.GetMember(ctx, req.UserID); err != nil {
		return models.Loan{}, lookupError("member", req.UserID, err)
	}
	book, err := l.catalog.LockBook(ctx, q, req.BookID)
	if err != nil {
		return models.Loan{}, err
	}
	if book.AvailableCopies == 0 {
		return models.Loan{}, fmt.Errorf("%w: no copy of book %d is available", ErrOutOfStock, book.ID)
	}
	member, err := lockBorrower(ctx, q, l.policy, req.UserID)
	if err != nil {
		return models.Loan{}, err
	}

	loan, err := openLoan(ctx, q, member.ID, book.ID, l.now(), dueDays)
	if err != nil {
		return models.Loan{}, err
	}
	if _, err := l.catalog.AdjustCopies(ctx, q, book.ID, -1, 0); err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

// lockBorrower locks the member row and checks that the member may take
// one more loan. The book row must already be locked.
func lockBorrower(ctx context.Context, q database.Querier, policy Policy, userID int64) (models.Member, error) {
	member, err := q.GetMemberForUpdate(ctx, userID)
	if err != nil {
		return models.Member{}, lookupError("member", userID, err)
	}
	if member.Status != models.MemberStatusActive {
		return models.Member{}, fmt.Errorf("%w: member %d is %s", ErrBorrowingLimit, member.ID, member.Status)
	}

	active, err := q.CountActiveLoans(ctx, member.ID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to count active loans: %w", err)
	}
	limit := member.MaxBooksAllowed
	if limit == 0 {
		limit = policy.DefaultMaxBooks
	}
	if active >= int(limit) {
		return models.Member{}, fmt.Errorf("%w: member %d already has %d of %d books", ErrBorrowingLimit, member.ID, active, limit)
	}

	unpaid, err := q.SumUnpaidFines(ctx, member.ID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to sum unpaid fines: %w", err)
	}
	if unpaid.GreaterThan(policy.MaxUnpaidFines) {
		return models.Member{}, fmt.Errorf("%w: member %d owes %s in unpaid fines", ErrBorrowingLimit, member.ID, unpaid.StringFixed(2))
	}
	return member, nil
}

// Return closes an ISSUED loan, prices any overdue fine and hands the freed
// copy to the head of the book's reservation queue.
func (l *LoanLedger) Return(ctx context.Context, q database.Querier, loanID int64, caller models.Identity) (models.ReturnResult, error) {
	loan, err := l.lockIssued(ctx, q, loanID, caller)
	if err != nil {
		return models.ReturnResult{}, err
	}

	returnedAt := l.now()
	if err := q.UpdateLoanStatus(ctx, loan.ID, models.LoanStatusReturned, &returnedAt); err != nil {
		return models.ReturnResult{}, fmt.Errorf("failed to return loan %d: %w", loan.ID, err)
	}
	loan.Status = models.LoanStatusReturned
	loan.ReturnDate = &returnedAt

	if _, err := l.catalog.AdjustCopies(ctx, q, loan.BookID, 1, 0); err != nil {
		return models.ReturnResult{}, err
	}

	result := models.ReturnResult{Loan: loan}
	if days, amount := l.policy.OverdueFine(loan.DueDate, returnedAt); days > 0 {
		fine, err := l.fines.Assess(ctx, q, models.AssessFineRequest{
			UserID:   loan.UserID,
			Amount:   amount,
			FineType: models.FineTypeOverdue,
			LoanID:   &loan.ID,
		})
		if err != nil {
			return models.ReturnResult{}, err
		}
		result.Fine = &fine
	}

	fulfilled, err := l.reservations.TryAutoFulfill(ctx, q, loan.BookID)
	if err != nil {
		return models.ReturnResult{}, err
	}
	if fulfilled != nil {
		result.FulfilledReservation = &fulfilled.Reservation
		result.FulfilledLoan = &fulfilled.Loan
	}
	return result, nil
}

// MarkLost closes an ISSUED loan as LOST, retires the copy and charges the
// lost item fee.
func (l *LoanLedger) MarkLost(ctx context.Context, q database.Querier, loanID int64, caller models.Identity) (models.LostResult, error) {
	if !caller.IsStaff() {
		return models.LostResult{}, forbiddenError("only staff may mark loans lost")
	}
	loan, err := l.lockIssued(ctx, q, loanID, caller)
	if err != nil {
		return models.LostResult{}, err
	}

	if err := q.UpdateLoanStatus(ctx, loan.ID, models.LoanStatusLost, nil); err != nil {
		return models.LostResult{}, fmt.Errorf("failed to mark loan %d lost: %w", loan.ID, err)
	}
	loan.Status = models.LoanStatusLost

	if _, err := l.catalog.RetireCopy(ctx, q, loan.BookID); err != nil {
		return models.LostResult{}, err
	}

	fine, err := l.fines.Assess(ctx, q, models.AssessFineRequest{
		UserID:   loan.UserID,
		Amount:   l.policy.LostItemFee,
		FineType: models.FineTypeLost,
		LoanID:   &loan.ID,
	})
	if err != nil {
		return models.LostResult{}, err
	}
	return models.LostResult{Loan: loan, Fine: fine}, nil
}

// ListForUser returns a member's loans, newest first
func (l *LoanLedger) ListForUser(ctx context.Context, q database.LoanQuerier, userID int64, status *models.LoanStatus) ([]models.LoanDetails, error) {
	if status != nil && !models.ValidLoanStatus(*status) {
		return nil, validationError("unknown loan status %q", *status)
	}
	loans, err := q.ListLoansByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans of member %d: %w", userID, err)
	}
	return loans, nil
}

// lockIssued locks the loan's book and then the loan itself, and requires
// the loan to be ISSUED and the caller to own it or be staff.
func (l *LoanLedger) lockIssued(ctx context.Context, q database.Querier, loanID int64, caller models.Identity) (models.Loan, error) {
	current, err := q.GetLoan(ctx, loanID)
	if err != nil {
		return models.Loan{}, lookupError("loan", loanID, err)
	}
	if !caller.CanActFor(current.UserID) {
		return models.Loan{}, forbiddenError("loan %d belongs to another member", loanID)
	}

	if _, err := l.catalog.LockBook(ctx, q, current.BookID); err != nil {
		return models.Loan{}, err
	}
	loan, err := q.GetLoanForUpdate(ctx, loanID)
	if err != nil {
		return models.Loan{}, lookupError("loan", loanID, err)
	}
	if loan.Status != models.LoanStatusIssued {
		return models.Loan{}, invalidStateError("loan %d is %s", loanID, loan.Status)
	}
	return loan, nil
}

// openLoan inserts an ISSUED loan. Counter changes are left to the caller.
func openLoan(ctx context.Context, q database.LoanQuerier, userID, bookID int64, issuedAt time.Time, dueDays int) (models.Loan, error) {
	loan, err := q.CreateLoan(ctx, models.Loan{
		UserID:    userID,
		BookID:    bookID,
		IssueDate: issuedAt,
		DueDate:   issuedAt.AddDate(0, 0, dueDays),
		Status:    models.LoanStatusIssued,
	})
	if err != nil {
		return models.Loan{}, fmt.Errorf("failed to create loan: %w", err)
	}
	return loan, nil
}
