package models

import (
	"time"
)

// LoanStatus represents the state of a loan
type LoanStatus string

const (
	LoanStatusIssued   LoanStatus = "ISSUED"
	LoanStatusReturned LoanStatus = "RETURNED"
	LoanStatusLost     LoanStatus = "LOST"
)

// ValidLoanStatus reports whether s names a loan status
func ValidLoanStatus(s LoanStatus) bool {
	switch s {
	case LoanStatusIssued, LoanStatusReturned, LoanStatusLost:
		return true
	default:
		return false
	}
}

// Loan ties one member to one copy of a book
type Loan struct {
	ID         int64      `json:"loan_id" db:"loan_id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	IssueDate  time.Time  `json:"issue_date" db:"issue_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
}

// IsOverdue reports whether the loan is past its due date at t
func (l Loan) IsOverdue(t time.Time) bool {
	return t.After(l.DueDate)
}

// LoanDetails is a loan joined with its book
type LoanDetails struct {
	Loan
	BookTitle string `json:"title" db:"title"`
	ISBN      string `json:"isbn" db:"isbn"`
}

// IssueLoanRequest represents a request to borrow a book
type IssueLoanRequest struct {
	UserID  int64 `json:"user_id" binding:"required,min=1"`
	BookID  int64 `json:"book_id" binding:"required,min=1"`
	DueDays *int  `json:"due_days"`
}

// ReturnResult describes everything a return changed
type ReturnResult struct {
	Loan                 Loan         `json:"loan"`
	Fine                 *Fine        `json:"fine,omitempty"`
	FulfilledReservation *Reservation `json:"fulfilled_reservation,omitempty"`
	FulfilledLoan        *Loan        `json:"-"`
}

// LostResult describes the outcome of marking a loan lost
type LostResult struct {
	Loan Loan `json:"loan"`
	Fine Fine `json:"fine"`
}
