package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PopularBooksReport represents the most borrowed titles in a period
type PopularBooksReport struct {
	Books       []PopularBookDetail `json:"books"`
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// PopularBookDetail represents details of a popular book
type PopularBookDetail struct {
	BookID      int64  `json:"book_id" db:"book_id"`
	Title       string `json:"title" db:"title"`
	ISBN        string `json:"isbn" db:"isbn"`
	BorrowCount int32  `json:"borrow_count" db:"borrow_count"`
	UniqueUsers int32  `json:"unique_users" db:"unique_users"`
}

// MemberActivityReport represents lending activity per member
type MemberActivityReport struct {
	Members     []MemberActivityDetail `json:"members"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// MemberActivityDetail represents one member's lending counts
type MemberActivityDetail struct {
	UserID              int64           `json:"user_id" db:"user_id"`
	Username            string          `json:"username" db:"username"`
	TotalLoans          int32           `json:"total_loans" db:"total_loans"`
	ActiveLoans         int32           `json:"active_loans" db:"active_loans"`
	OverdueLoans        int32           `json:"overdue_loans" db:"overdue_loans"`
	PendingReservations int32           `json:"pending_reservations" db:"pending_reservations"`
	UnpaidFines         decimal.Decimal `json:"unpaid_fines" db:"unpaid_fines"`
}

// FinesSummaryReport aggregates fines by status and type
type FinesSummaryReport struct {
	Rows        []FinesSummaryRow `json:"rows"`
	TotalUnpaid decimal.Decimal   `json:"total_unpaid"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// FinesSummaryRow is one status/type bucket of the fines summary
type FinesSummaryRow struct {
	Status FineStatus      `json:"status" db:"status"`
	Type   FineType        `json:"fine_type" db:"fine_type"`
	Count  int32           `json:"count" db:"count"`
	Total  decimal.Decimal `json:"total" db:"total"`
}

// ReportPeriod bounds a report query
type ReportPeriod struct {
	From  time.Time
	To    time.Time
	Limit int
}
