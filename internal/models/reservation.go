package models

import (
	"time"
)

// ReservationStatus represents the state of a hold
type ReservationStatus string

// ReservationStatus constants for reservation statuses
const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusFulfilled ReservationStatus = "FULFILLED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// Reservation represents a queued claim on a future copy of a book
type Reservation struct {
	ID              int64             `json:"reservation_id" db:"reservation_id"`
	UserID          int64             `json:"user_id" db:"user_id"`
	BookID          int64             `json:"book_id" db:"book_id"`
	ReservationDate time.Time         `json:"reservation_date" db:"reservation_date"`
	ExpiryDate      time.Time         `json:"expiry_date" db:"expiry_date"`
	PriorityLevel   int32             `json:"priority_level" db:"priority_level"`
	Status          ReservationStatus `json:"status" db:"status"`
	LoanID          *int64            `json:"loan_id,omitempty" db:"loan_id"`
}

// ReservationDetails is a reservation joined with its member and book
type ReservationDetails struct {
	Reservation
	Username  string `json:"username" db:"username"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	BookTitle string `json:"title" db:"title"`
	ISBN      string `json:"isbn" db:"isbn"`
}

// CreateReservationRequest represents a request to place a hold
type CreateReservationRequest struct {
	UserID        int64 `json:"user_id" binding:"required,min=1"`
	BookID        int64 `json:"book_id" binding:"required,min=1"`
	ExpiryDays    *int  `json:"expiry_days"`
	PriorityLevel *int  `json:"priority_level"`
}

// CreateReservationResult is returned by the reservation queue on create.
// Existing is set when an identical pending hold was returned instead.
type CreateReservationResult struct {
	Reservation Reservation    `json:"reservation"`
	Existing    bool           `json:"existing"`
	Fulfilled   *FulfillResult `json:"-"`
}

// FulfillResult pairs a fulfilled reservation with the loan it produced
type FulfillResult struct {
	Reservation Reservation `json:"reservation"`
	Loan        Loan        `json:"loan"`
}

// ExpireResult summarises one expiry sweep
type ExpireResult struct {
	Expired         []Reservation `json:"-"`
	ExpiredCount    int           `json:"expired"`
	AlreadyResolved int           `json:"already_resolved"`
	Failed          int           `json:"failed"`
}

// ReservationFilter narrows reservation listings
type ReservationFilter struct {
	Status *ReservationStatus
	UserID *int64
	BookID *int64
	Limit  int
}

// ReservationAction names an entry in the reservation history
type ReservationAction string

const (
	ReservationActionCreate  ReservationAction = "CREATE"
	ReservationActionCancel  ReservationAction = "CANCEL"
	ReservationActionFulfill ReservationAction = "FULFILL"
	ReservationActionExpire  ReservationAction = "EXPIRE"
)

// ReservationHistory is an append-only audit row for a reservation transition
type ReservationHistory struct {
	ID            int64             `json:"history_id" db:"history_id"`
	ReservationID int64             `json:"reservation_id" db:"reservation_id"`
	UserID        int64             `json:"user_id" db:"user_id"`
	BookID        int64             `json:"book_id" db:"book_id"`
	Action        ReservationAction `json:"action" db:"action"`
	FromStatus    ReservationStatus `json:"from_status,omitempty" db:"from_status"`
	ToStatus      ReservationStatus `json:"to_status" db:"to_status"`
	ChangedAt     time.Time         `json:"changed_at" db:"changed_at"`
	BookTitle     string            `json:"title,omitempty" db:"title"`
}

// HistoryFilter narrows a member's reservation history
type HistoryFilter struct {
	UserID   int64
	ToStatus *ReservationStatus
	Limit    int
}

// ValidateReservationStatus validates if a reservation status is valid
func ValidateReservationStatus(status ReservationStatus) bool {
	switch status {
	case ReservationStatusPending, ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	default:
		return false
	}
}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired},
	ReservationStatusFulfilled: {},
	ReservationStatusCancelled: {},
	ReservationStatusExpired:   {},
}

// IsValidReservationTransition checks if a status transition is valid
func IsValidReservationTransition(from, to ReservationStatus) bool {
	for _, allowed := range reservationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
