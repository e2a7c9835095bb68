package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FineType classifies why a fine was assessed
type FineType string

const (
	FineTypeOverdue FineType = "OVERDUE"
	FineTypeDamage  FineType = "DAMAGE"
	FineTypeLost    FineType = "LOST"
	FineTypeOther   FineType = "OTHER"
)

// ValidFineType reports whether t names a fine type
func ValidFineType(t FineType) bool {
	switch t {
	case FineTypeOverdue, FineTypeDamage, FineTypeLost, FineTypeOther:
		return true
	default:
		return false
	}
}

// FineStatus represents the state of a fine. UNPAID is the only non-terminal state.
type FineStatus string

const (
	FineStatusUnpaid FineStatus = "UNPAID"
	FineStatusPaid   FineStatus = "PAID"
	FineStatusWaived FineStatus = "WAIVED"
)

// ValidFineStatus reports whether s names a fine status
func ValidFineStatus(s FineStatus) bool {
	switch s {
	case FineStatusUnpaid, FineStatusPaid, FineStatusWaived:
		return true
	default:
		return false
	}
}

// Fine is a monetary penalty owed by a member
type Fine struct {
	ID         int64           `json:"fine_id" db:"fine_id"`
	UserID     int64           `json:"user_id" db:"user_id"`
	LoanID     *int64          `json:"loan_id,omitempty" db:"loan_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	FineType   FineType        `json:"fine_type" db:"fine_type"`
	Status     FineStatus      `json:"status" db:"status"`
	FineDate   time.Time       `json:"fine_date" db:"fine_date"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}

// AssessFineRequest represents a manual fine assessment
type AssessFineRequest struct {
	UserID   int64           `json:"user_id" binding:"required,min=1"`
	Amount   decimal.Decimal `json:"amount"`
	FineType FineType        `json:"fine_type" binding:"required"`
	LoanID   *int64          `json:"loan_id" binding:"omitempty,min=1"`
}

// FineFilter narrows fine listings
type FineFilter struct {
	UserID *int64
	Status *FineStatus
	Limit  int
}
