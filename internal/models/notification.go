package models

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeReservationReady NotificationType = "RESERVATION_READY"
)

// IsValid checks if the notification type is valid
func (nt NotificationType) IsValid() bool {
	return nt == NotificationTypeReservationReady
}

// NotificationStatus represents the delivery status of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// IsValid checks if the notification status is valid
func (ns NotificationStatus) IsValid() bool {
	switch ns {
	case NotificationStatusPending, NotificationStatusSent, NotificationStatusFailed:
		return true
	default:
		return false
	}
}

// Notification is an alert waiting for the external dispatcher
type Notification struct {
	ID            string             `json:"id"`
	Type          NotificationType   `json:"type"`
	UserID        int64              `json:"user_id"`
	BookID        int64              `json:"book_id"`
	ReservationID int64              `json:"reservation_id"`
	LoanID        *int64             `json:"loan_id,omitempty"`
	Status        NotificationStatus `json:"status"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// MarkFailedRequest carries the dispatcher's failure reason
type MarkFailedRequest struct {
	Error string `json:"error" binding:"required,max=1000"`
}
