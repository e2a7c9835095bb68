package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationType_IsValid(t *testing.T) {
	tests := []struct {
		name string
		nt   NotificationType
		want bool
	}{
		{
			name: "valid reservation_ready",
			nt:   NotificationTypeReservationReady,
			want: true,
		},
		{
			name: "invalid type",
			nt:   NotificationType("overdue_reminder"),
			want: false,
		},
		{
			name: "empty type",
			nt:   NotificationType(""),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.nt.IsValid())
		})
	}
}

func TestNotificationStatus_IsValid(t *testing.T) {
	tests := []struct {
		name string
		ns   NotificationStatus
		want bool
	}{
		{name: "pending", ns: NotificationStatusPending, want: true},
		{name: "sent", ns: NotificationStatusSent, want: true},
		{name: "failed", ns: NotificationStatusFailed, want: true},
		{name: "lowercase", ns: NotificationStatus("sent"), want: false},
		{name: "empty", ns: NotificationStatus(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ns.IsValid())
		})
	}
}

func TestNotification_JSON(t *testing.T) {
	loanID := int64(12)
	n := Notification{
		ID:            "3f1c",
		Type:          NotificationTypeReservationReady,
		UserID:        4,
		BookID:        9,
		ReservationID: 7,
		LoanID:        &loanID,
		Status:        NotificationStatusPending,
		CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	body, err := json.Marshal(n)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, "RESERVATION_READY", fields["type"])
	assert.Equal(t, float64(12), fields["loan_id"])
	assert.NotContains(t, fields, "error")

	n.LoanID = nil
	body, err = json.Marshal(n)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "loan_id")
}
