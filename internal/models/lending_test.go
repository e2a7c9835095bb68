package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, BookStatusNotAvailable, StatusFor(0))
	assert.Equal(t, BookStatusAvailable, StatusFor(1))
	assert.Equal(t, BookStatusAvailable, StatusFor(40))
}

func TestBook_Counters(t *testing.T) {
	b := Book{ID: 3, TotalCopies: 5, AvailableCopies: 2, ReservedCopies: 1}

	assert.Equal(t, int32(3), b.IssuedCopies())
	assert.Equal(t, Availability{BookID: 3, AvailableCopies: 2, ReservedCopies: 1, TotalCopies: 5}, b.Availability())
}

func TestIsValidReservationTransition(t *testing.T) {
	tests := []struct {
		from ReservationStatus
		to   ReservationStatus
		want bool
	}{
		{ReservationStatusPending, ReservationStatusFulfilled, true},
		{ReservationStatusPending, ReservationStatusCancelled, true},
		{ReservationStatusPending, ReservationStatusExpired, true},
		{ReservationStatusPending, ReservationStatusPending, false},
		{ReservationStatusFulfilled, ReservationStatusCancelled, false},
		{ReservationStatusCancelled, ReservationStatusPending, false},
		{ReservationStatusExpired, ReservationStatusFulfilled, false},
		{ReservationStatus("UNKNOWN"), ReservationStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidReservationTransition(tt.from, tt.to))
		})
	}
}

func TestStatusValidators(t *testing.T) {
	assert.True(t, ValidLoanStatus(LoanStatusIssued))
	assert.True(t, ValidLoanStatus(LoanStatusLost))
	assert.False(t, ValidLoanStatus(LoanStatus("BORROWED")))

	assert.True(t, ValidFineStatus(FineStatusWaived))
	assert.False(t, ValidFineStatus(FineStatus("OWED")))

	assert.True(t, ValidFineType(FineTypeDamage))
	assert.False(t, ValidFineType(FineType("late")))

	assert.True(t, ValidateReservationStatus(ReservationStatusExpired))
	assert.False(t, ValidateReservationStatus(ReservationStatus("")))
}

func TestLoan_IsOverdue(t *testing.T) {
	due := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	loan := Loan{DueDate: due}

	assert.False(t, loan.IsOverdue(due))
	assert.False(t, loan.IsOverdue(due.Add(-time.Hour)))
	assert.True(t, loan.IsOverdue(due.Add(time.Second)))
}

func TestIdentity(t *testing.T) {
	member := Identity{UserID: 4, Role: RoleMember}
	librarian := Identity{UserID: 9, Role: RoleLibrarian}

	assert.False(t, member.IsStaff())
	assert.True(t, librarian.IsStaff())
	assert.True(t, SystemIdentity.IsStaff())

	assert.True(t, member.CanActFor(4))
	assert.False(t, member.CanActFor(5))
	assert.True(t, librarian.CanActFor(5))

	claims := &JWTClaims{UserID: 4, Username: "ada", Role: RoleMember}
	assert.Equal(t, Identity{UserID: 4, Username: "ada", Role: RoleMember}, claims.Identity())
}

func TestMember_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Member{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", Member{FirstName: "Ada"}.FullName())
	assert.Equal(t, "Lovelace", Member{LastName: "Lovelace"}.FullName())
}
