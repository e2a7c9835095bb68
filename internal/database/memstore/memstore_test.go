package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

func TestStore_InTxRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	book := s.AddBook(models.Book{ISBN: "9780000000001", Title: "Kept", TotalCopies: 2, AvailableCopies: 2})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q database.Querier) error {
		if err := q.SetBookCopies(ctx, book.ID, 2, 0, 0, models.BookStatusNotAvailable); err != nil {
			return err
		}
		if _, err := q.CreateBook(ctx, models.Book{ISBN: "9780000000002", Title: "Dropped"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), got.AvailableCopies)

	books, err := s.ListBooks(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestStore_InTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	book := s.AddBook(models.Book{ISBN: "9780000000001", Title: "Counted", TotalCopies: 2, AvailableCopies: 2})

	require.NoError(t, s.InTx(ctx, func(q database.Querier) error {
		return q.SetBookCopies(ctx, book.ID, 2, 1, 0, models.BookStatusAvailable)
	}))

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.AvailableCopies)
}

func TestStore_InTxCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.InTx(ctx, func(database.Querier) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_Duplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.AddMember(models.Member{ID: 1, Username: "alice"})

	book, err := s.CreateBook(ctx, models.Book{ISBN: "9780000000003", Title: "Once"})
	require.NoError(t, err)
	_, err = s.CreateBook(ctx, models.Book{ISBN: "9780000000003", Title: "Twice"})
	assert.ErrorIs(t, err, database.ErrDuplicate)

	hold := models.Reservation{
		UserID:          1,
		BookID:          book.ID,
		ReservationDate: time.Now(),
		ExpiryDate:      time.Now().Add(time.Hour),
		PriorityLevel:   1,
		Status:          models.ReservationStatusPending,
	}
	_, err = s.CreateReservation(ctx, hold)
	require.NoError(t, err)
	_, err = s.CreateReservation(ctx, hold)
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestStore_PendingReservationsOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	book := s.AddBook(models.Book{ISBN: "9780000000004", Title: "Queue"})
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	add := func(userID int64, priority int32, at time.Time) models.Reservation {
		s.AddMember(models.Member{ID: userID})
		r, err := s.CreateReservation(ctx, models.Reservation{
			UserID:          userID,
			BookID:          book.ID,
			ReservationDate: at,
			ExpiryDate:      at.Add(24 * time.Hour),
			PriorityLevel:   priority,
			Status:          models.ReservationStatusPending,
		})
		require.NoError(t, err)
		return r
	}

	first := add(1, 3, base)
	second := add(2, 1, base.Add(time.Hour))
	third := add(3, 1, base.Add(2*time.Hour))

	queue, err := s.PendingReservations(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, []int64{second.ID, third.ID, first.ID}, []int64{queue[0].ID, queue[1].ID, queue[2].ID})

	empty, err := s.PendingReservations(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxListLimit, clampLimit(10_000))
}

func TestStore_Reports(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

	s.AddMember(models.Member{ID: 1, Username: "alice"})
	s.AddMember(models.Member{ID: 2, Username: "bob"})
	dune := s.AddBook(models.Book{ISBN: "9780000000010", Title: "Dune", TotalCopies: 3, AvailableCopies: 1})
	emma := s.AddBook(models.Book{ISBN: "9780000000011", Title: "Emma", TotalCopies: 1, AvailableCopies: 1})

	loan := func(userID, bookID int64, issued time.Time, status models.LoanStatus) {
		_, err := s.CreateLoan(ctx, models.Loan{
			UserID:    userID,
			BookID:    bookID,
			IssueDate: issued,
			DueDate:   issued.AddDate(0, 0, 14),
			Status:    status,
		})
		require.NoError(t, err)
	}
	loan(1, dune.ID, now.AddDate(0, 0, -20), models.LoanStatusIssued)
	loan(2, dune.ID, now.AddDate(0, 0, -2), models.LoanStatusIssued)
	loan(1, emma.ID, now.AddDate(0, 0, -5), models.LoanStatusReturned)
	loan(1, emma.ID, now.AddDate(0, -6, 0), models.LoanStatusReturned)

	for _, f := range []models.Fine{
		{UserID: 1, Amount: decimal.RequireFromString("3.00"), FineType: models.FineTypeOverdue, Status: models.FineStatusUnpaid},
		{UserID: 1, Amount: decimal.RequireFromString("1.50"), FineType: models.FineTypeOverdue, Status: models.FineStatusUnpaid},
		{UserID: 2, Amount: decimal.RequireFromString("25.00"), FineType: models.FineTypeLost, Status: models.FineStatusPaid},
	} {
		_, err := s.CreateFine(ctx, f)
		require.NoError(t, err)
	}

	popular, err := s.PopularBooks(ctx, now.AddDate(0, -1, 0), now, 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "Dune", popular[0].Title)
	assert.Equal(t, int32(2), popular[0].BorrowCount)
	assert.Equal(t, int32(2), popular[0].UniqueUsers)
	assert.Equal(t, int32(1), popular[1].BorrowCount)

	activity, err := s.MemberActivity(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "alice", activity[0].Username)
	assert.Equal(t, int32(3), activity[0].TotalLoans)
	assert.Equal(t, int32(1), activity[0].ActiveLoans)
	assert.Equal(t, int32(1), activity[0].OverdueLoans)
	assert.Equal(t, "4.50", activity[0].UnpaidFines.StringFixed(2))

	summary, err := s.FinesSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, models.FineStatusPaid, summary[0].Status)
	assert.Equal(t, int32(2), summary[1].Count)
	assert.Equal(t, "4.50", summary[1].Total.StringFixed(2))
}
