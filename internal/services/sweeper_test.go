package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

type fakeLocker struct {
	err      error
	keys     []string
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

// newDueReservation leaves one PENDING hold that expired a day ago
func newDueReservation(t *testing.T) (*lifecycleFixture, models.Reservation) {
	t.Helper()
	f := newLifecycleFixture(t)
	book := f.addBook(0)
	one := 1
	result, err := f.lifecycle.CreateReservation(context.Background(), alice, models.CreateReservationRequest{
		UserID:     alice.UserID,
		BookID:     book.ID,
		ExpiryDays: &one,
	})
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	return f, result.Reservation
}

func reservationStatus(t *testing.T, f *lifecycleFixture, r models.Reservation) models.ReservationStatus {
	t.Helper()
	for _, got := range f.store.Reservations(r.BookID) {
		if got.ID == r.ID {
			return got.Status
		}
	}
	t.Fatalf("reservation %d not found", r.ID)
	return ""
}

func TestExpirySweeper_Tick(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("without a locker", func(t *testing.T) {
		f, r := newDueReservation(t)
		sweeper := NewExpirySweeper(f.lifecycle, time.Minute, nil, logger)

		sweeper.Tick(context.Background())

		assert.Equal(t, models.ReservationStatusExpired, reservationStatus(t, f, r))
	})

	t.Run("holds and releases the lock", func(t *testing.T) {
		f, r := newDueReservation(t)
		locker := &fakeLocker{}
		sweeper := NewExpirySweeper(f.lifecycle, time.Minute, locker, logger)

		sweeper.Tick(context.Background())

		assert.Equal(t, []string{sweepLockKey}, locker.keys)
		assert.Equal(t, 1, locker.released)
		assert.Equal(t, models.ReservationStatusExpired, reservationStatus(t, f, r))
	})

	t.Run("skips when another instance sweeps", func(t *testing.T) {
		f, r := newDueReservation(t)
		locker := &fakeLocker{err: database.ErrLockHeld}
		sweeper := NewExpirySweeper(f.lifecycle, time.Minute, locker, logger)

		sweeper.Tick(context.Background())

		assert.Equal(t, 0, locker.released)
		assert.Equal(t, models.ReservationStatusPending, reservationStatus(t, f, r))
	})

	t.Run("lock failure skips the sweep", func(t *testing.T) {
		f, r := newDueReservation(t)
		locker := &fakeLocker{err: assert.AnError}
		sweeper := NewExpirySweeper(f.lifecycle, time.Minute, locker, logger)

		sweeper.Tick(context.Background())

		assert.Equal(t, models.ReservationStatusPending, reservationStatus(t, f, r))
	})
}

func TestExpirySweeper_RunStopsOnCancel(t *testing.T) {
	f, r := newDueReservation(t)
	sweeper := NewExpirySweeper(f.lifecycle, 10*time.Millisecond, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return reservationStatus(t, f, r) == models.ReservationStatusExpired
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
