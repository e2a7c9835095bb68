package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

const sweepLockKey = "reservations:expiry-sweep"

// Locker grants a short-lived lock shared by every instance of the service
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ExpirySweeper runs ExpireDue on a fixed interval
type ExpirySweeper struct {
	lifecycle *Lifecycle
	interval  time.Duration
	locker    Locker
	logger    *slog.Logger
}

// NewExpirySweeper creates a sweeper. A nil locker sweeps on every tick.
func NewExpirySweeper(lifecycle *Lifecycle, interval time.Duration, locker Locker, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		lifecycle: lifecycle,
		interval:  interval,
		locker:    locker,
		logger:    logger,
	}
}

// Run sweeps once per interval until ctx is cancelled
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.logger.Info("Reservation expiry sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reservation expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one sweep. Failures are logged and retried on the next tick.
func (s *ExpirySweeper) Tick(ctx context.Context) {
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if errors.Is(err, database.ErrLockHeld) {
			s.logger.Debug("Expiry sweep skipped, another instance holds the lock")
			return
		}
		if err != nil {
			s.logger.Error("Failed to take expiry sweep lock", "error", err)
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release expiry sweep lock", "error", err)
			}
		}()
	}

	if _, err := s.lifecycle.ExpireDue(ctx, models.SystemIdentity); err != nil {
		s.logger.Error("Reservation expiry sweep failed", "error", err)
	}
}
