package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/events"
	"github.com/adibqt/LibroTrack/internal/models"
)

// CreateReservation places a hold for req.UserID. A second request while
// the first hold is PENDING returns the same reservation with Existing set.
func (l *Lifecycle) CreateReservation(ctx context.Context, caller models.Identity, req models.CreateReservationRequest) (models.CreateReservationResult, error) {
	if err := requireSelfOrStaff(caller, req.UserID); err != nil {
		return models.CreateReservationResult{}, err
	}

	result, err := inTx(ctx, l, "reservation.create", func(q database.Querier) (models.CreateReservationResult, error) {
		return l.reservations.Create(ctx, q, req)
	})
	if errors.Is(err, database.ErrDuplicate) {
		// a concurrent request won the unique index race
		existing, findErr := l.store.FindPendingReservation(ctx, req.UserID, req.BookID)
		if findErr == nil {
			return models.CreateReservationResult{Reservation: existing, Existing: true}, nil
		}
		return models.CreateReservationResult{}, fmt.Errorf("%w: pending reservation of member %d for book %d", ErrConflict, req.UserID, req.BookID)
	}
	if err != nil {
		return models.CreateReservationResult{}, err
	}
	if result.Existing {
		return result, nil
	}

	l.publish(ctx, events.ReservationCreated, bookKey(req.BookID), result.Reservation)
	if result.Fulfilled != nil {
		l.fulfilled(ctx, *result.Fulfilled)
	}
	return result, nil
}

// CancelReservation withdraws a PENDING hold. Members may cancel their own.
func (l *Lifecycle) CancelReservation(ctx context.Context, caller models.Identity, reservationID int64) (models.Reservation, error) {
	reservation, err := inTx(ctx, l, "reservation.cancel", func(q database.Querier) (models.Reservation, error) {
		return l.reservations.Cancel(ctx, q, reservationID, caller)
	})
	if err != nil {
		return models.Reservation{}, err
	}

	l.publish(ctx, events.ReservationCancelled, bookKey(reservation.BookID), reservation)
	return reservation, nil
}

// FulfillReservation turns a PENDING hold into a loan on staff request
func (l *Lifecycle) FulfillReservation(ctx context.Context, caller models.Identity, reservationID int64) (models.FulfillResult, error) {
	if err := requireStaff(caller, "fulfill reservations"); err != nil {
		return models.FulfillResult{}, err
	}

	result, err := inTx(ctx, l, "reservation.fulfill", func(q database.Querier) (models.FulfillResult, error) {
		return l.reservations.Fulfill(ctx, q, reservationID)
	})
	if err != nil {
		return models.FulfillResult{}, err
	}

	l.fulfilled(ctx, result)
	return result, nil
}

// ExpireDue expires every PENDING hold whose expiry date has passed. Each
// hold is expired in its own transaction; holds resolved in the meantime
// are counted as already resolved. Running it twice equals running it once.
func (l *Lifecycle) ExpireDue(ctx context.Context, caller models.Identity) (models.ExpireResult, error) {
	if err := requireStaff(caller, "expire reservations"); err != nil {
		return models.ExpireResult{}, err
	}

	start := time.Now()
	batch := l.policy.SweepBatchSize
	if batch <= 0 {
		batch = maxListLimit
	}

	result := models.ExpireResult{Expired: []models.Reservation{}}
	seen := make(map[int64]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, err := l.store.ListDueReservationIDs(ctx, l.now(), batch)
		if err != nil {
			return result, fmt.Errorf("failed to list due reservations: %w", err)
		}

		progress := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			progress++
			l.expireOne(ctx, id, &result)
		}

		if len(ids) < batch || progress == 0 {
			break
		}
	}

	l.metrics.SweepFinished(result.ExpiredCount, time.Since(start))
	l.logger.InfoContext(ctx, "Reservation expiry sweep finished",
		"expired", result.ExpiredCount,
		"already_resolved", result.AlreadyResolved,
		"failed", result.Failed,
		"duration", time.Since(start))
	return result, nil
}

func (l *Lifecycle) expireOne(ctx context.Context, id int64, result *models.ExpireResult) {
	var (
		reservation models.Reservation
		expired     bool
	)
	err := l.store.InTx(ctx, func(q database.Querier) error {
		var err error
		reservation, expired, err = l.reservations.ExpireOne(ctx, q, id)
		return err
	})
	l.metrics.Observe("reservation.expire", err)

	switch {
	case errors.Is(err, ErrNotFound):
		result.AlreadyResolved++
	case err != nil:
		result.Failed++
		l.logger.WarnContext(ctx, "Failed to expire reservation", "reservation_id", id, "error", err)
	case expired:
		result.Expired = append(result.Expired, reservation)
		result.ExpiredCount++
		l.publish(ctx, events.ReservationExpired, bookKey(reservation.BookID), reservation)
	default:
		result.AlreadyResolved++
	}
}

// ListReservations lists holds for staff
func (l *Lifecycle) ListReservations(ctx context.Context, caller models.Identity, filter models.ReservationFilter) ([]models.ReservationDetails, error) {
	if err := requireStaff(caller, "list reservations"); err != nil {
		return nil, err
	}
	return l.reservations.List(ctx, l.store, filter)
}

// ReservationHistory returns a member's reservation audit trail
func (l *Lifecycle) ReservationHistory(ctx context.Context, caller models.Identity, filter models.HistoryFilter) ([]models.ReservationHistory, error) {
	if err := requireSelfOrStaff(caller, filter.UserID); err != nil {
		return nil, err
	}
	return l.reservations.History(ctx, l.store, filter)
}
