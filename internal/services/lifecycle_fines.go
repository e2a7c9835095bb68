package services

import (
	"context"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/events"
	"github.com/adibqt/LibroTrack/internal/models"
)

// AssessFine records a manual fine
func (l *Lifecycle) AssessFine(ctx context.Context, caller models.Identity, req models.AssessFineRequest) (models.Fine, error) {
	if err := requireStaff(caller, "assess fines"); err != nil {
		return models.Fine{}, err
	}

	fine, err := inTx(ctx, l, "fine.assess", func(q database.Querier) (models.Fine, error) {
		return l.fines.Assess(ctx, q, req)
	})
	if err != nil {
		return models.Fine{}, err
	}

	l.fineAssessed(ctx, fine)
	return fine, nil
}

// PayFine settles an UNPAID fine. Members may pay their own.
func (l *Lifecycle) PayFine(ctx context.Context, caller models.Identity, fineID int64) (models.Fine, error) {
	fine, err := inTx(ctx, l, "fine.pay", func(q database.Querier) (models.Fine, error) {
		return l.fines.Settle(ctx, q, fineID, caller)
	})
	if err != nil {
		return models.Fine{}, err
	}

	l.publish(ctx, events.FinePaid, memberKey(fine.UserID), fine)
	return fine, nil
}

// WaiveFine forgives an UNPAID fine
func (l *Lifecycle) WaiveFine(ctx context.Context, caller models.Identity, fineID int64) (models.Fine, error) {
	fine, err := inTx(ctx, l, "fine.waive", func(q database.Querier) (models.Fine, error) {
		return l.fines.Waive(ctx, q, fineID, caller)
	})
	if err != nil {
		return models.Fine{}, err
	}

	l.publish(ctx, events.FineWaived, memberKey(fine.UserID), fine)
	return fine, nil
}

func (l *Lifecycle) GetFine(ctx context.Context, caller models.Identity, fineID int64) (models.Fine, error) {
	fine, err := l.fines.GetByID(ctx, l.store, fineID)
	if err != nil {
		return models.Fine{}, err
	}
	if err := requireSelfOrStaff(caller, fine.UserID); err != nil {
		return models.Fine{}, err
	}
	return fine, nil
}

func (l *Lifecycle) ListFinesForUser(ctx context.Context, caller models.Identity, userID int64) ([]models.Fine, error) {
	if err := requireSelfOrStaff(caller, userID); err != nil {
		return nil, err
	}
	return l.fines.ListForUser(ctx, l.store, userID)
}

func (l *Lifecycle) ListFines(ctx context.Context, caller models.Identity, filter models.FineFilter) ([]models.Fine, error) {
	if err := requireStaff(caller, "list all fines"); err != nil {
		return nil, err
	}
	return l.fines.ListAll(ctx, l.store, filter)
}
