package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

// FineAssessor records fines and drives their UNPAID -> PAID | WAIVED
// transitions.
type FineAssessor struct {
	now func() time.Time
}

// NewFineAssessor creates a new fine assessor
func NewFineAssessor(now func() time.Time) *FineAssessor {
	return &FineAssessor{now: now}
}

// Assess creates an UNPAID fine for a member
func (f *FineAssessor) Assess(ctx context.Context, q database.Querier, req models.AssessFineRequest) (models.Fine, error) {
	if !req.Amount.GreaterThan(decimal.Zero) {
		return models.Fine{}, validationError("amount must be greater than zero")
	}
	if !models.ValidFineType(req.FineType) {
		return models.Fine{}, validationError("unknown fine type %q", req.FineType)
	}
	if _, err := q.GetMemberForUpdate(ctx, req.UserID); err != nil {
		return models.Fine{}, lookupError("member", req.UserID, err)
	}
	if req.LoanID != nil {
		loan, err := q.GetLoan(ctx, *req.LoanID)
		if err != nil {
			return models.Fine{}, lookupError("loan", *req.LoanID, err)
		}
		if loan.UserID != req.UserID {
			return models.Fine{}, validationError("loan %d does not belong to member %d", loan.ID, req.UserID)
		}
	}

	fine, err := q.CreateFine(ctx, models.Fine{
		UserID:   req.UserID,
		LoanID:   req.LoanID,
		Amount:   req.Amount.Round(2),
		FineType: req.FineType,
		Status:   models.FineStatusUnpaid,
		FineDate: f.now(),
	})
	if err != nil {
		return models.Fine{}, fmt.Errorf("failed to create fine: %w", err)
	}
	return fine, nil
}

// Settle marks an UNPAID fine as PAID. Only the fined member or staff may pay.
func (f *FineAssessor) Settle(ctx context.Context, q database.FineQuerier, fineID int64, caller models.Identity) (models.Fine, error) {
	return f.resolve(ctx, q, fineID, caller, models.FineStatusPaid)
}

// Waive marks an UNPAID fine as WAIVED
func (f *FineAssessor) Waive(ctx context.Context, q database.FineQuerier, fineID int64, caller models.Identity) (models.Fine, error) {
	if !caller.IsStaff() {
		return models.Fine{}, forbiddenError("only staff may waive fines")
	}
	return f.resolve(ctx, q, fineID, caller, models.FineStatusWaived)
}

func (f *FineAssessor) resolve(ctx context.Context, q database.FineQuerier, fineID int64, caller models.Identity, to models.FineStatus) (models.Fine, error) {
	fine, err := q.GetFineForUpdate(ctx, fineID)
	if err != nil {
		return models.Fine{}, lookupError("fine", fineID, err)
	}
	if !caller.CanActFor(fine.UserID) {
		return models.Fine{}, forbiddenError("fine %d belongs to another member", fineID)
	}
	if fine.Status != models.FineStatusUnpaid {
		return models.Fine{}, invalidStateError("fine %d is %s", fineID, fine.Status)
	}

	resolvedAt := f.now()
	if err := q.UpdateFineStatus(ctx, fineID, to, resolvedAt); err != nil {
		return models.Fine{}, fmt.Errorf("failed to update fine %d: %w", fineID, err)
	}
	fine.Status = to
	fine.ResolvedAt = &resolvedAt
	return fine, nil
}

// GetByID retrieves a fine by ID
func (f *FineAssessor) GetByID(ctx context.Context, q database.FineQuerier, fineID int64) (models.Fine, error) {
	fine, err := q.GetFine(ctx, fineID)
	if err != nil {
		return models.Fine{}, lookupError("fine", fineID, err)
	}
	return fine, nil
}

// ListForUser returns every fine of a member, newest first
func (f *FineAssessor) ListForUser(ctx context.Context, q database.FineQuerier, userID int64) ([]models.Fine, error) {
	return f.ListAll(ctx, q, models.FineFilter{UserID: &userID, Limit: maxListLimit})
}

// ListAll returns fines matching the filter, newest first
func (f *FineAssessor) ListAll(ctx context.Context, q database.FineQuerier, filter models.FineFilter) ([]models.Fine, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}
	if filter.Status != nil && !models.ValidFineStatus(*filter.Status) {
		return nil, validationError("unknown fine status %q", *filter.Status)
	}

	fines, err := q.ListFines(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list fines: %w", err)
	}
	return fines, nil
}
