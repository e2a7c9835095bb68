package services

import (
	"errors"
	"fmt"

	"github.com/adibqt/LibroTrack/internal/database"
)

// Business rule failures. Every error returned by a lifecycle operation
// wraps at most one of these so handlers can classify it with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("invalid state")
	ErrOutOfStock         = errors.New("out of stock")
	ErrBorrowingLimit     = errors.New("borrowing limit reached")
	ErrConflict           = errors.New("conflict")
	ErrInvariantViolation = errors.New("invariant violation")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStateError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func forbiddenError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// lookupError turns a store miss into ErrNotFound and wraps anything else
func lookupError(entity string, id int64, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
	}
	return fmt.Errorf("failed to get %s %d: %w", entity, id, err)
}
