package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

// CatalogStore owns book records and is the only code path that changes
// copy counters. Every method runs against the caller's transaction.
type CatalogStore struct{}

// NewCatalogStore creates a new catalog store
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{}
}

// GetAvailability returns the copy counters of a book
func (c *CatalogStore) GetAvailability(ctx context.Context, q database.BookQuerier, bookID int64) (models.Availability, error) {
	book, err := q.GetBook(ctx, bookID)
	if err != nil {
		return models.Availability{}, lookupError("book", bookID, err)
	}
	return book.Availability(), nil
}

// LockBook reads a book and holds its row lock until the transaction ends
func (c *CatalogStore) LockBook(ctx context.Context, q database.BookQuerier, bookID int64) (models.Book, error) {
	book, err := q.GetBookForUpdate(ctx, bookID)
	if err != nil {
		return models.Book{}, lookupError("book", bookID, err)
	}
	return book, nil
}

// AdjustCopies applies a relative change to the available and reserved
// counters of a book and refreshes its status.
func (c *CatalogStore) AdjustCopies(ctx context.Context, q database.BookQuerier, bookID int64, deltaAvailable, deltaReserved int32) (models.Book, error) {
	book, err := c.LockBook(ctx, q, bookID)
	if err != nil {
		return models.Book{}, err
	}

	available := book.AvailableCopies + deltaAvailable
	reserved := book.ReservedCopies + deltaReserved
	if err := checkCounters(book.TotalCopies, available, reserved); err != nil {
		return models.Book{}, fmt.Errorf("book %d: %w", bookID, err)
	}

	return c.setCopies(ctx, q, book, book.TotalCopies, available, reserved)
}

// RetireCopy removes one issued copy from circulation, as when it is lost
func (c *CatalogStore) RetireCopy(ctx context.Context, q database.BookQuerier, bookID int64) (models.Book, error) {
	book, err := c.LockBook(ctx, q, bookID)
	if err != nil {
		return models.Book{}, err
	}

	total := book.TotalCopies - 1
	if err := checkCounters(total, book.AvailableCopies, book.ReservedCopies); err != nil {
		return models.Book{}, fmt.Errorf("book %d: %w", bookID, err)
	}

	return c.setCopies(ctx, q, book, total, book.AvailableCopies, book.ReservedCopies)
}

func (c *CatalogStore) setCopies(ctx context.Context, q database.BookQuerier, book models.Book, total, available, reserved int32) (models.Book, error) {
	status := models.StatusFor(available)
	if err := q.SetBookCopies(ctx, book.ID, total, available, reserved, status); err != nil {
		return models.Book{}, fmt.Errorf("failed to update copies of book %d: %w", book.ID, err)
	}

	book.TotalCopies = total
	book.AvailableCopies = available
	book.ReservedCopies = reserved
	book.Status = status
	return book, nil
}

func checkCounters(total, available, reserved int32) error {
	switch {
	case total < 0:
		return fmt.Errorf("%w: total copies would be %d", ErrInvariantViolation, total)
	case available < 0:
		return fmt.Errorf("%w: available copies would be %d", ErrInvariantViolation, available)
	case available > total:
		return fmt.Errorf("%w: available copies %d would exceed total %d", ErrInvariantViolation, available, total)
	case reserved < 0:
		return fmt.Errorf("%w: reserved copies would be %d", ErrInvariantViolation, reserved)
	}
	return nil
}

// GetBook retrieves a book by ID
func (c *CatalogStore) GetBook(ctx context.Context, q database.BookQuerier, bookID int64) (models.Book, error) {
	book, err := q.GetBook(ctx, bookID)
	if err != nil {
		return models.Book{}, lookupError("book", bookID, err)
	}
	return book, nil
}

// ListBooks searches the catalog by title or ISBN substring
func (c *CatalogStore) ListBooks(ctx context.Context, q database.BookQuerier, filter models.BookFilter) ([]models.Book, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}
	if filter.Offset < 0 {
		return nil, validationError("offset must not be negative")
	}
	filter.Query = strings.TrimSpace(filter.Query)

	books, err := q.ListBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// LowStock lists books with at most threshold available copies
func (c *CatalogStore) LowStock(ctx context.Context, q database.BookQuerier, threshold int32, limit int) ([]models.Book, error) {
	if threshold < 0 {
		return nil, validationError("threshold must not be negative")
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	books, err := q.ListLowStockBooks(ctx, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock books: %w", err)
	}
	return books, nil
}

// CreateBook adds a title with all of its copies on the shelf
func (c *CatalogStore) CreateBook(ctx context.Context, q database.BookQuerier, req models.CreateBookRequest) (models.Book, error) {
	if strings.TrimSpace(req.ISBN) == "" || strings.TrimSpace(req.Title) == "" {
		return models.Book{}, validationError("isbn and title are required")
	}
	if req.TotalCopies < 0 {
		return models.Book{}, validationError("total_copies must not be negative")
	}

	book, err := q.CreateBook(ctx, models.Book{
		ISBN:            strings.TrimSpace(req.ISBN),
		Title:           strings.TrimSpace(req.Title),
		CategoryID:      req.CategoryID,
		Publisher:       req.Publisher,
		PublicationYear: req.PublicationYear,
		LocationShelf:   req.LocationShelf,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		Status:          models.StatusFor(req.TotalCopies),
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.Book{}, validationError("a book with ISBN %s already exists", req.ISBN)
		}
		return models.Book{}, fmt.Errorf("failed to create book: %w", err)
	}
	return book, nil
}

// UpdateBook applies a partial update. A change of total_copies shifts
// available_copies by the same amount and cannot drop below issued copies.
func (c *CatalogStore) UpdateBook(ctx context.Context, q database.BookQuerier, bookID int64, req models.UpdateBookRequest) (models.Book, error) {
	book, err := c.LockBook(ctx, q, bookID)
	if err != nil {
		return models.Book{}, err
	}

	if req.ISBN != nil {
		book.ISBN = strings.TrimSpace(*req.ISBN)
	}
	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if book.ISBN == "" || book.Title == "" {
		return models.Book{}, validationError("isbn and title must not be empty")
	}
	if req.CategoryID != nil {
		book.CategoryID = req.CategoryID
	}
	if req.Publisher != nil {
		book.Publisher = req.Publisher
	}
	if req.PublicationYear != nil {
		book.PublicationYear = req.PublicationYear
	}
	if req.LocationShelf != nil {
		book.LocationShelf = req.LocationShelf
	}

	if req.TotalCopies != nil && *req.TotalCopies != book.TotalCopies {
		delta := *req.TotalCopies - book.TotalCopies
		available := book.AvailableCopies + delta
		if err := checkCounters(*req.TotalCopies, available, book.ReservedCopies); err != nil {
			return models.Book{}, fmt.Errorf("cannot set total copies of book %d below %d issued: %w",
				bookID, book.IssuedCopies(), err)
		}
		book.TotalCopies = *req.TotalCopies
		book.AvailableCopies = available
	}
	book.Status = models.StatusFor(book.AvailableCopies)

	updated, err := q.UpdateBook(ctx, book)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.Book{}, validationError("a book with ISBN %s already exists", book.ISBN)
		}
		return models.Book{}, fmt.Errorf("failed to update book %d: %w", bookID, err)
	}
	return updated, nil
}
