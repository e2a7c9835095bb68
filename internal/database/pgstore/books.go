package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

const bookColumns = `book_id, isbn, title, category_id, publisher, publication_year, location_shelf,
	total_copies, available_copies, reserved_copies, status, created_at, updated_at`

var bookSelect = []any{
	"book_id", "isbn", "title", "category_id", "publisher", "publication_year", "location_shelf",
	"total_copies", "available_copies", "reserved_copies", "status", "created_at", "updated_at",
}

func scanBook(row pgx.Row) (models.Book, error) {
	var b models.Book
	err := row.Scan(
		&b.ID,
		&b.ISBN,
		&b.Title,
		&b.CategoryID,
		&b.Publisher,
		&b.PublicationYear,
		&b.LocationShelf,
		&b.TotalCopies,
		&b.AvailableCopies,
		&b.ReservedCopies,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, translate(err)
}

func collectBooks(rows pgx.Rows) ([]models.Book, error) {
	defer rows.Close()

	books := make([]models.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, translate(rows.Err())
}

func (q *Queries) GetBook(ctx context.Context, id int64) (models.Book, error) {
	return scanBook(q.db.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE book_id = $1`, id))
}

func (q *Queries) GetBookForUpdate(ctx context.Context, id int64) (models.Book, error) {
	return scanBook(q.db.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE book_id = $1 FOR UPDATE`, id))
}

func (q *Queries) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	ds := dialect.From("books").
		Select(bookSelect...).
		Order(goqu.I("title").Asc(), goqu.I("book_id").Asc()).
		Limit(clampLimit(filter.Limit))

	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		ds = ds.Where(goqu.Or(
			goqu.L("LOWER(title) LIKE ?", pattern),
			goqu.I("isbn").Like(pattern),
		))
	}
	if filter.CategoryID != nil {
		ds = ds.Where(goqu.Ex{"category_id": *filter.CategoryID})
	}

	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

func (q *Queries) ListLowStockBooks(ctx context.Context, threshold int32, limit int) ([]models.Book, error) {
	ds := dialect.From("books").
		Select(bookSelect...).
		Where(goqu.I("available_copies").Lte(threshold)).
		Order(goqu.I("available_copies").Asc(), goqu.I("title").Asc()).
		Limit(clampLimit(limit))

	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

func (q *Queries) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO books (isbn, title, category_id, publisher, publication_year, location_shelf,
			total_copies, available_copies, reserved_copies, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING `+bookColumns,
		b.ISBN, b.Title, b.CategoryID, b.Publisher, b.PublicationYear, b.LocationShelf,
		b.TotalCopies, b.AvailableCopies, b.ReservedCopies, b.Status,
	)
	return scanBook(row)
}

func (q *Queries) UpdateBook(ctx context.Context, b models.Book) (models.Book, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE books
		SET isbn = $2, title = $3, category_id = $4, publisher = $5, publication_year = $6,
			location_shelf = $7, total_copies = $8, available_copies = $9, reserved_copies = $10,
			status = $11, updated_at = NOW()
		WHERE book_id = $1
		RETURNING `+bookColumns,
		b.ID, b.ISBN, b.Title, b.CategoryID, b.Publisher, b.PublicationYear,
		b.LocationShelf, b.TotalCopies, b.AvailableCopies, b.ReservedCopies, b.Status,
	)
	return scanBook(row)
}

func (q *Queries) SetBookCopies(ctx context.Context, id int64, total, available, reserved int32, status models.BookStatus) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE books
		SET total_copies = $2, available_copies = $3, reserved_copies = $4, status = $5, updated_at = NOW()
		WHERE book_id = $1`,
		id, total, available, reserved, status,
	)
	if err != nil {
		return translate(fmt.Errorf("failed to update copies of book %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
