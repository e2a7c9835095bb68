package models

import (
	"time"
)

// Book represents a catalog title and its copy counters
type Book struct {
	ID              int64      `json:"book_id" db:"book_id"`
	ISBN            string     `json:"isbn" db:"isbn"`
	Title           string     `json:"title" db:"title"`
	CategoryID      *int64     `json:"category_id,omitempty" db:"category_id"`
	Publisher       *string    `json:"publisher,omitempty" db:"publisher"`
	PublicationYear *int32     `json:"publication_year,omitempty" db:"publication_year"`
	LocationShelf   *string    `json:"location_shelf,omitempty" db:"location_shelf"`
	TotalCopies     int32      `json:"total_copies" db:"total_copies"`
	AvailableCopies int32      `json:"available_copies" db:"available_copies"`
	ReservedCopies  int32      `json:"reserved_copies" db:"reserved_copies"`
	Status          BookStatus `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IssuedCopies is the number of copies currently out on loan
func (b Book) IssuedCopies() int32 {
	return b.TotalCopies - b.AvailableCopies
}

// Availability returns the public counter projection of the book
func (b Book) Availability() Availability {
	return Availability{
		BookID:          b.ID,
		AvailableCopies: b.AvailableCopies,
		ReservedCopies:  b.ReservedCopies,
		TotalCopies:     b.TotalCopies,
	}
}

// BookStatus represents the shelf status of a book
type BookStatus string

const (
	BookStatusAvailable    BookStatus = "AVAILABLE"
	BookStatusNotAvailable BookStatus = "NOT_AVAILABLE"
)

// StatusFor derives the book status from its available copies
func StatusFor(available int32) BookStatus {
	if available > 0 {
		return BookStatusAvailable
	}
	return BookStatusNotAvailable
}

// Availability is the response of the availability endpoint
type Availability struct {
	BookID          int64 `json:"book_id"`
	AvailableCopies int32 `json:"available_copies"`
	ReservedCopies  int32 `json:"reserved_copies"`
	TotalCopies     int32 `json:"total_copies"`
}

// CreateBookRequest represents the request to add a title to the catalog
type CreateBookRequest struct {
	ISBN            string  `json:"isbn" binding:"required,min=10,max=20"`
	Title           string  `json:"title" binding:"required,min=1,max=255"`
	CategoryID      *int64  `json:"category_id" binding:"omitempty,min=1"`
	Publisher       *string `json:"publisher" binding:"omitempty,max=255"`
	PublicationYear *int32  `json:"publication_year" binding:"omitempty,min=1000,max=9999"`
	LocationShelf   *string `json:"location_shelf" binding:"omitempty,max=50"`
	TotalCopies     int32   `json:"total_copies" binding:"min=0,max=10000"`
}

// UpdateBookRequest represents a partial update of a catalog title
type UpdateBookRequest struct {
	ISBN            *string `json:"isbn" binding:"omitempty,min=10,max=20"`
	Title           *string `json:"title" binding:"omitempty,min=1,max=255"`
	CategoryID      *int64  `json:"category_id" binding:"omitempty,min=1"`
	Publisher       *string `json:"publisher" binding:"omitempty,max=255"`
	PublicationYear *int32  `json:"publication_year" binding:"omitempty,min=1000,max=9999"`
	LocationShelf   *string `json:"location_shelf" binding:"omitempty,max=50"`
	TotalCopies     *int32  `json:"total_copies" binding:"omitempty,min=0,max=10000"`
}

// BookFilter narrows catalog listings
type BookFilter struct {
	Query      string
	CategoryID *int64
	Limit      int
	Offset     int
}
