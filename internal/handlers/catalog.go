package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
)

// CatalogService is the part of the lifecycle the catalog routes need
type CatalogService interface {
	GetAvailability(ctx context.Context, bookID int64) (models.Availability, error)
	GetBook(ctx context.Context, bookID int64) (models.Book, error)
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	LowStock(ctx context.Context, caller models.Identity, threshold *int32, limit int) ([]models.Book, error)
	CreateBook(ctx context.Context, caller models.Identity, req models.CreateBookRequest) (models.Book, error)
	UpdateBook(ctx context.Context, caller models.Identity, bookID int64, req models.UpdateBookRequest) (models.Book, error)
}

// CatalogHandler handles book and availability requests
type CatalogHandler struct {
	catalog CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GetAvailability returns the copy counters of a book
// @Summary Get book availability
// @Tags catalog
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} models.Availability
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/catalog/books/{id}/availability [get]
func (h *CatalogHandler) GetAvailability(c *gin.Context) {
	id, ok := pathID(c, "id", "book ID")
	if !ok {
		return
	}

	availability, err := h.catalog.GetAvailability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get availability")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    availability,
	})
}

func (h *CatalogHandler) GetBook(c *gin.Context) {
	id, ok := pathID(c, "id", "book ID")
	if !ok {
		return
	}

	book, err := h.catalog.GetBook(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get book")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
	})
}

// ListBooks searches the catalog by ?q= (title or ISBN) and ?category_id=
func (h *CatalogHandler) ListBooks(c *gin.Context) {
	filter := models.BookFilter{Query: strings.TrimSpace(c.Query("q"))}

	var ok bool
	if filter.CategoryID, ok = queryInt64(c, "category_id"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(c, "limit", 20); !ok {
		return
	}
	if filter.Offset, ok = queryInt(c, "offset", 0); !ok {
		return
	}

	books, err := h.catalog.ListBooks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list books")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    books,
		Meta:    ListMeta{Count: len(books), Limit: filter.Limit, Offset: filter.Offset},
	})
}

// LowStock lists books at or below ?threshold= available copies
func (h *CatalogHandler) LowStock(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	var threshold *int32
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || v < 0 {
			validationFailed(c, "Invalid threshold parameter", nil)
			return
		}
		t := int32(v)
		threshold = &t
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	books, err := h.catalog.LowStock(c.Request.Context(), caller, threshold, limit)
	if err != nil {
		respondError(c, err, "Failed to list low stock books")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    books,
		Meta:    ListMeta{Count: len(books)},
	})
}

func (h *CatalogHandler) CreateBook(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req models.CreateBookRequest
	if !bindJSON(c, &req) {
		return
	}

	book, err := h.catalog.CreateBook(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to create book")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Book created successfully",
	})
}

func (h *CatalogHandler) UpdateBook(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "book ID")
	if !ok {
		return
	}
	var req models.UpdateBookRequest
	if !bindJSON(c, &req) {
		return
	}

	book, err := h.catalog.UpdateBook(c.Request.Context(), caller, id, req)
	if err != nil {
		respondError(c, err, "Failed to update book")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Book updated successfully",
	})
}
