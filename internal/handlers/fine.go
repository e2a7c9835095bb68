package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
)

// FineService is the part of the lifecycle the fine routes need
type FineService interface {
	AssessFine(ctx context.Context, caller models.Identity, req models.AssessFineRequest) (models.Fine, error)
	PayFine(ctx context.Context, caller models.Identity, fineID int64) (models.Fine, error)
	WaiveFine(ctx context.Context, caller models.Identity, fineID int64) (models.Fine, error)
	GetFine(ctx context.Context, caller models.Identity, fineID int64) (models.Fine, error)
	ListFinesForUser(ctx context.Context, caller models.Identity, userID int64) ([]models.Fine, error)
	ListFines(ctx context.Context, caller models.Identity, filter models.FineFilter) ([]models.Fine, error)
}

// FineHandler handles fine-related HTTP requests
type FineHandler struct {
	fines FineService
}

// NewFineHandler creates a new fine handler
func NewFineHandler(fines FineService) *FineHandler {
	return &FineHandler{fines: fines}
}

// AssessFine records a manual fine
// @Summary Assess a fine
// @Tags fines
// @Accept json
// @Produce json
// @Param fine body models.AssessFineRequest true "Fine data"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/fines [post]
func (h *FineHandler) AssessFine(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req models.AssessFineRequest
	if !bindJSON(c, &req) {
		return
	}

	fine, err := h.fines.AssessFine(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to assess fine")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    gin.H{"fine_id": fine.ID},
		Message: "Fine assessed successfully",
	})
}

func (h *FineHandler) PayFine(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "fine ID")
	if !ok {
		return
	}

	fine, err := h.fines.PayFine(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err, "Failed to pay fine")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    fine,
		Message: "Fine paid successfully",
	})
}

func (h *FineHandler) WaiveFine(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "fine ID")
	if !ok {
		return
	}

	fine, err := h.fines.WaiveFine(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err, "Failed to waive fine")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    fine,
		Message: "Fine waived successfully",
	})
}

func (h *FineHandler) GetFine(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "fine ID")
	if !ok {
		return
	}

	fine, err := h.fines.GetFine(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err, "Failed to get fine")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    fine,
	})
}

func (h *FineHandler) ListUserFines(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId", "user ID")
	if !ok {
		return
	}

	fines, err := h.fines.ListFinesForUser(c.Request.Context(), caller, userID)
	if err != nil {
		respondError(c, err, "Failed to list fines")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    fines,
		Meta:    ListMeta{Count: len(fines)},
	})
}

// ListFines lists every fine, filtered by ?user_id= and ?status=
func (h *FineHandler) ListFines(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	var filter models.FineFilter
	if filter.UserID, ok = queryInt64(c, "user_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		s := models.FineStatus(raw)
		if !models.ValidFineStatus(s) {
			validationFailed(c, "Invalid status parameter", nil)
			return
		}
		filter.Status = &s
	}
	if filter.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}

	fines, err := h.fines.ListFines(c.Request.Context(), caller, filter)
	if err != nil {
		respondError(c, err, "Failed to list fines")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    fines,
		Meta:    ListMeta{Count: len(fines), Limit: filter.Limit},
	})
}
