package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
)

// ReservationService is the part of the lifecycle the reservation routes need
type ReservationService interface {
	CreateReservation(ctx context.Context, caller models.Identity, req models.CreateReservationRequest) (models.CreateReservationResult, error)
	CancelReservation(ctx context.Context, caller models.Identity, reservationID int64) (models.Reservation, error)
	FulfillReservation(ctx context.Context, caller models.Identity, reservationID int64) (models.FulfillResult, error)
	ExpireDue(ctx context.Context, caller models.Identity) (models.ExpireResult, error)
	ListReservations(ctx context.Context, caller models.Identity, filter models.ReservationFilter) ([]models.ReservationDetails, error)
	ReservationHistory(ctx context.Context, caller models.Identity, filter models.HistoryFilter) ([]models.ReservationHistory, error)
}

// ReservationHandler handles reservation-related HTTP requests
type ReservationHandler struct {
	reservations ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservations ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// CreateReservation places a hold. Repeating the request while the hold is
// still pending answers 200 with the same reservation_id.
// @Summary Create a reservation
// @Tags reservations
// @Accept json
// @Produce json
// @Param reservation body models.CreateReservationRequest true "Reservation data"
// @Success 201 {object} SuccessResponse
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/reservations [post]
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req models.CreateReservationRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.reservations.CreateReservation(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to create reservation")
		return
	}

	if result.Existing {
		c.JSON(http.StatusOK, SuccessResponse{
			Success: true,
			Data: gin.H{
				"reservation_id": result.Reservation.ID,
				"existing":       true,
			},
			Message: "Reservation already exists",
		})
		return
	}

	data := gin.H{"reservation_id": result.Reservation.ID}
	if result.Fulfilled != nil {
		data["loan_id"] = result.Fulfilled.Loan.ID
	}
	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    data,
		Message: "Reservation created successfully",
	})
}

// CancelReservation withdraws a pending hold
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "reservation ID")
	if !ok {
		return
	}

	reservation, err := h.reservations.CancelReservation(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err, "Failed to cancel reservation")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation cancelled successfully",
	})
}

// FulfillReservation turns a pending hold into a loan
func (h *ReservationHandler) FulfillReservation(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "reservation ID")
	if !ok {
		return
	}

	result, err := h.reservations.FulfillReservation(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err, "Failed to fulfill reservation")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data: gin.H{
			"reservation_id": result.Reservation.ID,
			"loan_id":        result.Loan.ID,
		},
		Message: "Reservation fulfilled successfully",
	})
}

// ExpireDue runs the expiry sweep on demand
func (h *ReservationHandler) ExpireDue(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	result, err := h.reservations.ExpireDue(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to expire reservations")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    result,
	})
}

// ListReservations lists holds with optional status, user and book filters
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	var filter models.ReservationFilter
	if raw := c.Query("status"); raw != "" {
		s := models.ReservationStatus(raw)
		if !models.ValidateReservationStatus(s) {
			validationFailed(c, "Invalid status parameter", nil)
			return
		}
		filter.Status = &s
	}
	if filter.UserID, ok = queryInt64(c, "user_id"); !ok {
		return
	}
	if filter.BookID, ok = queryInt64(c, "book_id"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}

	reservations, err := h.reservations.ListReservations(c.Request.Context(), caller, filter)
	if err != nil {
		respondError(c, err, "Failed to list reservations")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    reservations,
		Meta:    ListMeta{Count: len(reservations), Limit: filter.Limit},
	})
}

// MemberHistory returns a member's reservation audit trail
func (h *ReservationHandler) MemberHistory(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId", "user ID")
	if !ok {
		return
	}

	filter := models.HistoryFilter{UserID: userID}
	if raw := c.Query("status"); raw != "" {
		s := models.ReservationStatus(raw)
		if !models.ValidateReservationStatus(s) {
			validationFailed(c, "Invalid status parameter", nil)
			return
		}
		filter.ToStatus = &s
	}
	if filter.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}

	history, err := h.reservations.ReservationHistory(c.Request.Context(), caller, filter)
	if err != nil {
		respondError(c, err, "Failed to get reservation history")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    history,
		Meta:    ListMeta{Count: len(history), Limit: filter.Limit},
	})
}
