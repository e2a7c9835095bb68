package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
)

// LoanService is the part of the lifecycle the loan routes need
type LoanService interface {
	IssueLoan(ctx context.Context, caller models.Identity, req models.IssueLoanRequest) (models.Loan, error)
	ReturnLoan(ctx context.Context, caller models.Identity, loanID int64) (models.ReturnResult, error)
	MarkLost(ctx context.Context, caller models.Identity, loanID int64) (models.LostResult, error)
	ListLoans(ctx context.Context, caller models.Identity, userID int64, status *models.LoanStatus) ([]models.LoanDetails, error)
}

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loans LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loans LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// IssueLoan lends a copy of a book to a member
// @Summary Issue a loan
// @Tags loans
// @Accept json
// @Produce json
// @Param loan body models.IssueLoanRequest true "Loan data"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/loans [post]
func (h *LoanHandler) IssueLoan(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req models.IssueLoanRequest
	if !bindJSON(c, &req) {
		return
	}

	loan, err := h.loans.IssueLoan(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to issue loan")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data: gin.H{
			"loan_id":  loan.ID,
			"due_date": loan.DueDate,
		},
		Message: "Book issued successfully",
	})
}

// ReturnLoan closes a loan
// @Summary Return a loan
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/loans/{id}/return [post]
func (h *LoanHandler) ReturnLoan(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	loanID, ok := pathID(c, "id", "loan ID")
	if !ok {
		return
	}

	result, err := h.loans.ReturnLoan(c.Request.Context(), caller, loanID)
	if err != nil {
		respondError(c, err, "Failed to return loan")
		return
	}

	data := gin.H{
		"message": "Book returned successfully",
		"loan_id": result.Loan.ID,
	}
	if result.Fine != nil {
		data["fine"] = result.Fine
	}
	if result.FulfilledReservation != nil {
		data["fulfilled_reservation"] = result.FulfilledReservation
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// MarkLost closes a loan as LOST and charges the lost item fee
func (h *LoanHandler) MarkLost(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	loanID, ok := pathID(c, "id", "loan ID")
	if !ok {
		return
	}

	result, err := h.loans.MarkLost(c.Request.Context(), caller, loanID)
	if err != nil {
		respondError(c, err, "Failed to mark loan as lost")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    result,
		Message: "Loan marked as lost",
	})
}

// ListUserLoans lists a member's loans, optionally filtered by status
func (h *LoanHandler) ListUserLoans(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId", "user ID")
	if !ok {
		return
	}

	var status *models.LoanStatus
	if raw := c.Query("status"); raw != "" {
		s := models.LoanStatus(raw)
		if !models.ValidLoanStatus(s) {
			validationFailed(c, "Invalid status parameter", nil)
			return
		}
		status = &s
	}

	loans, err := h.loans.ListLoans(c.Request.Context(), caller, userID, status)
	if err != nil {
		respondError(c, err, "Failed to list loans")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    loans,
		Meta:    ListMeta{Count: len(loans)},
	})
}
