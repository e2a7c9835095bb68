package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/middleware"
	"github.com/adibqt/LibroTrack/internal/models"
	"github.com/adibqt/LibroTrack/internal/services"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ListResponse represents a list response
type ListResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ListMeta describes the slice of results returned
type ListMeta struct {
	Count  int `json:"count"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

var errorStatuses = []struct {
	target error
	status int
	code   string
}{
	{services.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{services.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{services.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{services.ErrInvalidState, http.StatusBadRequest, "INVALID_STATE"},
	{services.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{services.ErrBorrowingLimit, http.StatusConflict, "BORROWING_LIMIT"},
	{services.ErrInvariantViolation, http.StatusConflict, "INVARIANT_VIOLATION"},
	{database.ErrCheckViolation, http.StatusConflict, "INVARIANT_VIOLATION"},
	{services.ErrConflict, http.StatusConflict, "CONFLICT"},
}

// classifyError maps a service error to its HTTP status and error code
func classifyError(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// respondError writes the error envelope for err. Internal errors are logged
// and replaced by fallback so storage details never reach the client.
func respondError(c *gin.Context, err error, fallback string) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Default().Error(fallback,
			"error", err,
			"method", c.Request.Method,
			"path", c.FullPath(),
		)
		message = fallback
	}

	_ = c.Error(err)
	c.JSON(status, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func validationFailed(c *gin.Context, message string, details interface{}) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: message,
			Details: details,
		},
	})
}

// bindJSON decodes the body into req and answers 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		validationFailed(c, "Invalid request data", err.Error())
		return false
	}
	return true
}

// callerIdentity returns the authenticated caller. Routes behind RequireAuth
// always have one; the 401 is a guard against misconfigured routing.
func callerIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    "UNAUTHORIZED",
				Message: "Authentication required",
			},
		})
	}
	return identity, ok
}

// pathID parses a positive integer path parameter
func pathID(c *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		validationFailed(c, "Invalid "+label, nil)
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional positive integer query parameter
func queryInt64(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		validationFailed(c, "Invalid "+name+" parameter", nil)
		return nil, false
	}
	return &v, true
}

// queryInt parses an optional non-negative integer query parameter,
// returning def when absent. Range checks are left to the services.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		validationFailed(c, "Invalid "+name+" parameter", nil)
		return 0, false
	}
	return v, true
}
