package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
)

// ReportService produces the read-only lending reports
type ReportService interface {
	PopularBooks(ctx context.Context, period models.ReportPeriod) (*models.PopularBooksReport, error)
	MemberActivity(ctx context.Context, limit int) (*models.MemberActivityReport, error)
	FinesSummary(ctx context.Context) (*models.FinesSummaryReport, error)
}

// ReportHandler handles report requests. Routes are staff only.
type ReportHandler struct {
	reports ReportService
}

func NewReportHandler(reports ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// parseReportDate accepts a calendar date or an RFC 3339 timestamp
func parseReportDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// PopularBooks ranks titles by loans between ?from= and ?to=
func (h *ReportHandler) PopularBooks(c *gin.Context) {
	var period models.ReportPeriod
	for name, dst := range map[string]*time.Time{"from": &period.From, "to": &period.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := parseReportDate(raw)
		if err != nil {
			validationFailed(c, "Invalid "+name+" date, expected YYYY-MM-DD", nil)
			return
		}
		*dst = t
	}
	var ok bool
	if period.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}

	report, err := h.reports.PopularBooks(c.Request.Context(), period)
	if err != nil {
		respondError(c, err, "Failed to generate popular books report")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    report,
	})
}

func (h *ReportHandler) MemberActivity(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	report, err := h.reports.MemberActivity(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Failed to generate member activity report")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    report,
	})
}

func (h *ReportHandler) FinesSummary(c *gin.Context) {
	report, err := h.reports.FinesSummary(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to generate fines summary")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    report,
	})
}
