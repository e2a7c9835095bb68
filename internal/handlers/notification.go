package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
	"github.com/adibqt/LibroTrack/internal/services"
)

// NotificationHandler exposes the reservation-ready queue to the dispatcher
type NotificationHandler struct {
	queue services.NotificationQueue
}

func NewNotificationHandler(queue services.NotificationQueue) *NotificationHandler {
	return &NotificationHandler{queue: queue}
}

// Pending returns the oldest notifications still waiting for delivery
func (h *NotificationHandler) Pending(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	notifications, err := h.queue.Pending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Failed to get pending notifications")
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    notifications,
		Meta:    ListMeta{Count: len(notifications), Limit: limit},
	})
}

func (h *NotificationHandler) MarkSent(c *gin.Context) {
	n, err := h.queue.MarkSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to update notification")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    n,
		Message: "Notification marked as sent",
	})
}

func (h *NotificationHandler) MarkFailed(c *gin.Context) {
	var req models.MarkFailedRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.queue.MarkFailed(c.Request.Context(), c.Param("id"), req.Error)
	if err != nil {
		respondError(c, err, "Failed to update notification")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    n,
		Message: "Notification marked as failed",
	})
}
