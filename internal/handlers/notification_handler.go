package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	notificationService services.NotificationServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotifications lists the caller's notifications, newest first.
// @Summary     Get notifications
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 50, max 200)"
// @Success     200 {object} services.NotificationPage "Paginated notifications"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.notificationService.ListNotifications(c.Request.Context(), sess, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearNotifications deletes every notification of the caller.
// @Summary     Clear notifications
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int64 "Number of notifications removed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications [delete]
func (h *NotificationHandler) ClearNotifications(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	removed, err := h.notificationService.ClearNotifications(c.Request.Context(), sess)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": removed})
}
