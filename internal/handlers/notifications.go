package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/harborcare/notify/internal/realtime"
	"github.com/harborcare/notify/internal/services"
	"github.com/harborcare/notify/pkg/errors"
	"github.com/harborcare/notify/pkg/response"
)

// NotificationHandler exposes the recipient-facing query and mutation endpoints.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB, hub *realtime.Hub) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{service: service}, nil
}

// List returns notifications for a recipient, honouring type/read/priority
// filters and the limit parameter.
func (h *NotificationHandler) List(c *gin.Context) {
	recipientID := strings.TrimSpace(c.Param("id"))
	if recipientID == "" {
		response.Error(c, errors.NewBadRequest("recipient id is required"))
		return
	}

	limit := parseIntQuery(c, "limit", services.DefaultListLimit)

	items, err := h.service.ListForRecipient(requestContext(c), services.ListNotificationsInput{
		RecipientID: recipientID,
		Type:        strings.TrimSpace(c.Query("type")),
		Read:        parseBoolQuery(c, "read"),
		Priority:    strings.TrimSpace(c.Query("priority")),
		Limit:       limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Count: len(items),
		Limit: limit,
	})
}

// UnreadCount returns the number of active unread notifications for a recipient.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	recipientID := strings.TrimSpace(c.Param("id"))
	if recipientID == "" {
		response.Error(c, errors.NewBadRequest("recipient id is required"))
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), recipientID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"recipient_id": recipientID,
		"unread_count": count,
	})
}

// Stats returns aggregate counters for a recipient.
func (h *NotificationHandler) Stats(c *gin.Context) {
	recipientID := strings.TrimSpace(c.Param("id"))
	if recipientID == "" {
		response.Error(c, errors.NewBadRequest("recipient id is required"))
		return
	}

	stats, err := h.service.Stats(requestContext(c), recipientID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// MarkRead marks a single notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	dto, err := h.service.MarkRead(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks every unread notification of a recipient as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	recipientID := strings.TrimSpace(c.Param("id"))
	if recipientID == "" {
		response.Error(c, errors.NewBadRequest("recipient id is required"))
		return
	}

	modified, err := h.service.MarkAllRead(requestContext(c), recipientID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"modified_count": modified})
}

// Delete removes a single notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	dto, err := h.service.Delete(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
