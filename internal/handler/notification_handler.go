package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, userID string, query dto.NotificationListQuery) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, bool, error)
	MarkAsRead(ctx context.Context, userID, id string) (*dto.MarkReadResponse, error)
	MarkAllAsRead(ctx context.Context, userID string) (*dto.MarkReadResponse, error)
	Send(ctx context.Context, session models.Session, req dto.SendNotificationRequest) (*dto.SendNotificationResponse, error)
}

// NotificationHandler exposes the caller's inbox.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread_only query bool false "Only unread"
// @Param limit query int false "Max items (default 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var query dto.NotificationListQuery
	if !bindQuery(c, &query) {
		return
	}
	items, err := h.service.List(c.Request.Context(), session.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UnreadCount godoc
// @Summary Count my unread notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	count, hit, err := h.service.UnreadCount(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UnreadCountResponse{Unread: count}, nil, cacheMeta(c, hit))
}

// MarkRead godoc
// @Summary Mark one notification read
// @Description Idempotent; returns the recomputed unread count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	result, err := h.service.MarkAsRead(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MarkAllRead godoc
// @Summary Mark all my notifications read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	result, err := h.service.MarkAllAsRead(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Send godoc
// @Summary Broadcast a notification
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SendNotificationRequest true "Notification"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req dto.SendNotificationRequest
	if !bindJSON(c, &req, "invalid notification payload") {
		return
	}
	result, err := h.service.Send(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
