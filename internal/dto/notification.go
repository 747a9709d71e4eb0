package dto

import "github.com/noah-isme/confhub-api/internal/models"

// SendNotificationRequest broadcasts an announcement or event update.
// Recipients are the explicit users, the attendees of EventID, or both.
type SendNotificationRequest struct {
	Title   string                  `json:"title" validate:"required,max=200"`
	Message string                  `json:"message" validate:"required,max=2000"`
	Type    models.NotificationType `json:"type" validate:"required,oneof=announcement event_update"`
	UserIDs []string                `json:"user_ids" validate:"omitempty,dive,required"`
	EventID string                  `json:"event_id"`
}

// NotificationListQuery mirrors GET /notifications filters.
type NotificationListQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Limit      int  `form:"limit"`
	Offset     int  `form:"offset"`
}

// UnreadCountResponse reports the derived unread counter.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkReadResponse reports the effect of a read-state mutation.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
	Unread  int   `json:"unread"`
}

// SendNotificationResponse lists the created notifications.
type SendNotificationResponse struct {
	Recipients    int                   `json:"recipients"`
	Notifications []models.Notification `json:"notifications"`
}
