package models

import "time"

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationTypeMicRequest   NotificationType = "mic_request"
	NotificationTypeComplaint    NotificationType = "complaint"
	NotificationTypeAnnouncement NotificationType = "announcement"
	NotificationTypeEventUpdate  NotificationType = "event_update"
)

// Notification is a per-user message. Read only ever moves from false to true.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	SenderID    *string          `db:"sender_id" json:"sender_id,omitempty"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Type        NotificationType `db:"type" json:"type"`
	Read        bool             `db:"read" json:"read"`
	ReferenceID *string          `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	ReadAt      *time.Time       `db:"read_at" json:"read_at,omitempty"`
}

// NotificationFilter constrains notification listings.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// DeliveryStatus tracks outbox delivery progress.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// NotificationDelivery is the outbox row written alongside every notification.
type NotificationDelivery struct {
	ID             string         `db:"id" json:"id"`
	NotificationID string         `db:"notification_id" json:"notification_id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Status         DeliveryStatus `db:"status" json:"status"`
	Attempts       int            `db:"attempts" json:"attempts"`
	NextAttemptAt  time.Time      `db:"next_attempt_at" json:"next_attempt_at"`
	ClaimedUntil   *time.Time     `db:"claimed_until" json:"claimed_until,omitempty"`
	LastError      *string        `db:"last_error" json:"last_error,omitempty"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// PendingDelivery pairs a claimed outbox row with the notification it delivers.
type PendingDelivery struct {
	Delivery     NotificationDelivery
	Notification Notification
}

// NewDelivery builds the pending outbox row for n.
func NewDelivery(id string, n Notification, now time.Time) NotificationDelivery {
	return NotificationDelivery{
		ID:             id,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Status:         DeliveryStatusPending,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
