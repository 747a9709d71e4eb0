package dto

import (
	"time"

	"github.com/noah-isme/confhub-api/internal/models"
)

// CheckInTokenResponse carries the signed QR payload.
type CheckInTokenResponse struct {
	Token     string    `json:"token"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckInRequest is posted by organizers scanning a QR code.
type CheckInRequest struct {
	Token string `json:"token" validate:"required"`
}

// CheckInResponse reports the registration after check-in.
type CheckInResponse struct {
	Attendee         models.EventAttendee `json:"attendee"`
	AlreadyCheckedIn bool                 `json:"already_checked_in"`
}
