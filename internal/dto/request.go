package dto

import (
	"time"

	"github.com/noah-isme/confhub-api/internal/models"
)

// SubmitMicRequest is the POST /mic-requests payload.
type SubmitMicRequest struct {
	EventID string `json:"event_id" validate:"required"`
	Reason  string `json:"reason" validate:"required,max=1000"`
}

// SubmitComplaintRequest is the POST /complaints payload.
type SubmitComplaintRequest struct {
	EventID     string `json:"event_id" validate:"required"`
	IssueType   string `json:"issue_type" validate:"required,issue_type"`
	Description string `json:"description" validate:"required,max=4000"`
}

// TransitionRequest moves a pending request to a terminal status.
type TransitionRequest struct {
	Status models.RequestStatus `json:"status" validate:"required,oneof=approved denied"`
}

// RequestListQuery mirrors GET /mic-requests and GET /complaints filters.
type RequestListQuery struct {
	EventID  string                 `form:"event_id"`
	Status   []models.RequestStatus `form:"status"`
	Mine     bool                   `form:"mine"`
	Page     int                    `form:"page"`
	PageSize int                    `form:"page_size"`
}

// TransitionResult is returned by the lifecycle controller.
type TransitionResult struct {
	Kind         models.RequestKind   `json:"kind"`
	Request      interface{}          `json:"request"`
	Notification models.Notification  `json:"notification"`
	Status       models.RequestStatus `json:"status"`
	ReviewedAt   time.Time            `json:"reviewed_at"`
}
