package models

import "time"

// RequestKind distinguishes the two attendee request tables.
type RequestKind string

const (
	RequestKindMic       RequestKind = "mic_request"
	RequestKindComplaint RequestKind = "complaint"
)

// Valid reports whether k is a known kind.
func (k RequestKind) Valid() bool {
	return k == RequestKindMic || k == RequestKindComplaint
}

// Table returns the backing table name.
func (k RequestKind) Table() string {
	if k == RequestKindComplaint {
		return "complaints"
	}
	return "mic_requests"
}

// NotificationType returns the notification type emitted on transition.
func (k RequestKind) NotificationType() NotificationType {
	if k == RequestKindComplaint {
		return NotificationTypeComplaint
	}
	return NotificationTypeMicRequest
}

// RequestStatus is the moderation state of a request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDenied   RequestStatus = "denied"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusDenied:
		return true
	}
	return false
}

// Active reports whether the status blocks a new submission for the same user and event.
func (s RequestStatus) Active() bool {
	return s == RequestStatusPending || s == RequestStatusApproved
}

// CanTransition reports whether from -> to is allowed. Only pending requests move,
// and only to a terminal status.
func CanTransition(from, to RequestStatus) bool {
	return from == RequestStatusPending && (to == RequestStatusApproved || to == RequestStatusDenied)
}

// ActiveRequestStatuses lists the statuses counted by the duplicate rule.
var ActiveRequestStatuses = []RequestStatus{RequestStatusPending, RequestStatusApproved}

// Complaint issue types accepted at submission.
const (
	IssueTechnical     = "Technical Issue"
	IssueAudio         = "Audio Problem"
	IssueVideo         = "Video Problem"
	IssueInappropriate = "Inappropriate Content"
	IssueSpeaker       = "Speaker Issue"
	IssueVenue         = "Venue Problem"
	IssueOther         = "Other"
)

// IssueTypes is the ordered set of accepted complaint issue types.
var IssueTypes = []string{IssueTechnical, IssueAudio, IssueVideo, IssueInappropriate, IssueSpeaker, IssueVenue, IssueOther}

// ValidIssueType reports whether v is an accepted issue type.
func ValidIssueType(v string) bool {
	for _, it := range IssueTypes {
		if it == v {
			return true
		}
	}
	return false
}

// MicRequest asks for the floor during an event.
type MicRequest struct {
	ID         string        `db:"id" json:"id"`
	EventID    string        `db:"event_id" json:"event_id"`
	UserID     string        `db:"user_id" json:"user_id"`
	Reason     string        `db:"reason" json:"reason"`
	Status     RequestStatus `db:"status" json:"status"`
	ReviewedBy *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// Complaint reports a problem during an event. Approved means acknowledged, denied means dismissed.
type Complaint struct {
	ID          string        `db:"id" json:"id"`
	EventID     string        `db:"event_id" json:"event_id"`
	UserID      string        `db:"user_id" json:"user_id"`
	IssueType   string        `db:"issue_type" json:"issue_type"`
	Description string        `db:"description" json:"description"`
	Status      RequestStatus `db:"status" json:"status"`
	ReviewedBy  *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// RequestRef is the kind-agnostic projection used by the lifecycle controller.
type RequestRef struct {
	ID      string        `db:"id"`
	Kind    RequestKind   `db:"-"`
	EventID string        `db:"event_id"`
	UserID  string        `db:"user_id"`
	Status  RequestStatus `db:"status"`
}

// RequestFilter constrains request listings.
type RequestFilter struct {
	UserID   string
	EventID  string
	Status   []RequestStatus
	Page     int
	PageSize int
}

// Transition carries everything persisted by a single status change.
type Transition struct {
	Kind         RequestKind
	RequestID    string
	To           RequestStatus
	ActorID      string
	At           time.Time
	Notification Notification
	Delivery     NotificationDelivery
}
