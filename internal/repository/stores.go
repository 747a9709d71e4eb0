package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confhub-api/internal/models"
)

// UserStore persists profiles and the audit trail.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Update(ctx context.Context, event *models.Event) error
	UpdateStatus(ctx context.Context, id string, status models.EventStatus, at time.Time) error
	CountDependents(ctx context.Context, id string) (models.EventDependents, error)
	Delete(ctx context.Context, id string) error
}

// RequestStore persists mic requests and complaints and applies lifecycle transitions.
type RequestStore interface {
	CreateMicRequest(ctx context.Context, req *models.MicRequest) error
	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	GetMicRequest(ctx context.Context, id string) (*models.MicRequest, error)
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	ListMicRequests(ctx context.Context, filter models.RequestFilter) ([]models.MicRequest, int, error)
	ListComplaints(ctx context.Context, filter models.RequestFilter) ([]models.Complaint, int, error)
	HasActive(ctx context.Context, kind models.RequestKind, userID, eventID string) (bool, error)
	GetRef(ctx context.Context, kind models.RequestKind, id string) (*models.RequestRef, error)
	ApplyTransition(ctx context.Context, t models.Transition) error
}

// NotificationStore persists notifications and their delivery outbox.
type NotificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification, deliveries []models.NotificationDelivery) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.PendingDelivery, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, final bool) error
}

// AttendeeStore persists event registrations.
type AttendeeStore interface {
	Register(ctx context.Context, eventID, userID string, capacity int, at time.Time) error
	Cancel(ctx context.Context, eventID, userID string) error
	Get(ctx context.Context, eventID, userID string) (*models.EventAttendee, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.EventAttendee, error)
	ListUserIDs(ctx context.Context, eventID string) ([]string, error)
	MarkCheckedIn(ctx context.Context, eventID, userID string, at time.Time) (bool, error)
}

// DashboardStore computes dashboard aggregates.
type DashboardStore interface {
	CountEventsByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountRequestsByStatus(ctx context.Context, kind models.RequestKind) ([]models.StatusCount, error)
	CountRegistrations(ctx context.Context) (int, int, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// FeedbackStore persists star ratings.
type FeedbackStore interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error)
	RatingCounts(ctx context.Context, eventID string) ([]models.RatingCount, error)
}

// Stores bundles one persistence backend.
type Stores struct {
	Users         UserStore
	Events        EventStore
	Requests      RequestStore
	Notifications NotificationStore
	Attendees     AttendeeStore
	Dashboard     DashboardStore
	Feedback      FeedbackStore
	// Ping reports backend health for readiness probes. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewPostgresStores wires every SQL repository over db.
func NewPostgresStores(db *sqlx.DB) Stores {
	return Stores{
		Users:         NewUserRepository(db),
		Events:        NewEventRepository(db),
		Requests:      NewRequestRepository(db),
		Notifications: NewNotificationRepository(db),
		Attendees:     NewAttendeeRepository(db),
		Dashboard:     NewDashboardRepository(db),
		Feedback:      NewFeedbackRepository(db),
		Ping:          db.PingContext,
	}
}
