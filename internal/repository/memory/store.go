// Package memory implements the repository contracts on process memory. It backs
// STORAGE_DRIVER=memory for demos and doubles as the fake persistence in service tests.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository"
)

type attendeeKey struct {
	eventID string
	userID  string
}

// Store holds every table behind one lock so multi-table writes are atomic.
type Store struct {
	mu sync.RWMutex

	profiles      map[string]models.User
	events        map[string]models.Event
	micRequests   map[string]models.MicRequest
	complaints    map[string]models.Complaint
	notifications map[string]models.Notification
	deliveries    map[string]models.NotificationDelivery
	attendees     map[attendeeKey]models.EventAttendee
	feedbacks     map[string]models.Feedback
	audit         []models.AuditLog

	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		profiles:      make(map[string]models.User),
		events:        make(map[string]models.Event),
		micRequests:   make(map[string]models.MicRequest),
		complaints:    make(map[string]models.Complaint),
		notifications: make(map[string]models.Notification),
		deliveries:    make(map[string]models.NotificationDelivery),
		attendees:     make(map[attendeeKey]models.EventAttendee),
		feedbacks:     make(map[string]models.Feedback),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserRepository                 { return &UserRepository{s: s} }
func (s *Store) Events() *EventRepository               { return &EventRepository{s: s} }
func (s *Store) Requests() *RequestRepository           { return &RequestRepository{s: s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }
func (s *Store) Attendees() *AttendeeRepository         { return &AttendeeRepository{s: s} }
func (s *Store) Dashboard() *DashboardRepository        { return &DashboardRepository{s: s} }
func (s *Store) Feedback() *FeedbackRepository          { return &FeedbackRepository{s: s} }

// Stores exposes the store as a persistence backend.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Users:         s.Users(),
		Events:        s.Events(),
		Requests:      s.Requests(),
		Notifications: s.Notifications(),
		Attendees:     s.Attendees(),
		Dashboard:     s.Dashboard(),
		Feedback:      s.Feedback(),
	}
}

// AuditLogs returns a copy of the recorded audit trail.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

func paginate[T any](items []T, page, pageSize, maxSize int) []T {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxSize {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sortNewestFirst[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if ci.Equal(cj) {
			return id(items[i]) > id(items[j])
		}
		return ci.After(cj)
	})
}

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
