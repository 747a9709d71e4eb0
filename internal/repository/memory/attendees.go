package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository"
)

// AttendeeRepository is the in-memory registration store.
type AttendeeRepository struct {
	s *Store
}

func (r *AttendeeRepository) Register(_ context.Context, eventID, userID string, capacity int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := attendeeKey{eventID: eventID, userID: userID}
	if _, exists := r.s.attendees[key]; exists {
		return repository.ErrAlreadyRegistered
	}
	count := 0
	for k := range r.s.attendees {
		if k.eventID == eventID {
			count++
		}
	}
	if count >= capacity {
		return repository.ErrEventFull
	}
	r.s.attendees[key] = models.EventAttendee{EventID: eventID, UserID: userID, RegisteredAt: at}
	return nil
}

func (r *AttendeeRepository) Cancel(_ context.Context, eventID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := attendeeKey{eventID: eventID, userID: userID}
	a, ok := r.s.attendees[key]
	if !ok || a.CheckedIn {
		return sql.ErrNoRows
	}
	delete(r.s.attendees, key)
	return nil
}

func (r *AttendeeRepository) Get(_ context.Context, eventID, userID string) (*models.EventAttendee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attendees[attendeeKey{eventID: eventID, userID: userID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a = r.s.withProfileLocked(a)
	return &a, nil
}

func (s *Store) withProfileLocked(a models.EventAttendee) models.EventAttendee {
	if p, ok := s.profiles[a.UserID]; ok {
		a.Name = p.Name
		a.Email = p.Email
	}
	return a
}

func (r *AttendeeRepository) listLocked(eventID string) []models.EventAttendee {
	items := make([]models.EventAttendee, 0)
	for k, a := range r.s.attendees {
		if k.eventID == eventID {
			items = append(items, r.s.withProfileLocked(a))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].RegisteredAt.Equal(items[j].RegisteredAt) {
			return items[i].UserID < items[j].UserID
		}
		return items[i].RegisteredAt.Before(items[j].RegisteredAt)
	})
	return items
}

func (r *AttendeeRepository) ListByEvent(_ context.Context, eventID string) ([]models.EventAttendee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.listLocked(eventID), nil
}

func (r *AttendeeRepository) ListUserIDs(_ context.Context, eventID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := r.listLocked(eventID)
	ids := make([]string, len(items))
	for i, a := range items {
		ids[i] = a.UserID
	}
	return ids, nil
}

func (r *AttendeeRepository) MarkCheckedIn(_ context.Context, eventID, userID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := attendeeKey{eventID: eventID, userID: userID}
	a, ok := r.s.attendees[key]
	if !ok {
		return false, sql.ErrNoRows
	}
	if a.CheckedIn {
		return false, nil
	}
	a.CheckedIn = true
	a.CheckedInAt = timePtr(at)
	r.s.attendees[key] = a
	return true, nil
}
