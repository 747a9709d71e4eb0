package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/confhub-api/internal/models"
)

// EventRepository is the in-memory event store.
type EventRepository struct {
	s *Store
}

func (r *EventRepository) Create(_ context.Context, event *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := r.s.now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.EventStatusUpcoming
	}
	r.s.events[event.ID] = *event
	return nil
}

func (r *EventRepository) GetByID(_ context.Context, id string) (*models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (r *EventRepository) List(_ context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]models.Event, 0, len(r.s.events))
	for _, e := range r.s.events {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !containsFold(e.Title, filter.Search) && !containsFold(e.Venue, filter.Search) {
			continue
		}
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].Time < items[j].Time
	})
	return paginate(items, filter.Page, filter.PageSize, 100), len(items), nil
}

func (r *EventRepository) Update(_ context.Context, event *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.events[event.ID]
	if !ok {
		return sql.ErrNoRows
	}
	event.CreatedAt = current.CreatedAt
	event.CreatedBy = current.CreatedBy
	event.UpdatedAt = r.s.now()
	r.s.events[event.ID] = *event
	return nil
}

func (r *EventRepository) UpdateStatus(_ context.Context, id string, status models.EventStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.UpdatedAt = at
	r.s.events[id] = e
	return nil
}

func (r *EventRepository) CountDependents(_ context.Context, id string) (models.EventDependents, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.dependentsLocked(id), nil
}

func (s *Store) dependentsLocked(id string) models.EventDependents {
	var deps models.EventDependents
	for _, m := range s.micRequests {
		if m.EventID == id {
			deps.MicRequests++
		}
	}
	for _, c := range s.complaints {
		if c.EventID == id {
			deps.Complaints++
		}
	}
	for k := range s.attendees {
		if k.eventID == id {
			deps.Registrations++
		}
	}
	return deps
}

// Delete mirrors the foreign key behaviour of the SQL schema: referenced events cannot be removed.
func (r *EventRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[id]; !ok {
		return sql.ErrNoRows
	}
	if r.s.dependentsLocked(id).Any() {
		return errEventReferenced
	}
	delete(r.s.events, id)
	for fid, fb := range r.s.feedbacks {
		if fb.EventID != nil && *fb.EventID == id {
			fb.EventID = nil
			r.s.feedbacks[fid] = fb
		}
	}
	return nil
}
