package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository"
)

// RequestRepository is the in-memory mic request and complaint store.
type RequestRepository struct {
	s *Store
}

func stamp(id *string, status *models.RequestStatus, createdAt, updatedAt *time.Time, now time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if *status == "" {
		*status = models.RequestStatusPending
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = *createdAt
}

// CreateMicRequest enforces the active uniqueness rule under the store lock, like the partial unique index.
func (r *RequestRepository) CreateMicRequest(_ context.Context, req *models.MicRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.hasActiveLocked(models.RequestKindMic, req.UserID, req.EventID) {
		return repository.ErrDuplicateActive
	}
	stamp(&req.ID, &req.Status, &req.CreatedAt, &req.UpdatedAt, r.s.now())
	r.s.micRequests[req.ID] = *req
	return nil
}

func (r *RequestRepository) CreateComplaint(_ context.Context, c *models.Complaint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.hasActiveLocked(models.RequestKindComplaint, c.UserID, c.EventID) {
		return repository.ErrDuplicateActive
	}
	stamp(&c.ID, &c.Status, &c.CreatedAt, &c.UpdatedAt, r.s.now())
	r.s.complaints[c.ID] = *c
	return nil
}

func (r *RequestRepository) GetMicRequest(_ context.Context, id string) (*models.MicRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.micRequests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (r *RequestRepository) GetComplaint(_ context.Context, id string) (*models.Complaint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func matchesRequest(filter models.RequestFilter, userID, eventID string, status models.RequestStatus) bool {
	if filter.UserID != "" && filter.UserID != userID {
		return false
	}
	if filter.EventID != "" && filter.EventID != eventID {
		return false
	}
	if len(filter.Status) == 0 {
		return true
	}
	for _, s := range filter.Status {
		if s == status {
			return true
		}
	}
	return false
}

func (r *RequestRepository) ListMicRequests(_ context.Context, filter models.RequestFilter) ([]models.MicRequest, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]models.MicRequest, 0)
	for _, m := range r.s.micRequests {
		if matchesRequest(filter, m.UserID, m.EventID, m.Status) {
			items = append(items, m)
		}
	}
	sortNewestFirst(items, func(m models.MicRequest) time.Time { return m.CreatedAt }, func(m models.MicRequest) string { return m.ID })
	return paginate(items, filter.Page, filter.PageSize, 500), len(items), nil
}

func (r *RequestRepository) ListComplaints(_ context.Context, filter models.RequestFilter) ([]models.Complaint, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]models.Complaint, 0)
	for _, c := range r.s.complaints {
		if matchesRequest(filter, c.UserID, c.EventID, c.Status) {
			items = append(items, c)
		}
	}
	sortNewestFirst(items, func(c models.Complaint) time.Time { return c.CreatedAt }, func(c models.Complaint) string { return c.ID })
	return paginate(items, filter.Page, filter.PageSize, 500), len(items), nil
}

func (r *RequestRepository) HasActive(_ context.Context, kind models.RequestKind, userID, eventID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.hasActiveLocked(kind, userID, eventID), nil
}

func (s *Store) hasActiveLocked(kind models.RequestKind, userID, eventID string) bool {
	if kind == models.RequestKindComplaint {
		for _, c := range s.complaints {
			if c.UserID == userID && c.EventID == eventID && c.Status.Active() {
				return true
			}
		}
		return false
	}
	for _, m := range s.micRequests {
		if m.UserID == userID && m.EventID == eventID && m.Status.Active() {
			return true
		}
	}
	return false
}

func (r *RequestRepository) GetRef(_ context.Context, kind models.RequestKind, id string) (*models.RequestRef, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	switch kind {
	case models.RequestKindMic:
		if m, ok := r.s.micRequests[id]; ok {
			return &models.RequestRef{ID: m.ID, Kind: kind, EventID: m.EventID, UserID: m.UserID, Status: m.Status}, nil
		}
	case models.RequestKindComplaint:
		if c, ok := r.s.complaints[id]; ok {
			return &models.RequestRef{ID: c.ID, Kind: kind, EventID: c.EventID, UserID: c.UserID, Status: c.Status}, nil
		}
	}
	return nil, sql.ErrNoRows
}

// ApplyTransition performs the compare-and-set and the notification outbox write under one lock.
func (r *RequestRepository) ApplyTransition(_ context.Context, t models.Transition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	switch t.Kind {
	case models.RequestKindMic:
		m, ok := r.s.micRequests[t.RequestID]
		if !ok || m.Status != models.RequestStatusPending {
			return repository.ErrStatusConflict
		}
		m.Status, m.ReviewedBy, m.ReviewedAt, m.UpdatedAt = t.To, strPtr(t.ActorID), timePtr(t.At), t.At
		r.s.micRequests[m.ID] = m
	case models.RequestKindComplaint:
		c, ok := r.s.complaints[t.RequestID]
		if !ok || c.Status != models.RequestStatusPending {
			return repository.ErrStatusConflict
		}
		c.Status, c.ReviewedBy, c.ReviewedAt, c.UpdatedAt = t.To, strPtr(t.ActorID), timePtr(t.At), t.At
		r.s.complaints[c.ID] = c
	default:
		return fmt.Errorf("unknown request kind %q", t.Kind)
	}

	r.s.notifications[t.Notification.ID] = t.Notification
	r.s.deliveries[t.Delivery.ID] = t.Delivery
	return nil
}
