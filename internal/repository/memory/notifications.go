package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/confhub-api/internal/models"
)

// NotificationRepository is the in-memory notification and outbox store.
type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) CreateBatch(_ context.Context, notifications []models.Notification, deliveries []models.NotificationDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range notifications {
		r.s.notifications[n.ID] = n
	}
	for _, d := range deliveries {
		r.s.deliveries[d.ID] = d
	}
	return nil
}

func (r *NotificationRepository) GetByID(_ context.Context, id string) (*models.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &n, nil
}

func (r *NotificationRepository) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]models.Notification, 0)
	for _, n := range r.s.notifications {
		if n.UserID != filter.UserID || (filter.UnreadOnly && n.Read) {
			continue
		}
		items = append(items, n)
	}
	sortNewestFirst(items, func(n models.Notification) time.Time { return n.CreatedAt }, func(n models.Notification) string { return n.ID })

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []models.Notification{}, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

func (r *NotificationRepository) MarkAsRead(_ context.Context, userID, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID {
		return false, sql.ErrNoRows
	}
	if n.Read {
		return false, nil
	}
	n.Read = true
	n.ReadAt = timePtr(at)
	r.s.notifications[id] = n
	return true, nil
}

func (r *NotificationRepository) MarkAllAsRead(_ context.Context, userID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var changed int64
	for id, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = timePtr(at)
			r.s.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) ClaimDue(_ context.Context, now time.Time, lease time.Duration, limit int) ([]models.PendingDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	due := make([]models.NotificationDelivery, 0)
	for _, d := range r.s.deliveries {
		if d.Status != models.DeliveryStatusPending || d.NextAttemptAt.After(now) {
			continue
		}
		if d.ClaimedUntil != nil && !d.ClaimedUntil.Before(now) {
			continue
		}
		due = append(due, d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]models.PendingDelivery, 0, len(due))
	until := now.Add(lease)
	for _, d := range due {
		d.ClaimedUntil = timePtr(until)
		d.UpdatedAt = now
		r.s.deliveries[d.ID] = d
		claimed = append(claimed, models.PendingDelivery{Delivery: d, Notification: r.s.notifications[d.NotificationID]})
	}
	return claimed, nil
}

func (r *NotificationRepository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return fmt.Errorf("mark delivery delivered: %w", sql.ErrNoRows)
	}
	d.Status = models.DeliveryStatusDelivered
	d.Attempts++
	d.DeliveredAt = timePtr(at)
	d.ClaimedUntil = nil
	d.LastError = nil
	d.UpdatedAt = at
	r.s.deliveries[id] = d
	return nil
}

func (r *NotificationRepository) MarkRetry(_ context.Context, id string, attempts int, next time.Time, lastErr string, final bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return fmt.Errorf("mark delivery retry: %w", sql.ErrNoRows)
	}
	d.Attempts = attempts
	d.NextAttemptAt = next
	d.LastError = strPtr(lastErr)
	d.ClaimedUntil = nil
	d.UpdatedAt = r.s.now()
	if final {
		d.Status = models.DeliveryStatusFailed
	}
	r.s.deliveries[id] = d
	return nil
}

// Deliveries returns a snapshot of the outbox.
func (r *NotificationRepository) Deliveries() []models.NotificationDelivery {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.NotificationDelivery, 0, len(r.s.deliveries))
	for _, d := range r.s.deliveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
