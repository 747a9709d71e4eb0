package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confhub-api/internal/models"
)

const eventColumns = `id, title, description, date, time, venue, capacity, status, speakers, created_by, created_at, updated_at`

// EventRepository persists conference events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.EventStatusUpcoming
	}
	const query = `INSERT INTO events (` + eventColumns + `)
	VALUES (:id, :title, :description, :date, :time, :venue, :capacity, :status, :speakers, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// List returns events ordered by schedule together with the total count.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	base := ` FROM events WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(venue) LIKE $%d)", len(args), len(args))
	}

	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize, 100)
	listQuery := fmt.Sprintf("SELECT %s%s ORDER BY date ASC, time ASC LIMIT %d OFFSET %d", eventColumns, base, pageSize, offset)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// Update persists the editable event fields.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, date = :date, time = :time,
	venue = :venue, capacity = :capacity, status = :status, speakers = :speakers, updated_at = :updated_at WHERE id = :id`
	return r.execOne(ctx, "update event", query, event)
}

// UpdateStatus changes only the event status.
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status models.EventStatus, at time.Time) error {
	return r.execOne(ctx, "update event status", `UPDATE events SET status = :status, updated_at = :updated_at WHERE id = :id`,
		map[string]interface{}{"id": id, "status": status, "updated_at": at})
}

// CountDependents counts rows that reference the event.
func (r *EventRepository) CountDependents(ctx context.Context, id string) (models.EventDependents, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM mic_requests WHERE event_id = $1) AS mic_requests,
	(SELECT COUNT(*) FROM complaints WHERE event_id = $1) AS complaints,
	(SELECT COUNT(*) FROM event_attendees WHERE event_id = $1) AS registrations`
	var deps models.EventDependents
	if err := r.db.GetContext(ctx, &deps, query, id); err != nil {
		return deps, fmt.Errorf("count event dependents: %w", err)
	}
	return deps, nil
}

// Delete removes an event. Foreign keys reject the delete while dependents exist.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *EventRepository) execOne(ctx context.Context, op, query string, arg interface{}) error {
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
