package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confhub-api/internal/models"
)

// AttendeeRepository persists event registrations and check-ins.
type AttendeeRepository struct {
	db *sqlx.DB
}

// NewAttendeeRepository constructs the repository.
func NewAttendeeRepository(db *sqlx.DB) *AttendeeRepository {
	return &AttendeeRepository{db: db}
}

// Register inserts a registration while the event has free capacity.
func (r *AttendeeRepository) Register(ctx context.Context, eventID, userID string, capacity int, at time.Time) error {
	const query = `INSERT INTO event_attendees (event_id, user_id, checked_in, registered_at)
	SELECT $1, $2, FALSE, $3
	WHERE (SELECT COUNT(*) FROM event_attendees WHERE event_id = $1) < $4`
	result, err := r.db.ExecContext(ctx, query, eventID, userID, at, capacity)
	if err != nil {
		if isUniqueViolation(err, constraintAttendeePK) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("register attendee: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check register rows: %w", err)
	}
	if rows == 0 {
		return ErrEventFull
	}
	return nil
}

// Cancel removes a registration that has not been checked in.
func (r *AttendeeRepository) Cancel(ctx context.Context, eventID, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2 AND checked_in = FALSE`, eventID, userID)
	if err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Get returns a single registration.
func (r *AttendeeRepository) Get(ctx context.Context, eventID, userID string) (*models.EventAttendee, error) {
	const query = `SELECT a.event_id, a.user_id, a.checked_in, a.checked_in_at, a.registered_at, p.name, p.email
	FROM event_attendees a JOIN profiles p ON p.id = a.user_id
	WHERE a.event_id = $1 AND a.user_id = $2`
	var attendee models.EventAttendee
	if err := r.db.GetContext(ctx, &attendee, query, eventID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &attendee, nil
}

// ListByEvent returns registrations for the event ordered by registration time.
func (r *AttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]models.EventAttendee, error) {
	const query = `SELECT a.event_id, a.user_id, a.checked_in, a.checked_in_at, a.registered_at, p.name, p.email
	FROM event_attendees a JOIN profiles p ON p.id = a.user_id
	WHERE a.event_id = $1 ORDER BY a.registered_at ASC`
	var items []models.EventAttendee
	if err := r.db.SelectContext(ctx, &items, query, eventID); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return items, nil
}

// ListUserIDs returns the ids of everyone registered for the event.
func (r *AttendeeRepository) ListUserIDs(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM event_attendees WHERE event_id = $1 ORDER BY registered_at ASC`, eventID); err != nil {
		return nil, fmt.Errorf("list attendee ids: %w", err)
	}
	return ids, nil
}

// MarkCheckedIn flags a registration as checked in. It reports whether the row changed.
func (r *AttendeeRepository) MarkCheckedIn(ctx context.Context, eventID, userID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE event_attendees SET checked_in = TRUE, checked_in_at = $3
	WHERE event_id = $1 AND user_id = $2 AND checked_in = FALSE`, eventID, userID, at)
	if err != nil {
		return false, fmt.Errorf("mark checked in: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check checked in rows: %w", err)
	}
	return rows > 0, nil
}
