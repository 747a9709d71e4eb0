package models

import "time"

// EventAttendee is a registration of a user for an event.
type EventAttendee struct {
	EventID      string     `db:"event_id" json:"event_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	CheckedIn    bool       `db:"checked_in" json:"checked_in"`
	CheckedInAt  *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
	Name         string     `db:"name" json:"name,omitempty"`
	Email        string     `db:"email" json:"email,omitempty"`
}
