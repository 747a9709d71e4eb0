package models

import (
	"time"

	"github.com/lib/pq"
)

// EventStatus captures the lifecycle of a conference event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusUpcoming, EventStatusOngoing, EventStatusCompleted:
		return true
	}
	return false
}

const (
	EventDateLayout = "2006-01-02"
	EventTimeLayout = "15:04"
)

// Event is a scheduled conference session.
type Event struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Date        string         `db:"date" json:"date"`
	Time        string         `db:"time" json:"time"`
	Venue       string         `db:"venue" json:"venue"`
	Capacity    int            `db:"capacity" json:"capacity"`
	Status      EventStatus    `db:"status" json:"status"`
	Speakers    pq.StringArray `db:"speakers" json:"speakers"`
	CreatedBy   *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// EventFilter constrains event listings.
type EventFilter struct {
	Status   *EventStatus
	Search   string
	Page     int
	PageSize int
}

// EventDependents counts rows referencing an event.
type EventDependents struct {
	MicRequests   int `db:"mic_requests"`
	Complaints    int `db:"complaints"`
	Registrations int `db:"registrations"`
}

// Any reports whether at least one dependent row exists.
func (d EventDependents) Any() bool {
	return d.MicRequests > 0 || d.Complaints > 0 || d.Registrations > 0
}
