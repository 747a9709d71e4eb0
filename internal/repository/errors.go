package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors shared by the SQL and in-memory stores. Services translate them into typed API errors.
var (
	ErrStatusConflict    = errors.New("request is no longer pending")
	ErrDuplicateActive   = errors.New("active request already exists for user and event")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrAlreadyRegistered = errors.New("user already registered for event")
	ErrEventFull         = errors.New("event capacity reached")
)

const uniqueViolation = "23505"

// Constraint names from db/migrations.
const (
	constraintMicActive       = "mic_requests_active_uniq"
	constraintComplaintActive = "complaints_active_uniq"
	constraintProfileEmail    = "profiles_email_key"
	constraintAttendeePK      = "event_attendees_pkey"
)

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func pageBounds(page, pageSize, maxSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxSize {
		pageSize = 20
	}
	return page, pageSize, (page - 1) * pageSize
}
