package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confhub-api/internal/models"
)

var eventCols = []string{"id", "title", "description", "date", "time", "venue", "capacity", "status", "speakers", "created_by", "created_at", "updated_at"}

func TestEventRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{Title: "Keynote", Venue: "Hall A", Capacity: 100, Speakers: pq.StringArray{"Ada"}}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, models.EventStatusUpcoming, event.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("e1", "Keynote", "", "2026-03-01", "09:00", "Hall A", 100, "upcoming", "{Ada,Grace}", nil, now, now))

	event, err := repo.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Grace"}, []string(event.Speakers))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	status := models.EventStatusOngoing
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE 1=1 AND status = $1 ORDER BY date ASC, time ASC LIMIT 20 OFFSET 0")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow("e2", "Panel", "", "2026-03-01", "10:00", "Hall B", 50, "ongoing", "{}", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM events")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	events, total, err := repo.List(context.Background(), models.EventFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "nope", models.EventStatusCompleted, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEventRepositoryCountDependents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery("FROM mic_requests WHERE event_id").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"mic_requests", "complaints", "registrations"}).AddRow(2, 0, 1))

	deps, err := repo.CountDependents(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, deps.MicRequests)
	assert.True(t, deps.Any())
}

func TestEventRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1")).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "e1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1")).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "e1"), sql.ErrNoRows)
}
