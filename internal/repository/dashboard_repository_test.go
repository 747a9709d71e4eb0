package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confhub-api/internal/models"
)

func TestDashboardRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery("FROM events GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("upcoming", 3).AddRow("completed", 1))
	mock.ExpectQuery("FROM complaints GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 2))
	mock.ExpectQuery("FROM event_attendees").
		WillReturnRows(sqlmock.NewRows([]string{"total", "checked_in"}).AddRow(10, 4))

	events, err := repo.CountEventsByStatus(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)

	complaints, err := repo.CountRequestsByStatus(context.Background(), models.RequestKindComplaint)
	require.NoError(t, err)
	assert.Equal(t, 2, complaints[0].Count)

	total, checkedIn, err := repo.CountRegistrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Equal(t, 4, checkedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepositoryLeaderboardRanks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery("ORDER BY check_ins DESC").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "check_ins", "approved_mic_requests"}).
			AddRow("u1", "Ada", 3, 1).
			AddRow("u2", "Grace", 2, 4))

	entries, err := repo.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
}
