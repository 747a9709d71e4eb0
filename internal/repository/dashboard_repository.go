package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confhub-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountEventsByStatus groups events by status.
func (r *DashboardRepository) CountEventsByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM events GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count events by status: %w", err)
	}
	return rows, nil
}

// CountRequestsByStatus groups mic requests or complaints by status.
func (r *DashboardRepository) CountRequestsByStatus(ctx context.Context, kind models.RequestKind) ([]models.StatusCount, error) {
	var rows []models.StatusCount
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count FROM %s GROUP BY status`, kind.Table())
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count %s by status: %w", kind, err)
	}
	return rows, nil
}

// CountRegistrations returns total registrations and how many checked in.
func (r *DashboardRepository) CountRegistrations(ctx context.Context) (int, int, error) {
	var counts struct {
		Total     int `db:"total"`
		CheckedIn int `db:"checked_in"`
	}
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE checked_in) AS checked_in FROM event_attendees`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return 0, 0, fmt.Errorf("count registrations: %w", err)
	}
	return counts.Total, counts.CheckedIn, nil
}

// Leaderboard ranks attendees by check-ins, then approved mic requests.
func (r *DashboardRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	const query = `SELECT p.id AS user_id, p.name,
		(SELECT COUNT(*) FROM event_attendees a WHERE a.user_id = p.id AND a.checked_in) AS check_ins,
		(SELECT COUNT(*) FROM mic_requests m WHERE m.user_id = p.id AND m.status = 'approved') AS approved_mic_requests
	FROM profiles p
	WHERE p.role = 'attendee'
	ORDER BY check_ins DESC, approved_mic_requests DESC, p.name ASC
	LIMIT $1`
	var entries []models.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
