package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confhub-api/internal/models"
)

const feedbackSelect = `SELECT f.id, f.user_id, f.event_id, f.rating, f.comment, f.created_at,
	p.name AS user_name, e.title AS event_title
	FROM feedbacks f
	JOIN profiles p ON p.id = f.user_id
	LEFT JOIN events e ON e.id = f.event_id`

// FeedbackRepository persists star ratings.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create inserts a feedback row.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO feedbacks (id, user_id, event_id, rating, comment, created_at)
	VALUES (:id, :user_id, :event_id, :rating, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// List returns feedback newest first with author and event names, together with the total count.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	where, args := feedbackConditions(filter)
	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize, 100)
	listQuery := fmt.Sprintf("%s%s ORDER BY f.created_at DESC, f.id DESC LIMIT %d OFFSET %d", feedbackSelect, where, pageSize, offset)

	var items []models.Feedback
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	countQuery := `SELECT COUNT(*) FROM feedbacks f
	JOIN profiles p ON p.id = f.user_id
	LEFT JOIN events e ON e.id = f.event_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}
	return items, total, nil
}

// RatingCounts returns how many ratings each star level received, optionally for one event.
func (r *FeedbackRepository) RatingCounts(ctx context.Context, eventID string) ([]models.RatingCount, error) {
	query := `SELECT rating, COUNT(*) AS count FROM feedbacks`
	args := make([]interface{}, 0, 1)
	if eventID != "" {
		args = append(args, eventID)
		query += ` WHERE event_id = $1`
	}
	query += ` GROUP BY rating ORDER BY rating DESC`
	var counts []models.RatingCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}
	return counts, nil
}

func feedbackConditions(filter models.FeedbackFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("f.event_id = $%d", len(args)))
	}
	if filter.Rating > 0 {
		args = append(args, filter.Rating)
		conditions = append(conditions, fmt.Sprintf("f.rating = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(p.name) LIKE $%d OR LOWER(COALESCE(e.title, '')) LIKE $%d OR LOWER(f.comment) LIKE $%d)", n, n, n))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
