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

const notificationColumns = `id, user_id, sender_id, title, message, type, read, reference_id, created_at, read_at`

// NotificationRepository persists notifications and their delivery outbox.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts notifications together with their outbox rows atomically.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification, deliveries []models.NotificationDelivery) (err error) {
	if len(notifications) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertNotifications(ctx, tx, notifications, deliveries); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit notification batch: %w", err)
	}
	return nil
}

func insertNotifications(ctx context.Context, tx *sqlx.Tx, notifications []models.Notification, deliveries []models.NotificationDelivery) error {
	const insertNotification = `INSERT INTO notifications (` + notificationColumns + `)
	VALUES (:id, :user_id, :sender_id, :title, :message, :type, :read, :reference_id, :created_at, :read_at)`
	const insertDelivery = `INSERT INTO notification_deliveries
	(id, notification_id, user_id, status, attempts, next_attempt_at, claimed_until, last_error, delivered_at, created_at, updated_at)
	VALUES (:id, :notification_id, :user_id, :status, :attempts, :next_attempt_at, :claimed_until, :last_error, :delivered_at, :created_at, :updated_at)`

	for i := range notifications {
		if _, err := tx.NamedExecContext(ctx, insertNotification, &notifications[i]); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	for i := range deliveries {
		if _, err := tx.NamedExecContext(ctx, insertDelivery, &deliveries[i]); err != nil {
			return fmt.Errorf("insert notification delivery: %w", err)
		}
	}
	return nil
}

// List returns a user's notifications newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if filter.UnreadOnly {
		query += ` AND read = FALSE`
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.UserID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkAsRead flips the read flag of one of the user's notifications. It reports whether the
// row changed; an already read notification is not an error. A notification that does not
// belong to the user yields sql.ErrNoRows.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE, read_at = $3 WHERE id = $1 AND user_id = $2 AND read = FALSE`, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check notification read rows: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`, id, userID); err != nil {
		return false, fmt.Errorf("check notification owner: %w", err)
	}
	if !exists {
		return false, sql.ErrNoRows
	}
	return false, nil
}

// MarkAllAsRead marks every unread notification of the user as read.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND read = FALSE`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check mark all rows: %w", err)
	}
	return rows, nil
}

// CountUnread derives the unread count from stored rows.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

type pendingDeliveryRow struct {
	models.NotificationDelivery
	NID          string                  `db:"n_id"`
	NSenderID    *string                 `db:"n_sender_id"`
	NTitle       string                  `db:"n_title"`
	NMessage     string                  `db:"n_message"`
	NType        models.NotificationType `db:"n_type"`
	NRead        bool                    `db:"n_read"`
	NReferenceID *string                 `db:"n_reference_id"`
	NCreatedAt   time.Time               `db:"n_created_at"`
}

// ClaimDue leases up to limit due deliveries so concurrent pollers skip them until the lease expires.
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.PendingDelivery, error) {
	const query = `WITH due AS (
		SELECT id FROM notification_deliveries
		WHERE status = 'pending' AND next_attempt_at <= $1 AND (claimed_until IS NULL OR claimed_until < $1)
		ORDER BY next_attempt_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	UPDATE notification_deliveries d SET claimed_until = $2, updated_at = $1
	FROM due, notifications n
	WHERE d.id = due.id AND n.id = d.notification_id
	RETURNING d.id, d.notification_id, d.user_id, d.status, d.attempts, d.next_attempt_at, d.claimed_until,
		d.last_error, d.delivered_at, d.created_at, d.updated_at,
		n.id AS n_id, n.sender_id AS n_sender_id, n.title AS n_title, n.message AS n_message, n.type AS n_type,
		n.read AS n_read, n.reference_id AS n_reference_id, n.created_at AS n_created_at`

	var rows []pendingDeliveryRow
	if err := r.db.SelectContext(ctx, &rows, query, now, now.Add(lease), limit); err != nil {
		return nil, fmt.Errorf("claim due deliveries: %w", err)
	}

	claimed := make([]models.PendingDelivery, 0, len(rows))
	for _, row := range rows {
		claimed = append(claimed, models.PendingDelivery{
			Delivery: row.NotificationDelivery,
			Notification: models.Notification{
				ID:          row.NID,
				UserID:      row.UserID,
				SenderID:    row.NSenderID,
				Title:       row.NTitle,
				Message:     row.NMessage,
				Type:        row.NType,
				Read:        row.NRead,
				ReferenceID: row.NReferenceID,
				CreatedAt:   row.NCreatedAt,
			},
		})
	}
	return claimed, nil
}

// MarkDelivered records a successful publish.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notification_deliveries SET status = 'delivered', attempts = attempts + 1, delivered_at = $2,
	claimed_until = NULL, last_error = NULL, updated_at = $2 WHERE id = $1`
	return execDelivery(ctx, r.db, "mark delivery delivered", query, id, at)
}

// MarkRetry records a failed attempt. When final is set the row becomes failed and is never retried.
func (r *NotificationRepository) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, final bool) error {
	status := models.DeliveryStatusPending
	if final {
		status = models.DeliveryStatusFailed
	}
	const query = `UPDATE notification_deliveries SET status = $2, attempts = $3, next_attempt_at = $4, last_error = $5,
	claimed_until = NULL, updated_at = NOW() WHERE id = $1`
	return execDelivery(ctx, r.db, "mark delivery retry", query, id, status, attempts, next, lastErr)
}

func execDelivery(ctx context.Context, db *sqlx.DB, op, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}

// GetByID fetches a single notification.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}
