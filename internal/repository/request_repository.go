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

const (
	micRequestColumns = `id, event_id, user_id, reason, status, reviewed_by, reviewed_at, created_at, updated_at`
	complaintColumns  = `id, event_id, user_id, issue_type, description, status, reviewed_by, reviewed_at, created_at, updated_at`
)

// RequestRepository persists mic requests and complaints and applies status transitions.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreateMicRequest inserts a pending mic request. The partial unique index on active
// requests turns a lost submission race into ErrDuplicateActive.
func (r *RequestRepository) CreateMicRequest(ctx context.Context, req *models.MicRequest) error {
	stampRequest(&req.ID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	const query = `INSERT INTO mic_requests (` + micRequestColumns + `)
	VALUES (:id, :event_id, :user_id, :reason, :status, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err, constraintMicActive) {
			return ErrDuplicateActive
		}
		return fmt.Errorf("create mic request: %w", err)
	}
	return nil
}

// CreateComplaint inserts a pending complaint.
func (r *RequestRepository) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	stampRequest(&complaint.ID, &complaint.Status, &complaint.CreatedAt, &complaint.UpdatedAt)
	const query = `INSERT INTO complaints (` + complaintColumns + `)
	VALUES (:id, :event_id, :user_id, :issue_type, :description, :status, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		if isUniqueViolation(err, constraintComplaintActive) {
			return ErrDuplicateActive
		}
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

func stampRequest(id *string, status *models.RequestStatus, createdAt, updatedAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if *status == "" {
		*status = models.RequestStatusPending
	}
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = *createdAt
}

// GetMicRequest fetches a mic request by identifier.
func (r *RequestRepository) GetMicRequest(ctx context.Context, id string) (*models.MicRequest, error) {
	var req models.MicRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+micRequestColumns+` FROM mic_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get mic request: %w", err)
	}
	return &req, nil
}

// GetComplaint fetches a complaint by identifier.
func (r *RequestRepository) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return &complaint, nil
}

// ListMicRequests returns mic requests newest first with the total count.
func (r *RequestRepository) ListMicRequests(ctx context.Context, filter models.RequestFilter) ([]models.MicRequest, int, error) {
	listQuery, countQuery, args := buildRequestQueries(models.RequestKindMic, micRequestColumns, filter)
	var items []models.MicRequest
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list mic requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count mic requests: %w", err)
	}
	return items, total, nil
}

// ListComplaints returns complaints newest first with the total count.
func (r *RequestRepository) ListComplaints(ctx context.Context, filter models.RequestFilter) ([]models.Complaint, int, error) {
	listQuery, countQuery, args := buildRequestQueries(models.RequestKindComplaint, complaintColumns, filter)
	var items []models.Complaint
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}
	return items, total, nil
}

func buildRequestQueries(kind models.RequestKind, columns string, filter models.RequestFilter) (string, string, []interface{}) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 3)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	base := " FROM " + kind.Table()
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize, 500)
	list := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", columns, base, pageSize, offset)
	return list, "SELECT COUNT(*)" + base, args
}

// HasActive reports whether the user already holds a pending or approved request for the event.
func (r *RequestRepository) HasActive(ctx context.Context, kind models.RequestKind, userID, eventID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1 AND event_id = $2 AND status IN ($3, $4))`, kind.Table())
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, eventID, models.RequestStatusPending, models.RequestStatusApproved); err != nil {
		return false, fmt.Errorf("check active %s: %w", kind, err)
	}
	return exists, nil
}

// GetRef loads the kind-agnostic projection of a request.
func (r *RequestRepository) GetRef(ctx context.Context, kind models.RequestKind, id string) (*models.RequestRef, error) {
	query := fmt.Sprintf(`SELECT id, event_id, user_id, status FROM %s WHERE id = $1`, kind.Table())
	var ref models.RequestRef
	if err := r.db.GetContext(ctx, &ref, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get %s ref: %w", kind, err)
	}
	ref.Kind = kind
	return &ref, nil
}

// ApplyTransition moves a pending request to its terminal status and writes the notification
// plus its delivery outbox row in the same transaction. A request that is no longer pending
// yields ErrStatusConflict and nothing is written.
func (r *RequestRepository) ApplyTransition(ctx context.Context, t models.Transition) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	update := fmt.Sprintf(`UPDATE %s SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $3 WHERE id = $4 AND status = $5`, t.Kind.Table())
	result, err := tx.ExecContext(ctx, update, t.To, t.ActorID, t.At, t.RequestID, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("update %s status: %w", t.Kind, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s update rows: %w", t.Kind, err)
	}
	if rows == 0 {
		return ErrStatusConflict
	}

	if err = insertNotifications(ctx, tx, []models.Notification{t.Notification}, []models.NotificationDelivery{t.Delivery}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}
