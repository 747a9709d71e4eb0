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

const profileColumns = `id, email, password_hash, name, role, created_at, updated_at`

// UserRepository persists profiles and appends to the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches case-insensitively, mirroring the profiles_email_key index.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getProfile(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.getProfile(ctx, "id = $1", id)
}

// getProfile returns sql.ErrNoRows unwrapped so services can map it to NOT_FOUND.
func (r *UserRepository) getProfile(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+profileColumns+` FROM profiles WHERE `+where+` LIMIT 1`, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("get profile (%s): %w", where, err)
	}
	return &user, nil
}

// List pages through profiles, newest first, returning the unpaged total alongside.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Role != nil {
		args = append(args, *filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", n, n))
	}
	from := " FROM profiles WHERE 1=1"
	for _, cond := range where {
		from += " AND " + cond
	}

	_, limit, offset := pageBounds(filter.Page, filter.PageSize, 100)
	users := []models.User{}
	query := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d", profileColumns, from, limit, offset)
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}
	return users, total, nil
}

// Create stores a new profile with a lower-cased email. A taken email yields ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, `INSERT INTO profiles (`+profileColumns+`)
	VALUES (:id, :email, :password_hash, :name, :role, :created_at, :updated_at)`, user)
	if isUniqueViolation(err, constraintProfileEmail) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpdateRole returns sql.ErrNoRows when id matches no profile.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`, id, role, at)
	if err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("update profile role: %w", err)
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog appends one audit entry; old and new values are stored as JSONB.
func (r *UserRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO audit_logs
	(id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
	VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`, entry)
	if err != nil {
		return fmt.Errorf("create audit log %s: %w", entry.Action, err)
	}
	return nil
}
