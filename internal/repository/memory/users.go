package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository"
)

// UserRepository is the in-memory profile store.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.profiles {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (r *UserRepository) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]models.User, 0, len(r.s.profiles))
	for _, u := range r.s.profiles {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Search != "" && !containsFold(u.Email, filter.Search) && !containsFold(u.Name, filter.Search) {
			continue
		}
		items = append(items, u)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return paginate(items, filter.Page, filter.PageSize, 100), len(items), nil
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.profiles {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.s.profiles[user.ID] = *user
	return nil
}

func (r *UserRepository) UpdateRole(_ context.Context, id string, role models.UserRole, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.profiles[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	u.UpdatedAt = at
	r.s.profiles[id] = u
	return nil
}

func (r *UserRepository) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.s.now()
	}
	r.s.audit = append(r.s.audit, *log)
	return nil
}
