package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository/memory"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

type stubCacheRepo struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.store, k)
	}
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range s.store {
		if strings.HasPrefix(k, prefix) {
			delete(s.store, k)
		}
	}
	return nil
}

func (s *stubCacheRepo) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.store[key]
	return ok
}

// fixture is a memory store with two staff members, two attendees and three events.
type fixture struct {
	store     *memory.Store
	cacheRepo *stubCacheRepo
	cache     *CacheService
	validate  *validator.Validate

	admin     models.Session
	organizer models.Session
	alice     models.Session
	bob       models.Session

	keynote models.Event
	panel   models.Event
	past    models.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), cacheRepo: &stubCacheRepo{}, validate: validator.New()}
	f.cache = NewCacheService(f.cacheRepo, nil, time.Minute, zap.NewNop(), true)

	session := func(email, name string, role models.UserRole) models.Session {
		u := &models.User{Email: email, Name: name, Role: role, PasswordHash: "x"}
		require.NoError(t, f.store.Users().Create(ctx, u))
		return models.Session{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
	}
	f.admin = session("admin@example.com", "Ada", models.RoleAdmin)
	f.organizer = session("org@example.com", "Otto", models.RoleOrganizer)
	f.alice = session("alice@example.com", "Alice", models.RoleAttendee)
	f.bob = session("bob@example.com", "Bob", models.RoleAttendee)

	event := func(title string, status models.EventStatus, capacity int) models.Event {
		e := &models.Event{Title: title, Date: "2026-10-16", Time: "09:00", Venue: "Hall", Capacity: capacity, Status: status}
		require.NoError(t, f.store.Events().Create(ctx, e))
		return *e
	}
	f.keynote = event("Opening Keynote", models.EventStatusOngoing, 100)
	f.panel = event("Cloud Panel", models.EventStatusUpcoming, 1)
	f.past = event("Reception", models.EventStatusCompleted, 50)
	return f
}

func (f *fixture) notificationService() *NotificationService {
	return NewNotificationService(f.store.Notifications(), f.store.Attendees(), f.store.Events(), f.cache, nil, f.store.Users(), f.validate, zap.NewNop(), NotificationServiceConfig{})
}

func (f *fixture) requestService(opts ...RequestServiceOption) *RequestService {
	opts = append([]RequestServiceOption{WithRequestCache(f.cache), WithUnreadRefresher(f.notificationService())}, opts...)
	return NewRequestService(f.store.Requests(), f.store.Events(), f.store.Users(), f.validate, zap.NewNop(), opts...)
}

func requireAppError(t *testing.T, err error, target *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, appErrors.Is(err, target), "expected %s, got %v", target.Code, err)
}
