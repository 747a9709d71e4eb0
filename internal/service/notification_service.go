package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

type notificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification, deliveries []models.NotificationDelivery) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type attendeeLister interface {
	ListUserIDs(ctx context.Context, eventID string) ([]string, error)
}

// NotificationService manages per-user notifications and their read state.
// The unread counter is derived: it is recomputed from the store after every
// mutation and written through to the cache.
type NotificationService struct {
	repo      notificationStore
	attendees attendeeLister
	events    eventReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	audit     auditTrail
	logger    *zap.Logger
	unreadTTL time.Duration
	now       func() time.Time
	newID     func() string
}

// NotificationServiceConfig tunes the service.
type NotificationServiceConfig struct {
	UnreadCacheTTL time.Duration
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, attendees attendeeLister, events eventReader, cache *CacheService, metrics *MetricsService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg NotificationServiceConfig) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UnreadCacheTTL <= 0 {
		cfg.UnreadCacheTTL = time.Minute
	}
	return &NotificationService{
		repo:      repo,
		attendees: attendees,
		events:    events,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		audit:     auditTrail{audit: audit, logger: logger, source: "notification-service"},
		logger:    logger,
		unreadTTL: cfg.UnreadCacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.NotificationListQuery) ([]models.Notification, error) {
	if query.Limit <= 0 || query.Limit > 200 {
		query.Limit = 50
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	items, err := s.repo.List(ctx, models.NotificationFilter{
		UserID:     userID,
		UnreadOnly: query.UnreadOnly,
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkAsRead flags one notification as read. Repeating the call is a no-op.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) (*dto.MarkReadResponse, error) {
	changed, err := s.repo.MarkAsRead(ctx, userID, id, s.now())
	if err != nil {
		return nil, notFoundOr(err, "notification not found", "failed to mark notification as read")
	}
	unread, err := s.recompute(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &dto.MarkReadResponse{Unread: unread}
	if changed {
		resp.Updated = 1
	}
	return resp, nil
}

// MarkAllAsRead flags every unread notification of the user. The unread count is 0 afterwards.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (*dto.MarkReadResponse, error) {
	updated, err := s.repo.MarkAllAsRead(ctx, userID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications as read")
	}
	unread, err := s.recompute(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.MarkReadResponse{Updated: updated, Unread: unread}, nil
}

// UnreadCount returns the unread counter, serving it from cache when present.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, bool, error) {
	return cacheAside(ctx, s.cache, unreadCacheKey(userID), s.unreadTTL, func(ctx context.Context) (int, error) {
		return s.countUnread(ctx, userID)
	})
}

// RefreshUnread recomputes the counters of users who just received notifications.
func (s *NotificationService) RefreshUnread(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		if _, err := s.recompute(ctx, id); err != nil {
			s.logger.Warn("failed to refresh unread count", zap.String("user_id", id), zap.Error(err))
		}
	}
}

// recompute counts from the store and writes the result through to the cache.
// When the write fails the key is dropped so the next read reloads from the store.
func (s *NotificationService) recompute(ctx context.Context, userID string) (int, error) {
	count, err := s.countUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	key := unreadCacheKey(userID)
	if err := s.cache.Set(ctx, key, count, s.unreadTTL); err != nil {
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.logger.Error("unread counter may be stale", zap.String("user_id", userID), zap.Error(delErr))
		}
	}
	return count, nil
}

func (s *NotificationService) countUnread(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return count, nil
}

// Send broadcasts an announcement or event update to explicit users and/or the attendees of an event.
func (s *NotificationService) Send(ctx context.Context, session models.Session, req dto.SendNotificationRequest) (*dto.SendNotificationResponse, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can send notifications")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)
	req.EventID = strings.TrimSpace(req.EventID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid notification payload")
	}

	recipients := append([]string(nil), req.UserIDs...)
	var referenceID *string
	if req.EventID != "" {
		if _, err := s.events.GetByID(ctx, req.EventID); err != nil {
			return nil, notFoundOr(err, "event not found", "failed to load event")
		}
		ids, err := s.attendees.ListUserIDs(ctx, req.EventID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve event attendees")
		}
		recipients = append(recipients, ids...)
		eventID := req.EventID
		referenceID = &eventID
	}
	recipients = uniqueStrings(recipients)
	if len(recipients) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one recipient is required")
	}

	sender := session.UserID
	created, err := s.Notify(ctx, &sender, recipients, req.Type, req.Title, req.Message, referenceID)
	if err != nil {
		return nil, err
	}
	s.audit.emit(ctx, sender, models.AuditActionNotificationSend, "notification", "", nil,
		map[string]interface{}{"type": req.Type, "recipients": len(recipients), "event_id": req.EventID})
	return &dto.SendNotificationResponse{Recipients: len(created), Notifications: created}, nil
}

// Notify persists one notification per recipient together with its outbox row.
func (s *NotificationService) Notify(ctx context.Context, senderID *string, userIDs []string, kind models.NotificationType, title, message string, referenceID *string) ([]models.Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	now := s.now()
	notifications := make([]models.Notification, 0, len(userIDs))
	deliveries := make([]models.NotificationDelivery, 0, len(userIDs))
	for _, userID := range userIDs {
		n := models.Notification{
			ID:          s.newID(),
			UserID:      userID,
			SenderID:    senderID,
			Title:       title,
			Message:     message,
			Type:        kind,
			ReferenceID: referenceID,
			CreatedAt:   now,
		}
		notifications = append(notifications, n)
		deliveries = append(deliveries, models.NewDelivery(s.newID(), n, now))
	}
	if err := s.repo.CreateBatch(ctx, notifications, deliveries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notifications")
	}
	s.metrics.RecordNotifications(string(kind), len(notifications))
	s.RefreshUnread(ctx, userIDs...)
	return notifications, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// isNoRows reports a missing row from either store.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
