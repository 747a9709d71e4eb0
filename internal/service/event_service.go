package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Update(ctx context.Context, event *models.Event) error
	UpdateStatus(ctx context.Context, id string, status models.EventStatus, at time.Time) error
	CountDependents(ctx context.Context, id string) (models.EventDependents, error)
	Delete(ctx context.Context, id string) error
}

type eventNotifier interface {
	Notify(ctx context.Context, senderID *string, userIDs []string, kind models.NotificationType, title, message string, referenceID *string) ([]models.Notification, error)
}

// EventService manages the event catalogue.
type EventService struct {
	repo      eventStore
	attendees attendeeLister
	notifier  eventNotifier
	cache     *CacheService
	validator *validator.Validate
	audit     auditTrail
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs the service.
func NewEventService(repo eventStore, attendees attendeeLister, notifier eventNotifier, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{
		repo:      repo,
		attendees: attendees,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		audit:     auditTrail{audit: audit, logger: logger, source: "event-service"},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	registerValidation(svc.validator, "event_status", func(fl validator.FieldLevel) bool {
		return models.EventStatus(fl.Field().String()).Valid()
	}, logger)
	return svc
}

// List returns events ordered by date and time.
func (s *EventService) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error) {
	filter := models.EventFilter{
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := models.EventStatus(strings.ToLower(raw))
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	return event, nil
}

// Create adds an event.
func (s *EventService) Create(ctx context.Context, session models.Session, req dto.EventRequest) (*models.Event, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can manage events")
	}
	req = normalizeEventRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid event payload")
	}
	if req.Status == "" {
		req.Status = models.EventStatusUpcoming
	}
	creator := session.UserID
	now := s.now()
	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Venue:       req.Venue,
		Capacity:    req.Capacity,
		Status:      req.Status,
		Speakers:    req.Speakers,
		CreatedBy:   &creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.cache.invalidateDashboard(ctx)
	s.audit.emit(ctx, session.UserID, models.AuditActionEventCreate, "event", event.ID, nil, event)
	return event, nil
}

// Update replaces the editable fields of an event and notifies registered attendees of the change.
func (s *EventService) Update(ctx context.Context, session models.Session, id string, req dto.EventRequest) (*models.Event, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can manage events")
	}
	req = normalizeEventRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid event payload")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	before := *current

	if detailsChanged(current, req) {
		deps, err := s.repo.CountDependents(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check event references")
		}
		if deps.MicRequests+deps.Complaints > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf(
				"event is referenced by %d mic requests and %d complaints; only date, time and status can change",
				deps.MicRequests, deps.Complaints))
		}
	}

	updated := *current
	updated.Title = req.Title
	updated.Description = req.Description
	updated.Date = req.Date
	updated.Time = req.Time
	updated.Venue = req.Venue
	updated.Capacity = req.Capacity
	updated.Speakers = req.Speakers
	if req.Status != "" {
		updated.Status = req.Status
	}
	updated.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, notFoundOr(err, "event not found", "failed to update event")
	}

	s.afterChange(ctx, session, &before, &updated)
	return &updated, nil
}

// UpdateStatus moves an event between upcoming, ongoing and completed.
func (s *EventService) UpdateStatus(ctx context.Context, session models.Session, id string, req dto.EventStatusRequest) (*models.Event, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can manage events")
	}
	req.Status = models.EventStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "status must be upcoming, ongoing or completed")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	if current.Status == req.Status {
		return current, nil
	}
	before := *current
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, req.Status, now); err != nil {
		return nil, notFoundOr(err, "event not found", "failed to update event status")
	}
	updated := *current
	updated.Status = req.Status
	updated.UpdatedAt = now

	s.afterChange(ctx, session, &before, &updated)
	return &updated, nil
}

func (s *EventService) afterChange(ctx context.Context, session models.Session, before, after *models.Event) {
	s.cache.invalidateDashboard(ctx)
	s.audit.emit(ctx, session.UserID, models.AuditActionEventUpdate, "event", after.ID, before, after)

	changes := describeEventChanges(before, after)
	if len(changes) == 0 || s.notifier == nil || s.attendees == nil {
		return
	}
	recipients, err := s.attendees.ListUserIDs(ctx, after.ID)
	if err != nil {
		s.logger.Warn("failed to resolve attendees for event update", zap.String("event_id", after.ID), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}
	sender := session.UserID
	eventID := after.ID
	message := fmt.Sprintf("\"%s\" has been updated: %s.", after.Title, strings.Join(changes, "; "))
	if _, err := s.notifier.Notify(ctx, &sender, recipients, models.NotificationTypeEventUpdate, "Event Update", message, &eventID); err != nil {
		s.logger.Warn("failed to notify attendees of event update", zap.String("event_id", after.ID), zap.Error(err))
	}
}

// Delete removes an event. Events still referenced by requests or registrations are kept.
func (s *EventService) Delete(ctx context.Context, session models.Session, id string) error {
	if !session.Role.CanModerate() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can manage events")
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "event not found", "failed to load event")
	}
	deps, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check event references")
	}
	if deps.Any() {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf(
			"event is referenced by %d mic requests, %d complaints and %d registrations",
			deps.MicRequests, deps.Complaints, deps.Registrations))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		// A reference created after the dependents check is rejected by the store.
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "event is still referenced")
	}
	s.cache.invalidateDashboard(ctx)
	s.audit.emit(ctx, session.UserID, models.AuditActionEventDelete, "event", id, event, nil)
	return nil
}

// detailsChanged reports whether req edits anything besides date, time and status.
// Those are the only fields that may change once requests reference the event.
func detailsChanged(current *models.Event, req dto.EventRequest) bool {
	if current.Title != req.Title || current.Description != req.Description ||
		current.Venue != req.Venue || current.Capacity != req.Capacity {
		return true
	}
	if len(current.Speakers) != len(req.Speakers) {
		return true
	}
	for i := range req.Speakers {
		if current.Speakers[i] != req.Speakers[i] {
			return true
		}
	}
	return false
}

func normalizeEventRequest(req dto.EventRequest) dto.EventRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Venue = strings.TrimSpace(req.Venue)
	req.Status = models.EventStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	speakers := make([]string, 0, len(req.Speakers))
	for _, sp := range req.Speakers {
		if sp = strings.TrimSpace(sp); sp != "" {
			speakers = append(speakers, sp)
		}
	}
	req.Speakers = speakers
	return req
}

func describeEventChanges(before, after *models.Event) []string {
	var changes []string
	if before.Date != after.Date || before.Time != after.Time {
		changes = append(changes, fmt.Sprintf("now starts %s at %s", after.Date, after.Time))
	}
	if before.Venue != after.Venue {
		changes = append(changes, "venue changed to "+after.Venue)
	}
	if before.Status != after.Status {
		changes = append(changes, "status is now "+string(after.Status))
	}
	if before.Title != after.Title {
		changes = append(changes, fmt.Sprintf("renamed from \"%s\"", before.Title))
	}
	return changes
}
