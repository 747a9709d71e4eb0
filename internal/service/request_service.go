package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

type requestStore interface {
	CreateMicRequest(ctx context.Context, req *models.MicRequest) error
	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	GetMicRequest(ctx context.Context, id string) (*models.MicRequest, error)
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	ListMicRequests(ctx context.Context, filter models.RequestFilter) ([]models.MicRequest, int, error)
	ListComplaints(ctx context.Context, filter models.RequestFilter) ([]models.Complaint, int, error)
	HasActive(ctx context.Context, kind models.RequestKind, userID, eventID string) (bool, error)
	GetRef(ctx context.Context, kind models.RequestKind, id string) (*models.RequestRef, error)
	ApplyTransition(ctx context.Context, t models.Transition) error
}

type eventReader interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

// unreadRefresher recomputes cached unread counters after notifications are written.
type unreadRefresher interface {
	RefreshUnread(ctx context.Context, userIDs ...string)
}

const fallbackEventTitle = "the event"

// RequestService owns mic request and complaint submission and the lifecycle controller.
type RequestService struct {
	repo      requestStore
	events    eventReader
	validator *validator.Validate
	metrics   *MetricsService
	cache     *CacheService
	unread    unreadRefresher
	audit     auditTrail
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithRequestMetrics records submissions and transitions.
func WithRequestMetrics(metrics *MetricsService) RequestServiceOption {
	return func(s *RequestService) { s.metrics = metrics }
}

// WithRequestCache invalidates dashboard projections on writes.
func WithRequestCache(cache *CacheService) RequestServiceOption {
	return func(s *RequestService) { s.cache = cache }
}

// WithUnreadRefresher keeps the recipient's unread counter current after a transition.
func WithUnreadRefresher(r unreadRefresher) RequestServiceOption {
	return func(s *RequestService) { s.unread = r }
}

// WithRequestClock overrides the time source.
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs the service.
func NewRequestService(repo requestStore, events eventReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		repo:      repo,
		events:    events,
		validator: validate,
		audit:     auditTrail{audit: audit, logger: logger, source: "request-service"},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	registerValidation(svc.validator, "issue_type", func(fl validator.FieldLevel) bool {
		return models.ValidIssueType(fl.Field().String())
	}, logger)
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SubmitMicRequest creates a pending mic request for the session user.
func (s *RequestService) SubmitMicRequest(ctx context.Context, session models.Session, req dto.SubmitMicRequest) (*models.MicRequest, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "event_id and a non-empty reason are required")
	}
	if err := s.checkSubmission(ctx, models.RequestKindMic, session.UserID, req.EventID); err != nil {
		return nil, err
	}

	mic := &models.MicRequest{
		ID:      s.newID(),
		EventID: req.EventID,
		UserID:  session.UserID,
		Reason:  req.Reason,
		Status:  models.RequestStatusPending,
	}
	mic.CreatedAt = s.now()
	mic.UpdatedAt = mic.CreatedAt
	if err := s.repo.CreateMicRequest(ctx, mic); err != nil {
		return nil, s.submissionError(models.RequestKindMic, err)
	}
	s.afterSubmit(ctx, models.RequestKindMic, mic.ID, session.UserID)
	return mic, nil
}

// SubmitComplaint creates a pending complaint for the session user.
func (s *RequestService) SubmitComplaint(ctx context.Context, session models.Session, req dto.SubmitComplaintRequest) (*models.Complaint, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.IssueType = strings.TrimSpace(req.IssueType)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err,
			fmt.Sprintf("event_id, a non-empty description and issue_type (one of %s) are required", strings.Join(models.IssueTypes, ", ")))
	}
	if err := s.checkSubmission(ctx, models.RequestKindComplaint, session.UserID, req.EventID); err != nil {
		return nil, err
	}

	complaint := &models.Complaint{
		ID:          s.newID(),
		EventID:     req.EventID,
		UserID:      session.UserID,
		IssueType:   req.IssueType,
		Description: req.Description,
		Status:      models.RequestStatusPending,
	}
	complaint.CreatedAt = s.now()
	complaint.UpdatedAt = complaint.CreatedAt
	if err := s.repo.CreateComplaint(ctx, complaint); err != nil {
		return nil, s.submissionError(models.RequestKindComplaint, err)
	}
	s.afterSubmit(ctx, models.RequestKindComplaint, complaint.ID, session.UserID)
	return complaint, nil
}

// checkSubmission verifies the event accepts requests and the duplicate-active rule holds.
func (s *RequestService) checkSubmission(ctx context.Context, kind models.RequestKind, userID, eventID string) error {
	if userID == "" {
		return appErrors.ErrUnauthorized
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.Status == models.EventStatusCompleted {
		return appErrors.Clone(appErrors.ErrValidation, "event has already completed")
	}
	active, err := s.repo.HasActive(ctx, kind, userID, eventID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing requests")
	}
	if active {
		s.metrics.RecordSubmission(string(kind), "duplicate")
		return appErrors.ErrDuplicateRequest
	}
	return nil
}

// submissionError maps a store failure. A unique violation means a concurrent submission won.
func (s *RequestService) submissionError(kind models.RequestKind, err error) error {
	if errors.Is(err, repository.ErrDuplicateActive) {
		s.metrics.RecordSubmission(string(kind), "duplicate")
		return appErrors.ErrDuplicateRequest
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
}

func (s *RequestService) afterSubmit(ctx context.Context, kind models.RequestKind, id, userID string) {
	s.metrics.RecordSubmission(string(kind), "created")
	s.cache.invalidateDashboard(ctx)
	s.logger.Info("request submitted", zap.String("kind", string(kind)), zap.String("request_id", id), zap.String("user_id", userID))
}

// ListMicRequests returns mic requests. Attendees only ever see their own.
func (s *RequestService) ListMicRequests(ctx context.Context, session models.Session, query dto.RequestListQuery) ([]models.MicRequest, *models.Pagination, error) {
	filter, err := s.listFilter(session, query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.ListMicRequests(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mic requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListComplaints returns complaints. Attendees only ever see their own.
func (s *RequestService) ListComplaints(ctx context.Context, session models.Session, query dto.RequestListQuery) ([]models.Complaint, *models.Pagination, error) {
	filter, err := s.listFilter(session, query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.ListComplaints(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *RequestService) listFilter(session models.Session, query dto.RequestListQuery) (models.RequestFilter, error) {
	for _, st := range query.Status {
		if !st.Valid() {
			return models.RequestFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
	}
	filter := models.RequestFilter{
		EventID:  strings.TrimSpace(query.EventID),
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Mine || !session.Role.CanModerate() {
		filter.UserID = session.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 20
	}
	return filter, nil
}

// GetMicRequest returns a mic request visible to the session.
func (s *RequestService) GetMicRequest(ctx context.Context, session models.Session, id string) (*models.MicRequest, error) {
	mic, err := s.repo.GetMicRequest(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "mic request not found", "failed to load mic request")
	}
	if !session.Role.CanModerate() && mic.UserID != session.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "mic request not found")
	}
	return mic, nil
}

// GetComplaint returns a complaint visible to the session.
func (s *RequestService) GetComplaint(ctx context.Context, session models.Session, id string) (*models.Complaint, error) {
	complaint, err := s.repo.GetComplaint(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "complaint not found", "failed to load complaint")
	}
	if !session.Role.CanModerate() && complaint.UserID != session.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}
	return complaint, nil
}

// Transition moves a pending request to approved or denied and writes exactly one
// notification for its owner in the same store operation. The pending check is a
// compare-and-set, so of two concurrent reviews only one succeeds.
func (s *RequestService) Transition(ctx context.Context, session models.Session, kind models.RequestKind, id string, req dto.TransitionRequest) (*dto.TransitionResult, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown request kind")
	}
	if !session.Role.CanModerate() {
		s.metrics.RecordTransition(string(kind), "forbidden")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can review requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "status must be approved or denied")
	}

	ref, err := s.repo.GetRef(ctx, kind, id)
	if err != nil {
		return nil, notFoundOr(err, kindLabel(kind)+" not found", "failed to load request")
	}
	if !models.CanTransition(ref.Status, req.Status) {
		s.metrics.RecordTransition(string(kind), "rejected")
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now()
	title, message := transitionTemplate(kind, req.Status, s.eventTitle(ctx, ref.EventID))
	actorID := session.UserID
	refID := ref.ID
	notification := models.Notification{
		ID:          s.newID(),
		UserID:      ref.UserID,
		SenderID:    &actorID,
		Title:       title,
		Message:     message,
		Type:        kind.NotificationType(),
		ReferenceID: &refID,
		CreatedAt:   now,
	}
	transition := models.Transition{
		Kind:         kind,
		RequestID:    ref.ID,
		To:           req.Status,
		ActorID:      actorID,
		At:           now,
		Notification: notification,
		Delivery:     models.NewDelivery(s.newID(), notification, now),
	}
	if err := s.repo.ApplyTransition(ctx, transition); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			s.metrics.RecordTransition(string(kind), "rejected")
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	s.metrics.RecordTransition(string(kind), string(req.Status))
	s.metrics.RecordNotifications(string(notification.Type), 1)
	if s.unread != nil {
		s.unread.RefreshUnread(ctx, ref.UserID)
	}
	s.cache.invalidateDashboard(ctx)
	s.audit.emit(ctx, actorID, models.AuditActionRequestTransition, string(kind), ref.ID,
		map[string]string{"status": string(ref.Status)},
		map[string]string{"status": string(req.Status), "notification_id": notification.ID})
	s.logger.Info("request transitioned",
		zap.String("kind", string(kind)),
		zap.String("request_id", ref.ID),
		zap.String("status", string(req.Status)),
		zap.String("actor_id", actorID),
	)

	return &dto.TransitionResult{
		Kind:         kind,
		Request:      s.reload(ctx, ref, transition),
		Notification: notification,
		Status:       req.Status,
		ReviewedAt:   now,
	}, nil
}

// reload fetches the mutated entity. The transition is already committed, so a read
// failure falls back to the reference projection instead of failing the call.
func (s *RequestService) reload(ctx context.Context, ref *models.RequestRef, t models.Transition) interface{} {
	var (
		entity interface{}
		err    error
	)
	switch ref.Kind {
	case models.RequestKindComplaint:
		entity, err = s.repo.GetComplaint(ctx, ref.ID)
	default:
		entity, err = s.repo.GetMicRequest(ctx, ref.ID)
	}
	if err != nil {
		s.logger.Warn("failed to reload transitioned request", zap.String("request_id", ref.ID), zap.Error(err))
		projection := *ref
		projection.Status = t.To
		return projection
	}
	return entity
}

func (s *RequestService) eventTitle(ctx context.Context, eventID string) string {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("event lookup failed, using placeholder title", zap.String("event_id", eventID), zap.Error(err))
		}
		return fallbackEventTitle
	}
	if strings.TrimSpace(event.Title) == "" {
		return fallbackEventTitle
	}
	return event.Title
}

// transitionTemplate renders the notification for a review decision. Complaints use
// acknowledged/dismissed wording.
func transitionTemplate(kind models.RequestKind, status models.RequestStatus, eventTitle string) (string, string) {
	approved := status == models.RequestStatusApproved
	if kind == models.RequestKindComplaint {
		if approved {
			return "Complaint Acknowledged", fmt.Sprintf("Your complaint about \"%s\" has been acknowledged and will be addressed.", eventTitle)
		}
		return "Complaint Dismissed", fmt.Sprintf("Your complaint about \"%s\" has been dismissed.", eventTitle)
	}
	if approved {
		return "Mic Request Approved", fmt.Sprintf("Your mic request for \"%s\" has been approved.", eventTitle)
	}
	return "Mic Request Denied", fmt.Sprintf("Your mic request for \"%s\" has been denied.", eventTitle)
}

func kindLabel(kind models.RequestKind) string {
	if kind == models.RequestKindComplaint {
		return "complaint"
	}
	return "mic request"
}

// notFoundOr maps sql.ErrNoRows to a not-found error and anything else to an internal one.
func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}
