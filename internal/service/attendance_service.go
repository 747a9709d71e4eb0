package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/repository"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
	"github.com/noah-isme/confhub-api/pkg/signing"
)

type attendeeStore interface {
	Register(ctx context.Context, eventID, userID string, capacity int, at time.Time) error
	Cancel(ctx context.Context, eventID, userID string) error
	Get(ctx context.Context, eventID, userID string) (*models.EventAttendee, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.EventAttendee, error)
	MarkCheckedIn(ctx context.Context, eventID, userID string, at time.Time) (bool, error)
}

type checkInSigner interface {
	Issue(eventID, userID string) (string, time.Time, error)
	Verify(token string) (signing.CheckInClaims, error)
}

// AttendanceService handles event registration and QR check-in.
type AttendanceService struct {
	repo   attendeeStore
	events eventReader
	signer checkInSigner
	cache  *CacheService
	audit  auditTrail
	logger *zap.Logger
	now    func() time.Time
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendeeStore, events eventReader, signer checkInSigner, cache *CacheService, audit auditLogger, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:   repo,
		events: events,
		signer: signer,
		cache:  cache,
		audit:  auditTrail{audit: audit, logger: logger, source: "attendance-service"},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register reserves a seat for the session user.
func (s *AttendanceService) Register(ctx context.Context, session models.Session, eventID string) (*models.EventAttendee, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	if event.Status == models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event has already completed")
	}
	if err := s.repo.Register(ctx, eventID, session.UserID, event.Capacity, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyRegistered):
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this event")
		case errors.Is(err, repository.ErrEventFull):
			return nil, appErrors.Clone(appErrors.ErrConflict, "event is at capacity")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register")
		}
	}
	s.cache.invalidateDashboard(ctx)
	attendee, err := s.repo.Get(ctx, eventID, session.UserID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	return attendee, nil
}

// Cancel drops the session user's registration. Checked-in registrations stay.
func (s *AttendanceService) Cancel(ctx context.Context, session models.Session, eventID string) error {
	if err := s.repo.Cancel(ctx, eventID, session.UserID); err != nil {
		return notFoundOr(err, "no cancellable registration for this event", "failed to cancel registration")
	}
	s.cache.invalidateDashboard(ctx)
	return nil
}

// ListAttendees returns every registration of an event.
func (s *AttendanceService) ListAttendees(ctx context.Context, session models.Session, eventID string) ([]models.EventAttendee, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can list attendees")
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	items, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendees")
	}
	return items, nil
}

// IssueCheckInToken returns the signed QR payload for a registered user.
func (s *AttendanceService) IssueCheckInToken(ctx context.Context, session models.Session, eventID string) (*dto.CheckInTokenResponse, error) {
	if _, err := s.repo.Get(ctx, eventID, session.UserID); err != nil {
		return nil, notFoundOr(err, "not registered for this event", "failed to load registration")
	}
	token, expiresAt, err := s.signer.Issue(eventID, session.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue check-in token")
	}
	return &dto.CheckInTokenResponse{Token: token, EventID: eventID, UserID: session.UserID, ExpiresAt: expiresAt}, nil
}

// CheckIn verifies a scanned token and marks the registration. Scanning twice is harmless.
func (s *AttendanceService) CheckIn(ctx context.Context, session models.Session, req dto.CheckInRequest) (*dto.CheckInResponse, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can check attendees in")
	}
	claims, err := s.signer.Verify(req.Token)
	if err != nil {
		if errors.Is(err, signing.ErrExpiredToken) {
			return nil, appErrors.Validation(err, "check-in token expired")
		}
		return nil, appErrors.Validation(err, "invalid check-in token")
	}
	if _, err := s.repo.Get(ctx, claims.EventID, claims.UserID); err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	changed, err := s.repo.MarkCheckedIn(ctx, claims.EventID, claims.UserID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check in")
	}
	attendee, err := s.repo.Get(ctx, claims.EventID, claims.UserID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	if changed {
		s.cache.invalidateDashboard(ctx)
		s.audit.emit(ctx, session.UserID, models.AuditActionCheckIn, "event_attendee", claims.EventID+":"+claims.UserID, nil,
			map[string]string{"event_id": claims.EventID, "user_id": claims.UserID})
	}
	return &dto.CheckInResponse{Attendee: *attendee, AlreadyCheckedIn: !changed}, nil
}
