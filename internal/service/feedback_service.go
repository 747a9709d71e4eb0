package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

const cacheKeyFeedbackSummaryAll = "feedback:summary:*"

func feedbackSummaryCacheKey(eventID string) string {
	if eventID == "" {
		eventID = "all"
	}
	return "feedback:summary:" + eventID
}

type feedbackStore interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error)
	RatingCounts(ctx context.Context, eventID string) ([]models.RatingCount, error)
}

// FeedbackService collects star ratings from any signed-in user and reports them to moderators.
type FeedbackService struct {
	repo       feedbackStore
	events     eventReader
	cache      *CacheService
	validator  *validator.Validate
	audit      auditTrail
	logger     *zap.Logger
	summaryTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// NewFeedbackService constructs the service. cache may be nil.
func NewFeedbackService(repo feedbackStore, events eventReader, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		repo:       repo,
		events:     events,
		cache:      cache,
		validator:  validate,
		audit:      auditTrail{audit: audit, logger: logger, source: "feedback-service"},
		logger:     logger,
		summaryTTL: 10 * time.Minute,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Submit records a rating from the session user. An empty event_id files general feedback.
func (s *FeedbackService) Submit(ctx context.Context, session models.Session, req dto.SubmitFeedbackRequest) (*models.Feedback, error) {
	if session.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.EventID = strings.TrimSpace(req.EventID)
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "rating must be between 1 and 5 and comment at most 2000 characters")
	}

	feedback := &models.Feedback{
		ID:        s.newID(),
		UserID:    session.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: s.now(),
		UserName:  session.Name,
	}
	if req.EventID != "" {
		event, err := s.events.GetByID(ctx, req.EventID)
		if err != nil {
			return nil, notFoundOr(err, "event not found", "failed to load event")
		}
		feedback.EventID = &event.ID
		feedback.EventTitle = &event.Title
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save feedback")
	}

	_ = s.cache.Invalidate(ctx, cacheKeyFeedbackSummaryAll)
	s.audit.emit(ctx, session.UserID, models.AuditActionFeedbackSubmit, "feedback", feedback.ID, nil, feedback)
	return feedback, nil
}

// List returns feedback newest first. Only admins and organizers may read it.
func (s *FeedbackService) List(ctx context.Context, session models.Session, query dto.FeedbackListQuery) ([]models.Feedback, *models.Pagination, error) {
	if !session.Role.CanModerate() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can read feedback")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Validation(err, "rating filter must be between 1 and 5")
	}
	filter := models.FeedbackFilter{
		EventID:  strings.TrimSpace(query.EventID),
		Rating:   query.Rating,
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Summary aggregates ratings overall or for one event.
func (s *FeedbackService) Summary(ctx context.Context, session models.Session, query dto.FeedbackSummaryQuery) (*dto.FeedbackSummary, bool, error) {
	if !session.Role.CanModerate() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can read feedback")
	}
	eventID := strings.TrimSpace(query.EventID)
	summary, cached, err := cacheAside(ctx, s.cache, feedbackSummaryCacheKey(eventID), s.summaryTTL, func(ctx context.Context) (dto.FeedbackSummary, error) {
		counts, err := s.repo.RatingCounts(ctx, eventID)
		if err != nil {
			return dto.FeedbackSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize feedback")
		}
		return summarizeRatings(counts), nil
	})
	if err != nil {
		return nil, false, err
	}
	return &summary, cached, nil
}

// summarizeRatings builds the five-star-first distribution. Percentages are rounded
// per level and so may not add up to exactly 100. Ties for the most common rating
// go to the higher rating.
func summarizeRatings(counts []models.RatingCount) dto.FeedbackSummary {
	byRating := make(map[int]int, len(counts))
	total, sum := 0, 0
	for _, c := range counts {
		if c.Rating < models.MinRating || c.Rating > models.MaxRating {
			continue
		}
		byRating[c.Rating] += c.Count
		total += c.Count
		sum += c.Rating * c.Count
	}

	summary := dto.FeedbackSummary{Total: total, Distribution: make([]dto.RatingShare, 0, models.MaxRating)}
	best := 0
	for rating := models.MaxRating; rating >= models.MinRating; rating-- {
		n := byRating[rating]
		share := dto.RatingShare{Rating: rating, Count: n}
		if total > 0 {
			share.Percent = int(math.Round(float64(n) / float64(total) * 100))
		}
		summary.Distribution = append(summary.Distribution, share)
		if n > best {
			best = n
			summary.MostCommon = rating
		}
	}
	if total > 0 {
		summary.Average = math.Round(float64(sum)/float64(total)*10) / 10
	}
	return summary
}
