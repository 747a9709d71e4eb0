package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

type dashboardRepository interface {
	CountEventsByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountRequestsByStatus(ctx context.Context, kind models.RequestKind) ([]models.StatusCount, error)
	CountRegistrations(ctx context.Context) (int, int, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL         time.Duration
	LeaderboardLimit int
}

// DashboardService composes read-only projections over events, requests and registrations.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, now: func() time.Time { return time.Now().UTC() }, cfg: cfg}
}

// Summary returns platform counts and whether they came from the cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	return cacheAside(ctx, s.cache, cacheKeyDashboardSummary, s.cfg.CacheTTL, s.composeSummary)
}

// Leaderboard ranks attendees by check-ins, then approved mic requests. Out of
// range limits fall back to the configured default.
func (s *DashboardService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = s.cfg.LeaderboardLimit
	}
	return cacheAside(ctx, s.cache, leaderboardCacheKey(limit), s.cfg.CacheTTL, func(ctx context.Context) ([]models.LeaderboardEntry, error) {
		entries, err := s.repo.Leaderboard(ctx, limit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build leaderboard")
		}
		return entries, nil
	})
}

func (s *DashboardService) composeSummary(ctx context.Context) (*models.DashboardSummary, error) {
	events, err := s.repo.CountEventsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}
	mics, err := s.repo.CountRequestsByStatus(ctx, models.RequestKindMic)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count mic requests")
	}
	complaints, err := s.repo.CountRequestsByStatus(ctx, models.RequestKindComplaint)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}
	registrations, checkIns, err := s.repo.CountRegistrations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}

	return &models.DashboardSummary{
		Events:        countsByStatus(events, "upcoming", "ongoing", "completed"),
		MicRequests:   countsByStatus(mics, "pending", "approved", "denied"),
		Complaints:    countsByStatus(complaints, "pending", "approved", "denied"),
		Registrations: registrations,
		CheckIns:      checkIns,
		GeneratedAt:   s.now(),
	}, nil
}

// countsByStatus folds grouped rows into a map that always carries every known status.
func countsByStatus(rows []models.StatusCount, known ...string) map[string]int {
	out := make(map[string]int, len(known))
	for _, k := range known {
		out[k] = 0
	}
	for _, row := range rows {
		out[row.Status] += row.Count
	}
	return out
}
