package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/confhub-api/internal/models"
)

// FeedbackRepository is the in-memory feedback store.
type FeedbackRepository struct {
	s *Store
}

func (r *FeedbackRepository) Create(_ context.Context, feedback *models.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = r.s.now()
	}
	stored := *feedback
	stored.UserName = ""
	stored.EventTitle = nil
	r.s.feedbacks[feedback.ID] = stored
	return nil
}

func (r *FeedbackRepository) List(_ context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]models.Feedback, 0, len(r.s.feedbacks))
	for _, fb := range r.s.feedbacks {
		fb = r.s.decorateFeedbackLocked(fb)
		if filter.EventID != "" && (fb.EventID == nil || *fb.EventID != filter.EventID) {
			continue
		}
		if filter.Rating > 0 && fb.Rating != filter.Rating {
			continue
		}
		if filter.Search != "" && !feedbackMatches(fb, filter.Search) {
			continue
		}
		items = append(items, fb)
	}
	sortNewestFirst(items,
		func(f models.Feedback) time.Time { return f.CreatedAt },
		func(f models.Feedback) string { return f.ID })
	return paginate(items, filter.Page, filter.PageSize, 100), len(items), nil
}

func (r *FeedbackRepository) RatingCounts(_ context.Context, eventID string) ([]models.RatingCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byRating := make(map[int]int)
	for _, fb := range r.s.feedbacks {
		if eventID != "" && (fb.EventID == nil || *fb.EventID != eventID) {
			continue
		}
		byRating[fb.Rating]++
	}
	counts := make([]models.RatingCount, 0, len(byRating))
	for rating := models.MaxRating; rating >= models.MinRating; rating-- {
		if n := byRating[rating]; n > 0 {
			counts = append(counts, models.RatingCount{Rating: rating, Count: n})
		}
	}
	return counts, nil
}

func (s *Store) decorateFeedbackLocked(fb models.Feedback) models.Feedback {
	if u, ok := s.profiles[fb.UserID]; ok {
		fb.UserName = u.Name
	}
	if fb.EventID != nil {
		if e, ok := s.events[*fb.EventID]; ok {
			fb.EventTitle = strPtr(e.Title)
		}
	}
	return fb
}

func feedbackMatches(fb models.Feedback, term string) bool {
	if containsFold(fb.UserName, term) || containsFold(fb.Comment, term) {
		return true
	}
	return fb.EventTitle != nil && containsFold(*fb.EventTitle, term)
}
