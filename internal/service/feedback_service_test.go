package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

func (f *fixture) feedbackService() *FeedbackService {
	return NewFeedbackService(f.store.Feedback(), f.store.Events(), f.cache, f.store.Users(), f.validate, zap.NewNop())
}

func TestFeedbackServiceSubmit(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	general, err := svc.Submit(ctx, f.alice, dto.SubmitFeedbackRequest{Rating: 4, Comment: "  Smooth check-in  "})
	require.NoError(t, err)
	assert.Nil(t, general.EventID)
	assert.Equal(t, "Smooth check-in", general.Comment)
	assert.Equal(t, f.alice.UserID, general.UserID)

	scoped, err := svc.Submit(ctx, f.bob, dto.SubmitFeedbackRequest{EventID: f.keynote.ID, Rating: 5})
	require.NoError(t, err)
	require.NotNil(t, scoped.EventID)
	assert.Equal(t, f.keynote.ID, *scoped.EventID)
	require.NotNil(t, scoped.EventTitle)
	assert.Equal(t, "Opening Keynote", *scoped.EventTitle)

	again, err := svc.Submit(ctx, f.alice, dto.SubmitFeedbackRequest{Rating: 3})
	require.NoError(t, err)
	assert.NotEqual(t, general.ID, again.ID)

	logs := f.store.AuditLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, models.AuditActionFeedbackSubmit, logs[len(logs)-1].Action)
}

func TestFeedbackServiceSubmitRules(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	cases := []struct {
		name    string
		session models.Session
		req     dto.SubmitFeedbackRequest
		want    *appErrors.Error
	}{
		{name: "rating zero", session: f.alice, req: dto.SubmitFeedbackRequest{Rating: 0}, want: appErrors.ErrValidation},
		{name: "rating six", session: f.alice, req: dto.SubmitFeedbackRequest{Rating: 6}, want: appErrors.ErrValidation},
		{name: "unknown event", session: f.alice, req: dto.SubmitFeedbackRequest{EventID: "missing", Rating: 3}, want: appErrors.ErrNotFound},
		{name: "anonymous", session: models.Session{}, req: dto.SubmitFeedbackRequest{Rating: 3}, want: appErrors.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.session, tc.req)
			requireAppError(t, err, tc.want)
		})
	}

	_, total, err := f.store.Feedback().List(ctx, models.FeedbackFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestFeedbackServiceListIsModeratorOnly(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	_, err := svc.Submit(ctx, f.alice, dto.SubmitFeedbackRequest{EventID: f.keynote.ID, Rating: 5, Comment: "Great audio"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, f.bob, dto.SubmitFeedbackRequest{Rating: 2, Comment: "Long queues"})
	require.NoError(t, err)

	_, _, err = svc.List(ctx, f.alice, dto.FeedbackListQuery{})
	requireAppError(t, err, appErrors.ErrForbidden)

	items, page, err := svc.List(ctx, f.organizer, dto.FeedbackListQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	items, _, err = svc.List(ctx, f.admin, dto.FeedbackListQuery{Search: "bob"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Long queues", items[0].Comment)

	items, _, err = svc.List(ctx, f.admin, dto.FeedbackListQuery{Search: "KEYNOTE"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Rating)

	items, _, err = svc.List(ctx, f.admin, dto.FeedbackListQuery{Rating: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Bob", items[0].UserName)

	_, _, err = svc.List(ctx, f.admin, dto.FeedbackListQuery{Rating: 9})
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestFeedbackServiceSummary(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	for _, rating := range []int{5, 5, 4} {
		_, err := svc.Submit(ctx, f.alice, dto.SubmitFeedbackRequest{EventID: f.keynote.ID, Rating: rating})
		require.NoError(t, err)
	}

	_, _, err := svc.Summary(ctx, f.bob, dto.FeedbackSummaryQuery{})
	requireAppError(t, err, appErrors.ErrForbidden)

	summary, cached, err := svc.Summary(ctx, f.admin, dto.FeedbackSummaryQuery{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 4.7, summary.Average)
	assert.Equal(t, 5, summary.MostCommon)
	require.Len(t, summary.Distribution, 5)
	assert.Equal(t, dto.RatingShare{Rating: 5, Count: 2, Percent: 67}, summary.Distribution[0])
	assert.Equal(t, dto.RatingShare{Rating: 4, Count: 1, Percent: 33}, summary.Distribution[1])
	assert.Equal(t, dto.RatingShare{Rating: 1, Count: 0, Percent: 0}, summary.Distribution[4])

	_, cached, err = svc.Summary(ctx, f.admin, dto.FeedbackSummaryQuery{})
	require.NoError(t, err)
	assert.True(t, cached)

	_, err = svc.Submit(ctx, f.bob, dto.SubmitFeedbackRequest{Rating: 1})
	require.NoError(t, err)
	assert.False(t, f.cacheRepo.has(feedbackSummaryCacheKey("")))

	summary, cached, err = svc.Summary(ctx, f.admin, dto.FeedbackSummaryQuery{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 4, summary.Total)

	scoped, _, err := svc.Summary(ctx, f.admin, dto.FeedbackSummaryQuery{EventID: f.keynote.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, scoped.Total)
}

func TestSummarizeRatings(t *testing.T) {
	empty := summarizeRatings(nil)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Average)
	assert.Zero(t, empty.MostCommon)
	assert.Len(t, empty.Distribution, 5)

	tied := summarizeRatings([]models.RatingCount{{Rating: 2, Count: 2}, {Rating: 4, Count: 2}, {Rating: 9, Count: 7}})
	assert.Equal(t, 4, tied.Total)
	assert.Equal(t, 3.0, tied.Average)
	assert.Equal(t, 4, tied.MostCommon)
	assert.Equal(t, 50, tied.Distribution[1].Percent)
}
