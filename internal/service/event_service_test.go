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

func (f *fixture) eventService() *EventService {
	return NewEventService(f.store.Events(), f.store.Attendees(), f.notificationService(), f.cache, f.store.Users(), f.validate, zap.NewNop())
}

func validEventRequest() dto.EventRequest {
	return dto.EventRequest{
		Title:    "  Security Workshop ",
		Date:     "2026-11-02",
		Time:     "14:30",
		Venue:    "Room 4",
		Capacity: 40,
		Speakers: []string{"Grace", " ", "Linus"},
	}
}

func TestEventServiceCreate(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	require.NoError(t, f.cache.Set(context.Background(), cacheKeyDashboardSummary, map[string]int{"x": 1}, 0))

	event, err := svc.Create(context.Background(), f.organizer, validEventRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Security Workshop", event.Title)
	assert.Equal(t, models.EventStatusUpcoming, event.Status)
	assert.Equal(t, []string{"Grace", "Linus"}, []string(event.Speakers))
	require.NotNil(t, event.CreatedBy)
	assert.Equal(t, f.organizer.UserID, *event.CreatedBy)
	assert.False(t, f.cacheRepo.has(cacheKeyDashboardSummary))

	stored, err := svc.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Title, stored.Title)

	logs := f.store.AuditLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, models.AuditActionEventCreate, logs[len(logs)-1].Action)
}

func TestEventServiceCreateRules(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	ctx := context.Background()

	_, err := svc.Create(ctx, f.alice, validEventRequest())
	requireAppError(t, err, appErrors.ErrForbidden)

	bad := validEventRequest()
	bad.Date = "02/11/2026"
	_, err = svc.Create(ctx, f.admin, bad)
	requireAppError(t, err, appErrors.ErrValidation)

	bad = validEventRequest()
	bad.Status = "cancelled"
	_, err = svc.Create(ctx, f.admin, bad)
	requireAppError(t, err, appErrors.ErrValidation)

	bad = validEventRequest()
	bad.Capacity = 0
	_, err = svc.Create(ctx, f.admin, bad)
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestEventServiceUpdateNotifiesAttendees(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	ctx := context.Background()
	require.NoError(t, f.store.Attendees().Register(ctx, f.keynote.ID, f.alice.UserID, 100, f.keynote.CreatedAt))

	req := dto.EventRequest{
		Title:    f.keynote.Title,
		Date:     f.keynote.Date,
		Time:     f.keynote.Time,
		Venue:    "Main Stage",
		Capacity: f.keynote.Capacity,
	}
	updated, err := svc.Update(ctx, f.organizer, f.keynote.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Main Stage", updated.Venue)
	assert.Equal(t, models.EventStatusOngoing, updated.Status, "status is kept when omitted")

	list, err := f.notificationService().List(ctx, f.alice.UserID, dto.NotificationListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Event Update", list[0].Title)
	assert.Equal(t, models.NotificationTypeEventUpdate, list[0].Type)
	assert.Contains(t, list[0].Message, "venue changed to Main Stage")
	require.NotNil(t, list[0].ReferenceID)
	assert.Equal(t, f.keynote.ID, *list[0].ReferenceID)

	bobList, err := f.notificationService().List(ctx, f.bob.UserID, dto.NotificationListQuery{})
	require.NoError(t, err)
	assert.Empty(t, bobList)
}

func TestEventServiceUpdateWithoutChangesIsSilent(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	ctx := context.Background()
	require.NoError(t, f.store.Attendees().Register(ctx, f.keynote.ID, f.alice.UserID, 100, f.keynote.CreatedAt))

	_, err := svc.Update(ctx, f.organizer, f.keynote.ID, dto.EventRequest{
		Title:       f.keynote.Title,
		Description: "longer abstract",
		Date:        f.keynote.Date,
		Time:        f.keynote.Time,
		Venue:       f.keynote.Venue,
		Capacity:    f.keynote.Capacity,
	})
	require.NoError(t, err)
	assert.Empty(t, f.store.Notifications().Deliveries())
}

func TestEventServiceUpdateLocksDetailsOnceReferenced(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	ctx := context.Background()

	_, err := f.requestService().SubmitMicRequest(ctx, f.alice, dto.SubmitMicRequest{EventID: f.keynote.ID, Reason: "Question"})
	require.NoError(t, err)

	renamed := dto.EventRequest{
		Title:    "Totally Different",
		Date:     f.keynote.Date,
		Time:     f.keynote.Time,
		Venue:    "Elsewhere",
		Capacity: 3,
	}
	_, err = svc.Update(ctx, f.admin, f.keynote.ID, renamed)
	requireAppError(t, err, appErrors.ErrConflict)

	stored, err := svc.Get(ctx, f.keynote.ID)
	require.NoError(t, err)
	assert.Equal(t, "Opening Keynote", stored.Title)
	assert.Equal(t, "Hall", stored.Venue)
	assert.Equal(t, 100, stored.Capacity)

	rescheduled := dto.EventRequest{
		Title:    f.keynote.Title,
		Date:     "2026-10-17",
		Time:     "10:30",
		Venue:    f.keynote.Venue,
		Capacity: f.keynote.Capacity,
		Status:   models.EventStatusUpcoming,
	}
	updated, err := svc.Update(ctx, f.admin, f.keynote.ID, rescheduled)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", updated.Date)
	assert.Equal(t, "10:30", updated.Time)
	assert.Equal(t, models.EventStatusUpcoming, updated.Status)
}

func TestEventServiceUpdateStatus(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	ctx := context.Background()
	require.NoError(t, f.store.Attendees().Register(ctx, f.panel.ID, f.bob.UserID, 1, f.panel.CreatedAt))

	updated, err := svc.UpdateStatus(ctx, f.admin, f.panel.ID, dto.EventStatusRequest{Status: " Ongoing "})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusOngoing, updated.Status)

	count, _, err := f.notificationService().UnreadCount(ctx, f.bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	same, err := svc.UpdateStatus(ctx, f.admin, f.panel.ID, dto.EventStatusRequest{Status: models.EventStatusOngoing})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusOngoing, same.Status)
	count, _, err = f.notificationService().UnreadCount(ctx, f.bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no-op status change does not notify")

	_, err = svc.UpdateStatus(ctx, f.admin, f.panel.ID, dto.EventStatusRequest{Status: "archived"})
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = svc.UpdateStatus(ctx, f.admin, "missing", dto.EventStatusRequest{Status: models.EventStatusOngoing})
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestEventServiceDeleteBlockedByDependents(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()
	ctx := context.Background()

	_, err := f.requestService().SubmitMicRequest(ctx, f.alice, dto.SubmitMicRequest{EventID: f.keynote.ID, Reason: "Question"})
	require.NoError(t, err)

	err = svc.Delete(ctx, f.admin, f.keynote.ID)
	requireAppError(t, err, appErrors.ErrConflict)

	_, err = svc.Get(ctx, f.keynote.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, f.admin, f.past.ID))
	_, err = svc.Get(ctx, f.past.ID)
	requireAppError(t, err, appErrors.ErrNotFound)

	err = svc.Delete(ctx, f.alice, f.panel.ID)
	requireAppError(t, err, appErrors.ErrForbidden)
}

func TestEventServiceListFilters(t *testing.T) {
	f := newFixture(t)
	svc := f.eventService()

	items, page, err := svc.List(context.Background(), dto.EventListQuery{Status: "upcoming"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, f.panel.ID, items[0].ID)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.List(context.Background(), dto.EventListQuery{Status: "soon"})
	requireAppError(t, err, appErrors.ErrValidation)
}
