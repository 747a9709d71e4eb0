package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
	"github.com/noah-isme/confhub-api/pkg/signing"
)

func (f *fixture) attendanceService(ttl time.Duration) *AttendanceService {
	signer := signing.NewCheckInSigner("check-in-secret", ttl)
	return NewAttendanceService(f.store.Attendees(), f.store.Events(), signer, f.cache, f.store.Users(), zap.NewNop())
}

func TestAttendanceServiceRegister(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService(time.Hour)
	ctx := context.Background()

	attendee, err := svc.Register(ctx, f.alice, f.keynote.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.UserID, attendee.UserID)
	assert.Equal(t, "Alice", attendee.Name)
	assert.False(t, attendee.CheckedIn)

	_, err = svc.Register(ctx, f.alice, f.keynote.ID)
	requireAppError(t, err, appErrors.ErrConflict)

	_, err = svc.Register(ctx, f.alice, f.panel.ID)
	require.NoError(t, err)
	_, err = svc.Register(ctx, f.bob, f.panel.ID)
	requireAppError(t, err, appErrors.ErrConflict)

	_, err = svc.Register(ctx, f.bob, f.past.ID)
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = svc.Register(ctx, f.bob, "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestAttendanceServiceCancel(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService(time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, f.bob, f.panel.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, f.bob, f.panel.ID))

	err = svc.Cancel(ctx, f.bob, f.panel.ID)
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = svc.Register(ctx, f.alice, f.panel.ID)
	require.NoError(t, err, "cancelled seat is released")
}

func TestAttendanceServiceCheckInFlow(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService(time.Hour)
	ctx := context.Background()

	_, err := svc.IssueCheckInToken(ctx, f.alice, f.keynote.ID)
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = svc.Register(ctx, f.alice, f.keynote.ID)
	require.NoError(t, err)
	token, err := svc.IssueCheckInToken(ctx, f.alice, f.keynote.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, f.keynote.ID, token.EventID)

	_, err = svc.CheckIn(ctx, f.alice, dto.CheckInRequest{Token: token.Token})
	requireAppError(t, err, appErrors.ErrForbidden)

	first, err := svc.CheckIn(ctx, f.organizer, dto.CheckInRequest{Token: token.Token})
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)
	assert.True(t, first.Attendee.CheckedIn)
	assert.NotNil(t, first.Attendee.CheckedInAt)

	second, err := svc.CheckIn(ctx, f.organizer, dto.CheckInRequest{Token: token.Token})
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)

	err = svc.Cancel(ctx, f.alice, f.keynote.ID)
	requireAppError(t, err, appErrors.ErrNotFound)

	checkIns := 0
	for _, log := range f.store.AuditLogs() {
		if log.Action == models.AuditActionCheckIn {
			checkIns++
		}
	}
	assert.Equal(t, 1, checkIns)

	attendees, err := svc.ListAttendees(ctx, f.organizer, f.keynote.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.True(t, attendees[0].CheckedIn)

	_, err = svc.ListAttendees(ctx, f.bob, f.keynote.ID)
	requireAppError(t, err, appErrors.ErrForbidden)
}

func TestAttendanceServiceCheckInRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService(time.Hour)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, f.organizer, dto.CheckInRequest{Token: "not-a-token"})
	requireAppError(t, err, appErrors.ErrValidation)

	forged, _, err := signing.NewCheckInSigner("other-secret", time.Hour).Issue(f.keynote.ID, f.alice.UserID)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, f.organizer, dto.CheckInRequest{Token: forged})
	requireAppError(t, err, appErrors.ErrValidation)

	unregistered, _, err := signing.NewCheckInSigner("check-in-secret", time.Hour).Issue(f.keynote.ID, f.bob.UserID)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, f.organizer, dto.CheckInRequest{Token: unregistered})
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestAttendanceServiceCheckInRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.attendanceService(time.Nanosecond)

	_, err := svc.Register(ctx, f.alice, f.keynote.ID)
	require.NoError(t, err)
	token, err := svc.IssueCheckInToken(ctx, f.alice, f.keynote.ID)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	_, err = svc.CheckIn(ctx, f.organizer, dto.CheckInRequest{Token: token.Token})
	requireAppError(t, err, appErrors.ErrValidation)
}
