package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

type fakeRequestService struct {
	transitionErr  error
	submitErr      error
	lastKind       models.RequestKind
	lastID         string
	lastTransition dto.TransitionRequest
	lastQuery      dto.RequestListQuery
	lastSession    models.Session
}

func (f *fakeRequestService) SubmitMicRequest(_ context.Context, session models.Session, req dto.SubmitMicRequest) (*models.MicRequest, error) {
	f.lastSession = session
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.MicRequest{ID: "mic-1", EventID: req.EventID, UserID: session.UserID, Reason: req.Reason, Status: models.RequestStatusPending}, nil
}

func (f *fakeRequestService) SubmitComplaint(_ context.Context, session models.Session, req dto.SubmitComplaintRequest) (*models.Complaint, error) {
	f.lastSession = session
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.Complaint{ID: "c-1", EventID: req.EventID, UserID: session.UserID, IssueType: req.IssueType, Status: models.RequestStatusPending}, nil
}

func (f *fakeRequestService) ListMicRequests(_ context.Context, session models.Session, query dto.RequestListQuery) ([]models.MicRequest, *models.Pagination, error) {
	f.lastSession = session
	f.lastQuery = query
	return []models.MicRequest{{ID: "mic-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeRequestService) ListComplaints(_ context.Context, session models.Session, query dto.RequestListQuery) ([]models.Complaint, *models.Pagination, error) {
	f.lastSession = session
	f.lastQuery = query
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeRequestService) GetMicRequest(_ context.Context, _ models.Session, id string) (*models.MicRequest, error) {
	if id != "mic-1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.MicRequest{ID: id}, nil
}

func (f *fakeRequestService) GetComplaint(_ context.Context, _ models.Session, id string) (*models.Complaint, error) {
	return nil, appErrors.ErrNotFound
}

func (f *fakeRequestService) Transition(_ context.Context, session models.Session, kind models.RequestKind, id string, req dto.TransitionRequest) (*dto.TransitionResult, error) {
	f.lastSession = session
	f.lastKind = kind
	f.lastID = id
	f.lastTransition = req
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	return &dto.TransitionResult{
		Kind:       kind,
		Status:     req.Status,
		ReviewedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Notification: models.Notification{
			ID:     "n-1",
			UserID: "user-1",
			Title:  "Mic Request Approved",
			Type:   models.NotificationTypeMicRequest,
		},
	}, nil
}

func TestRequestHandlerSubmitMicCreated(t *testing.T) {
	svc := &fakeRequestService{}
	h := NewRequestHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/mic-requests", map[string]string{"event_id": "ev-1", "reason": "question"}, &attendeeSession)

	h.SubmitMic(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.MicRequest
	decodeData(t, decodeEnvelope(t, rec), &created)
	assert.Equal(t, "ev-1", created.EventID)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, "user-1", svc.lastSession.UserID)
}

func TestRequestHandlerSubmitRequiresSession(t *testing.T) {
	h := NewRequestHandler(&fakeRequestService{})
	c, rec := newTestContext(http.MethodPost, "/mic-requests", map[string]string{"event_id": "ev-1"}, nil)

	h.SubmitMic(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRequestHandlerSubmitDuplicateConflict(t *testing.T) {
	h := NewRequestHandler(&fakeRequestService{submitErr: appErrors.ErrDuplicateRequest})
	c, rec := newTestContext(http.MethodPost, "/complaints", map[string]string{"event_id": "ev-1", "issue_type": models.IssueAudio, "description": "hum"}, &attendeeSession)

	h.SubmitComplaint(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DUPLICATE_REQUEST", env.Error.Code)
}

func TestRequestHandlerRejectsMalformedJSON(t *testing.T) {
	h := NewRequestHandler(&fakeRequestService{})
	c, rec := newTestContext(http.MethodPost, "/mic-requests", "{not json", &attendeeSession)

	h.SubmitMic(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestRequestHandlerListBindsQuery(t *testing.T) {
	svc := &fakeRequestService{}
	h := NewRequestHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/mic-requests?event_id=ev-1&status=pending&status=approved&mine=true&page=2", nil, &organizerSession)

	h.ListMic(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ev-1", svc.lastQuery.EventID)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusPending, models.RequestStatusApproved}, svc.lastQuery.Status)
	assert.True(t, svc.lastQuery.Mine)
	assert.Equal(t, 2, svc.lastQuery.Page)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestRequestHandlerGetNotFound(t *testing.T) {
	h := NewRequestHandler(&fakeRequestService{})
	c, rec := newTestContext(http.MethodGet, "/complaints/other", nil, &attendeeSession)
	withParam(c, "id", "other")

	h.GetComplaint(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestHandlerTransitionRoutesKind(t *testing.T) {
	svc := &fakeRequestService{}
	h := NewRequestHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/mic-requests/mic-1/transition", map[string]string{"status": "approved"}, &organizerSession)
	withParam(c, "id", "mic-1")
	h.TransitionMic(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RequestKindMic, svc.lastKind)
	assert.Equal(t, "mic-1", svc.lastID)
	assert.Equal(t, models.RequestStatusApproved, svc.lastTransition.Status)
	assert.Equal(t, "org-1", svc.lastSession.UserID)

	var result dto.TransitionResult
	decodeData(t, decodeEnvelope(t, rec), &result)
	assert.Equal(t, models.RequestStatusApproved, result.Status)
	assert.Equal(t, "Mic Request Approved", result.Notification.Title)

	c, rec = newTestContext(http.MethodPost, "/complaints/c-1/transition", map[string]string{"status": "denied"}, &adminSession)
	withParam(c, "id", "c-1")
	h.TransitionComplaint(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RequestKindComplaint, svc.lastKind)
}

func TestRequestHandlerTransitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "already decided", err: appErrors.ErrInvalidTransition, status: http.StatusConflict, code: "INVALID_TRANSITION"},
		{name: "missing", err: appErrors.ErrNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "bad status", err: appErrors.Clone(appErrors.ErrValidation, "status must be approved or denied"), status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRequestHandler(&fakeRequestService{transitionErr: tc.err})
			c, rec := newTestContext(http.MethodPost, "/mic-requests/x/transition", map[string]string{"status": "approved"}, &organizerSession)
			withParam(c, "id", "x")

			h.TransitionMic(c)

			assert.Equal(t, tc.status, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}
