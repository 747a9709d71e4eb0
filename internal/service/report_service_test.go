package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

func TestReportServiceExportsMicRequestsAsCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requests := f.requestService()
	mic, err := requests.SubmitMicRequest(ctx, f.alice, dto.SubmitMicRequest{EventID: f.keynote.ID, Reason: "Question, with comma"})
	require.NoError(t, err)
	_, err = requests.SubmitMicRequest(ctx, f.bob, dto.SubmitMicRequest{EventID: f.panel.ID, Reason: "Follow-up"})
	require.NoError(t, err)
	_, err = requests.Transition(ctx, f.admin, models.RequestKindMic, mic.ID, dto.TransitionRequest{Status: models.RequestStatusApproved})
	require.NoError(t, err)

	svc := NewReportService(f.store.Requests(), f.store.Events(), zap.NewNop())
	result, err := svc.ExportRequests(ctx, f.organizer, dto.ExportRequestsQuery{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.True(t, strings.HasPrefix(result.Filename, "mic_requests_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))
	assert.Contains(t, result.ContentType, "text/csv")

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"ID", "Event", "User", "Reason", "Status", "Created At", "Reviewed At"}, records[0])
	assert.Equal(t, mic.ID, records[1][0])
	assert.Equal(t, "Opening Keynote", records[1][1])
	assert.Equal(t, "Question, with comma", records[1][3])
	assert.Equal(t, "approved", records[1][4])
	assert.NotEmpty(t, records[1][6])
}

func TestReportServiceExportsComplaintsAsPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.requestService().SubmitComplaint(ctx, f.alice, dto.SubmitComplaintRequest{
		EventID:     f.keynote.ID,
		IssueType:   models.IssueAudio,
		Description: "Cannot hear the speaker",
	})
	require.NoError(t, err)

	svc := NewReportService(f.store.Requests(), f.store.Events(), zap.NewNop())
	result, err := svc.ExportRequests(ctx, f.admin, dto.ExportRequestsQuery{Kind: "complaint", Format: "PDF", EventID: f.keynote.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "complaints_"))
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF")))
}

func TestReportServiceRules(t *testing.T) {
	f := newFixture(t)
	svc := NewReportService(f.store.Requests(), f.store.Events(), zap.NewNop())
	ctx := context.Background()

	_, err := svc.ExportRequests(ctx, f.alice, dto.ExportRequestsQuery{})
	requireAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.ExportRequests(ctx, f.admin, dto.ExportRequestsQuery{Kind: "feedback"})
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = svc.ExportRequests(ctx, f.admin, dto.ExportRequestsQuery{Status: "closed"})
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = svc.ExportRequests(ctx, f.admin, dto.ExportRequestsQuery{Format: "xlsx"})
	requireAppError(t, err, appErrors.ErrValidation)

	empty, err := svc.ExportRequests(ctx, f.admin, dto.ExportRequestsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Rows)
}
