package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confhub-api/internal/models"
)

var micCols = []string{"id", "event_id", "user_id", "reason", "status", "reviewed_by", "reviewed_at", "created_at", "updated_at"}

func sampleTransition(kind models.RequestKind) models.Transition {
	now := time.Now().UTC()
	ref := "req-1"
	sender := "admin-1"
	n := models.Notification{ID: "n-1", UserID: "u1", SenderID: &sender, Title: "Mic Request Approved", Type: kind.NotificationType(), ReferenceID: &ref, CreatedAt: now}
	return models.Transition{
		Kind:         kind,
		RequestID:    ref,
		To:           models.RequestStatusApproved,
		ActorID:      sender,
		At:           now,
		Notification: n,
		Delivery:     models.NewDelivery("d-1", n, now),
	}
}

func TestRequestRepositoryCreateMicRequest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO mic_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.MicRequest{EventID: "e1", UserID: "u1", Reason: "Q&A"}
	require.NoError(t, repo.CreateMicRequest(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, req.CreatedAt, req.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCreateDuplicateActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO complaints").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "complaints_active_uniq"})

	err := repo.CreateComplaint(context.Background(), &models.Complaint{EventID: "e1", UserID: "u1", IssueType: models.IssueAudio, Description: "hum"})
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestRequestRepositoryListMicRequestsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mic_requests WHERE user_id = $1 AND status IN ($2,$3) ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WithArgs("u1", models.RequestStatusPending, models.RequestStatusApproved).
		WillReturnRows(sqlmock.NewRows(micCols).AddRow("r1", "e1", "u1", "Q&A", "pending", nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM mic_requests WHERE user_id = $1")).
		WithArgs("u1", models.RequestStatusPending, models.RequestStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListMicRequests(context.Background(), models.RequestFilter{UserID: "u1", Status: models.ActiveRequestStatuses})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, models.RequestStatusPending, items[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryHasActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM complaints WHERE user_id = $1 AND event_id = $2 AND status IN ($3, $4))")).
		WithArgs("u1", "e1", models.RequestStatusPending, models.RequestStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := repo.HasActive(context.Background(), models.RequestKindComplaint, "u1", "e1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRequestRepositoryGetRef(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, user_id, status FROM complaints WHERE id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).AddRow("c1", "e1", "u1", "pending"))

	ref, err := repo.GetRef(context.Background(), models.RequestKindComplaint, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestKindComplaint, ref.Kind)
	assert.Equal(t, "u1", ref.UserID)

	mock.ExpectQuery("FROM mic_requests WHERE id").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetRef(context.Background(), models.RequestKindMic, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryApplyTransitionCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)
	tr := sampleTransition(models.RequestKindMic)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mic_requests SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $3 WHERE id = $4 AND status = $5")).
		WithArgs(models.RequestStatusApproved, "admin-1", tr.At, "req-1", models.RequestStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notification_deliveries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyTransition(context.Background(), tr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApplyTransitionCASMiss(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE complaints SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), sampleTransition(models.RequestKindComplaint))
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApplyTransitionRollsBackOnNotificationFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE mic_requests SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), sampleTransition(models.RequestKindMic))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
