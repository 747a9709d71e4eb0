package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
	"github.com/noah-isme/confhub-api/pkg/logger"
)

type stubAuthenticator struct {
	sessions map[string]*models.Session
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*models.Session, error) {
	if session, ok := s.sessions[token]; ok {
		return session, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type errorBody struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newAuthEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := stubAuthenticator{sessions: map[string]*models.Session{
		"admin-token":     {UserID: "admin-1", Role: models.RoleAdmin},
		"organizer-token": {UserID: "org-1", Role: models.RoleOrganizer},
		"attendee-token":  {UserID: "user-1", Role: models.RoleAttendee},
	}}
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(auth)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		session, _ := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"user": session.UserID, "logged_as": c.GetString(logger.UserIDKey)})
	})
	r.GET("/users/:id", chain...)
	return r
}

func perform(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newAuthEngine()

	rec := perform(r, "/users/user-1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = perform(r, "/users/user-1", "nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTStoresSession(t *testing.T) {
	r := newAuthEngine()

	rec := perform(r, "/users/user-1", "attendee-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body["user"])
	assert.Equal(t, "user-1", body["logged_as"])
}

func TestRBACRolesAndSelf(t *testing.T) {
	r := newAuthEngine(RBAC(string(models.RoleAdmin), SelfKeyword))

	assert.Equal(t, http.StatusOK, perform(r, "/users/user-1", "admin-token").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/users/user-1", "attendee-token").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "/users/someone-else", "attendee-token").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "/users/user-1", "organizer-token").Code)
}

func TestRequireModerator(t *testing.T) {
	r := newAuthEngine(RequireModerator())

	assert.Equal(t, http.StatusOK, perform(r, "/users/x", "admin-token").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/users/x", "organizer-token").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "/users/x", "attendee-token").Code)
}

func TestRBACWithoutSessionIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireModerator(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, perform(r, "/x", "").Code)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := stubAuthenticator{sessions: map[string]*models.Session{"ok": {UserID: "u1"}}}
	r := gin.New()
	r.GET("/x", OptionalJWT(auth), func(c *gin.Context) {
		_, ok := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	assert.JSONEq(t, `{"authenticated":false}`, perform(r, "/x", "").Body.String())
	assert.JSONEq(t, `{"authenticated":false}`, perform(r, "/x", "bad").Body.String())
	assert.JSONEq(t, `{"authenticated":true}`, perform(r, "/x", "ok").Body.String())
}

type recordingAuditWriter struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (w *recordingAuditWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logs = append(w.logs, *log)
	return nil
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	writer := &recordingAuditWriter{}
	r := newAuthEngine(Audit(writer, nil, models.AuditActionReportExport, "reports"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.AbortWithStatus(http.StatusBadRequest)
		}
	})

	require.Equal(t, http.StatusOK, perform(r, "/users/abc?kind=complaint", "organizer-token").Code)
	require.Equal(t, http.StatusBadRequest, perform(r, "/users/abc?fail=1", "organizer-token").Code)

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, models.AuditActionReportExport, entry.Action)
	assert.Equal(t, "reports", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "org-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "abc", *entry.ResourceID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &details))
	assert.Equal(t, "kind=complaint", details["query"])
	assert.Equal(t, "/users/:id", details["path"])
}
