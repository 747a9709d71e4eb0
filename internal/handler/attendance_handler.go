package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/middleware"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/pkg/response"
)

type attendanceService interface {
	Register(ctx context.Context, session models.Session, eventID string) (*models.EventAttendee, error)
	Cancel(ctx context.Context, session models.Session, eventID string) error
	ListAttendees(ctx context.Context, session models.Session, eventID string) ([]models.EventAttendee, error)
	IssueCheckInToken(ctx context.Context, session models.Session, eventID string) (*dto.CheckInTokenResponse, error)
	CheckIn(ctx context.Context, session models.Session, req dto.CheckInRequest) (*dto.CheckInResponse, error)
}

// AttendanceHandler covers registration and QR check-in.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Register godoc
// @Summary Register for an event
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/register [post]
func (h *AttendanceHandler) Register(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	attendee, err := h.service.Register(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attendee)
}

// Cancel godoc
// @Summary Cancel a registration
// @Tags Attendance
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id}/register [delete]
func (h *AttendanceHandler) Cancel(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), session, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAttendees godoc
// @Summary List event attendees
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendees [get]
func (h *AttendanceHandler) ListAttendees(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	items, err := h.service.ListAttendees(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "total", len(items))
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}

// IssueToken godoc
// @Summary Issue a QR check-in token
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/checkin-token [post]
func (h *AttendanceHandler) IssueToken(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	token, err := h.service.IssueCheckInToken(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}

// CheckIn godoc
// @Summary Check an attendee in from a scanned token
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CheckInRequest true "Scanned token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /checkins [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req dto.CheckInRequest
	if !bindJSON(c, &req, "token is required") {
		return
	}
	result, err := h.service.CheckIn(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
