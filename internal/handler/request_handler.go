package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/pkg/response"
)

type requestService interface {
	SubmitMicRequest(ctx context.Context, session models.Session, req dto.SubmitMicRequest) (*models.MicRequest, error)
	SubmitComplaint(ctx context.Context, session models.Session, req dto.SubmitComplaintRequest) (*models.Complaint, error)
	ListMicRequests(ctx context.Context, session models.Session, query dto.RequestListQuery) ([]models.MicRequest, *models.Pagination, error)
	ListComplaints(ctx context.Context, session models.Session, query dto.RequestListQuery) ([]models.Complaint, *models.Pagination, error)
	GetMicRequest(ctx context.Context, session models.Session, id string) (*models.MicRequest, error)
	GetComplaint(ctx context.Context, session models.Session, id string) (*models.Complaint, error)
	Transition(ctx context.Context, session models.Session, kind models.RequestKind, id string, req dto.TransitionRequest) (*dto.TransitionResult, error)
}

// RequestHandler serves mic requests and complaints.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(svc requestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// SubmitMic godoc
// @Summary Request the microphone
// @Tags Mic Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitMicRequest true "Mic request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mic-requests [post]
func (h *RequestHandler) SubmitMic(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req dto.SubmitMicRequest
	if !bindJSON(c, &req, "invalid mic request payload") {
		return
	}
	created, err := h.service.SubmitMicRequest(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListMic godoc
// @Summary List mic requests
// @Description Attendees only ever see their own requests
// @Tags Mic Requests
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Event ID"
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param mine query bool false "Only the caller's requests"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mic-requests [get]
func (h *RequestHandler) ListMic(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var query dto.RequestListQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.service.ListMicRequests(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetMic godoc
// @Summary Get a mic request
// @Tags Mic Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mic request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mic-requests/{id} [get]
func (h *RequestHandler) GetMic(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	item, err := h.service.GetMicRequest(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// TransitionMic godoc
// @Summary Approve or deny a mic request
// @Tags Mic Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mic request ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mic-requests/{id}/transition [post]
func (h *RequestHandler) TransitionMic(c *gin.Context) {
	h.transition(c, models.RequestKindMic)
}

// SubmitComplaint godoc
// @Summary File a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitComplaintRequest true "Complaint"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /complaints [post]
func (h *RequestHandler) SubmitComplaint(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req dto.SubmitComplaintRequest
	if !bindJSON(c, &req, "invalid complaint payload") {
		return
	}
	created, err := h.service.SubmitComplaint(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListComplaints godoc
// @Summary List complaints
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Event ID"
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param mine query bool false "Only the caller's complaints"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *RequestHandler) ListComplaints(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var query dto.RequestListQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.service.ListComplaints(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetComplaint godoc
// @Summary Get a complaint
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *RequestHandler) GetComplaint(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	item, err := h.service.GetComplaint(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// TransitionComplaint godoc
// @Summary Acknowledge or dismiss a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/transition [post]
func (h *RequestHandler) TransitionComplaint(c *gin.Context) {
	h.transition(c, models.RequestKindComplaint)
}

func (h *RequestHandler) transition(c *gin.Context, kind models.RequestKind) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !bindJSON(c, &req, "status is required") {
		return
	}
	result, err := h.service.Transition(c.Request.Context(), session, kind, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
