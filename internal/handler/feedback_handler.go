package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/pkg/response"
)

type feedbackService interface {
	Submit(ctx context.Context, session models.Session, req dto.SubmitFeedbackRequest) (*models.Feedback, error)
	List(ctx context.Context, session models.Session, query dto.FeedbackListQuery) ([]models.Feedback, *models.Pagination, error)
	Summary(ctx context.Context, session models.Session, query dto.FeedbackSummaryQuery) (*dto.FeedbackSummary, bool, error)
}

// FeedbackHandler serves star ratings.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(svc feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit godoc
// @Summary Rate the conference or one event
// @Tags Feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitFeedbackRequest true "Feedback"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req dto.SubmitFeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}
	created, err := h.service.Submit(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List feedback
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Event ID"
// @Param rating query int false "Exact rating (1-5)"
// @Param q query string false "Matches author, event title or comment"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /feedback [get]
func (h *FeedbackHandler) List(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var query dto.FeedbackListQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Summary godoc
// @Summary Rating distribution and average
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /feedback/summary [get]
func (h *FeedbackHandler) Summary(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var query dto.FeedbackSummaryQuery
	if !bindQuery(c, &query) {
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, cacheMeta(c, cacheHit))
}
