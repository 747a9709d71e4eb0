package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/pkg/response"
)

type reportService interface {
	ExportRequests(ctx context.Context, session models.Session, query dto.ExportRequestsQuery) (*dto.ExportResult, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// ExportRequests godoc
// @Summary Export mic requests or complaints
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param kind query string false "mic_request (default) or complaint"
// @Param status query string false "pending, approved or denied"
// @Param event_id query string false "Event ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/requests [get]
func (h *ReportHandler) ExportRequests(c *gin.Context) {
	session, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var query dto.ExportRequestsQuery
	if !bindQuery(c, &query) {
		return
	}
	result, err := h.service.ExportRequests(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Report-Rows", strconv.Itoa(result.Rows))
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
