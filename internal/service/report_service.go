package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/dto"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
	"github.com/noah-isme/confhub-api/pkg/export"
)

type reportRequestSource interface {
	ListMicRequests(ctx context.Context, filter models.RequestFilter) ([]models.MicRequest, int, error)
	ListComplaints(ctx context.Context, filter models.RequestFilter) ([]models.Complaint, int, error)
}

const (
	reportPageSize = 500
	reportMaxRows  = 10000
)

// ReportService renders request exports for moderators.
type ReportService struct {
	requests reportRequestSource
	events   eventReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs the service.
func NewReportService(requests reportRequestSource, events eventReader, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{requests: requests, events: events, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ExportRequests renders mic requests or complaints as CSV or PDF.
func (s *ReportService) ExportRequests(ctx context.Context, session models.Session, query dto.ExportRequestsQuery) (*dto.ExportResult, error) {
	if !session.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and organizers can export reports")
	}
	kind := models.RequestKind(strings.ToLower(strings.TrimSpace(query.Kind)))
	if kind == "" {
		kind = models.RequestKindMic
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be mic_request or complaint")
	}
	filter := models.RequestFilter{EventID: strings.TrimSpace(query.EventID), PageSize: reportPageSize}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := models.RequestStatus(strings.ToLower(raw))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = []models.RequestStatus{status}
	}
	exporter, err := export.ForFormat(export.Format(strings.ToLower(strings.TrimSpace(query.Format))))
	if err != nil {
		return nil, appErrors.Validation(err, "format must be csv or pdf")
	}

	var dataset export.Dataset
	if kind == models.RequestKindComplaint {
		dataset, err = s.complaintDataset(ctx, filter)
	} else {
		dataset, err = s.micDataset(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	data, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	filename := fmt.Sprintf("%s_%s.%s", kind.Table(), s.now().Format("20060102_150405"), exporter.Extension())
	s.logger.Info("request report exported", zap.String("kind", string(kind)), zap.Int("rows", len(dataset.Rows)), zap.String("user_id", session.UserID))
	return &dto.ExportResult{Filename: filename, ContentType: exporter.ContentType(), Data: data, Rows: len(dataset.Rows)}, nil
}

func (s *ReportService) micDataset(ctx context.Context, filter models.RequestFilter) (export.Dataset, error) {
	dataset := export.Dataset{
		Title:   "Mic Requests",
		Headers: []string{"ID", "Event", "User", "Reason", "Status", "Created At", "Reviewed At"},
	}
	titles := map[string]string{}
	for page := 1; len(dataset.Rows) < reportMaxRows; page++ {
		filter.Page = page
		items, total, err := s.requests.ListMicRequests(ctx, filter)
		if err != nil {
			return dataset, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mic requests")
		}
		for _, m := range items {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"ID":          m.ID,
				"Event":       s.title(ctx, titles, m.EventID),
				"User":        m.UserID,
				"Reason":      m.Reason,
				"Status":      string(m.Status),
				"Created At":  m.CreatedAt.UTC().Format(time.RFC3339),
				"Reviewed At": formatReportTime(m.ReviewedAt),
			})
		}
		if len(items) == 0 || page*filter.PageSize >= total {
			break
		}
	}
	return dataset, nil
}

func (s *ReportService) complaintDataset(ctx context.Context, filter models.RequestFilter) (export.Dataset, error) {
	dataset := export.Dataset{
		Title:   "Complaints",
		Headers: []string{"ID", "Event", "User", "Issue Type", "Description", "Status", "Created At", "Reviewed At"},
	}
	titles := map[string]string{}
	for page := 1; len(dataset.Rows) < reportMaxRows; page++ {
		filter.Page = page
		items, total, err := s.requests.ListComplaints(ctx, filter)
		if err != nil {
			return dataset, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaints")
		}
		for _, c := range items {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"ID":          c.ID,
				"Event":       s.title(ctx, titles, c.EventID),
				"User":        c.UserID,
				"Issue Type":  c.IssueType,
				"Description": c.Description,
				"Status":      string(c.Status),
				"Created At":  c.CreatedAt.UTC().Format(time.RFC3339),
				"Reviewed At": formatReportTime(c.ReviewedAt),
			})
		}
		if len(items) == 0 || page*filter.PageSize >= total {
			break
		}
	}
	return dataset, nil
}

func (s *ReportService) title(ctx context.Context, cache map[string]string, eventID string) string {
	if t, ok := cache[eventID]; ok {
		return t
	}
	t := eventID
	if event, err := s.events.GetByID(ctx, eventID); err == nil {
		t = event.Title
	}
	cache[eventID] = t
	return t
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
