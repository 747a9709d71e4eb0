package dto

// ExportRequestsQuery mirrors GET /reports/requests filters.
type ExportRequestsQuery struct {
	Kind    string `form:"kind"`
	Status  string `form:"status"`
	EventID string `form:"event_id"`
	Format  string `form:"format"`
}

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}
