package dto

// SubmitFeedbackRequest is the POST /feedback payload. An empty event_id files general feedback.
type SubmitFeedbackRequest struct {
	EventID string `json:"event_id"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// FeedbackListQuery mirrors GET /feedback filters. Search matches the author name, event title and comment.
type FeedbackListQuery struct {
	EventID  string `form:"event_id"`
	Rating   int    `form:"rating" validate:"omitempty,min=1,max=5"`
	Search   string `form:"q"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// FeedbackSummaryQuery scopes GET /feedback/summary to one event.
type FeedbackSummaryQuery struct {
	EventID string `form:"event_id"`
}

// RatingShare is one star level of the distribution.
type RatingShare struct {
	Rating  int `json:"rating"`
	Count   int `json:"count"`
	Percent int `json:"percent"`
}

// FeedbackSummary aggregates ratings. Distribution is ordered from five stars down.
type FeedbackSummary struct {
	Total        int           `json:"total"`
	Average      float64       `json:"average"`
	MostCommon   int           `json:"most_common"`
	Distribution []RatingShare `json:"distribution"`
}
