package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is a star rating with an optional comment. EventID is nil for general feedback.
type Feedback struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	EventID    *string   `db:"event_id" json:"event_id,omitempty"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    string    `db:"comment" json:"comment"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UserName   string    `db:"user_name" json:"user_name,omitempty"`
	EventTitle *string   `db:"event_title" json:"event_title,omitempty"`
}

// FeedbackFilter constrains feedback listings. Zero values disable a criterion.
type FeedbackFilter struct {
	EventID  string
	Rating   int
	Search   string
	Page     int
	PageSize int
}

// RatingCount is one row of the rating histogram.
type RatingCount struct {
	Rating int `db:"rating"`
	Count  int `db:"count"`
}
