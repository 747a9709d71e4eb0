package dto

import "github.com/noah-isme/confhub-api/internal/models"

// EventRequest is the payload for creating or replacing an event.
type EventRequest struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description" validate:"max=4000"`
	Date        string             `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string             `json:"time" validate:"required,datetime=15:04"`
	Venue       string             `json:"venue" validate:"required,max=200"`
	Capacity    int                `json:"capacity" validate:"required,gt=0"`
	Status      models.EventStatus `json:"status" validate:"omitempty,event_status"`
	Speakers    []string           `json:"speakers" validate:"omitempty,dive,required,max=120"`
}

// EventStatusRequest changes only the event status.
type EventStatusRequest struct {
	Status models.EventStatus `json:"status" validate:"required,event_status"`
}

// EventListQuery mirrors GET /events filters.
type EventListQuery struct {
	Status   string `form:"status"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
