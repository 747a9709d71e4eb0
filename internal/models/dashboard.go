package models

import "time"

// StatusCount is a grouped row count.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// DashboardSummary aggregates platform activity.
type DashboardSummary struct {
	Events        map[string]int `json:"events"`
	MicRequests   map[string]int `json:"mic_requests"`
	Complaints    map[string]int `json:"complaints"`
	Registrations int            `json:"registrations"`
	CheckIns      int            `json:"check_ins"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// LeaderboardEntry ranks an attendee by participation.
type LeaderboardEntry struct {
	Rank                int    `db:"-" json:"rank"`
	UserID              string `db:"user_id" json:"user_id"`
	Name                string `db:"name" json:"name"`
	CheckIns            int    `db:"check_ins" json:"check_ins"`
	ApprovedMicRequests int    `db:"approved_mic_requests" json:"approved_mic_requests"`
}
