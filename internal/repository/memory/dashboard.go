package memory

import (
	"context"
	"sort"

	"github.com/noah-isme/confhub-api/internal/models"
)

// DashboardRepository computes dashboard aggregates from the in-memory tables.
type DashboardRepository struct {
	s *Store
}

func toStatusCounts(counts map[string]int) []models.StatusCount {
	out := make([]models.StatusCount, 0, len(counts))
	for status, count := range counts {
		out = append(out, models.StatusCount{Status: status, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

func (r *DashboardRepository) CountEventsByStatus(_ context.Context) ([]models.StatusCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[string]int{}
	for _, e := range r.s.events {
		counts[string(e.Status)]++
	}
	return toStatusCounts(counts), nil
}

func (r *DashboardRepository) CountRequestsByStatus(_ context.Context, kind models.RequestKind) ([]models.StatusCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[string]int{}
	if kind == models.RequestKindComplaint {
		for _, c := range r.s.complaints {
			counts[string(c.Status)]++
		}
	} else {
		for _, m := range r.s.micRequests {
			counts[string(m.Status)]++
		}
	}
	return toStatusCounts(counts), nil
}

func (r *DashboardRepository) CountRegistrations(_ context.Context) (int, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	checkedIn := 0
	for _, a := range r.s.attendees {
		if a.CheckedIn {
			checkedIn++
		}
	}
	return len(r.s.attendees), checkedIn, nil
}

func (r *DashboardRepository) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entries := make([]models.LeaderboardEntry, 0)
	for _, p := range r.s.profiles {
		if p.Role != models.RoleAttendee {
			continue
		}
		entry := models.LeaderboardEntry{UserID: p.ID, Name: p.Name}
		for k, a := range r.s.attendees {
			if k.userID == p.ID && a.CheckedIn {
				entry.CheckIns++
			}
		}
		for _, m := range r.s.micRequests {
			if m.UserID == p.ID && m.Status == models.RequestStatusApproved {
				entry.ApprovedMicRequests++
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CheckIns != b.CheckIns {
			return a.CheckIns > b.CheckIns
		}
		if a.ApprovedMicRequests != b.ApprovedMicRequests {
			return a.ApprovedMicRequests > b.ApprovedMicRequests
		}
		return a.Name < b.Name
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
