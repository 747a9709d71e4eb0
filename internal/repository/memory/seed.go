package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/confhub-api/internal/models"
)

// DemoPassword is the password of every seeded profile.
const DemoPassword = "confhub-demo"

// Seed loads demo profiles, events and registrations.
func Seed(s *Store) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := []models.User{
		{Email: "admin@confhub.dev", Name: "Avery Admin", Role: models.RoleAdmin},
		{Email: "organizer@confhub.dev", Name: "Olive Organizer", Role: models.RoleOrganizer},
		{Email: "attendee@confhub.dev", Name: "Sam Attendee", Role: models.RoleAttendee},
		{Email: "guest@confhub.dev", Name: "Riley Guest", Role: models.RoleAttendee},
	}
	for i := range profiles {
		p := profiles[i]
		p.ID = uuid.NewString()
		p.PasswordHash = string(hash)
		p.CreatedAt = now
		p.UpdatedAt = now
		s.profiles[p.ID] = p
		profiles[i] = p
	}
	organizer := profiles[1].ID

	day := now.Format(models.EventDateLayout)
	events := []models.Event{
		{Title: "Opening Keynote", Description: "State of the community.", Date: day, Time: "09:00", Venue: "Main Hall", Capacity: 500, Status: models.EventStatusOngoing, Speakers: []string{"Dana Lee"}},
		{Title: "Cloud Native Panel", Description: "Operators in production.", Date: now.Add(24 * time.Hour).Format(models.EventDateLayout), Time: "14:00", Venue: "Room B", Capacity: 120, Status: models.EventStatusUpcoming, Speakers: []string{"Priya Shah", "Tom Berg"}},
		{Title: "Welcome Reception", Description: "Evening meetup.", Date: now.Add(-24 * time.Hour).Format(models.EventDateLayout), Time: "18:30", Venue: "Terrace", Capacity: 80, Status: models.EventStatusCompleted},
	}
	for i := range events {
		e := events[i]
		e.ID = uuid.NewString()
		e.CreatedBy = strPtr(organizer)
		e.CreatedAt = now
		e.UpdatedAt = now
		s.events[e.ID] = e
		events[i] = e
	}

	for _, p := range profiles[2:] {
		key := attendeeKey{eventID: events[0].ID, userID: p.ID}
		s.attendees[key] = models.EventAttendee{EventID: events[0].ID, UserID: p.ID, RegisteredAt: now}
	}
	return nil
}
