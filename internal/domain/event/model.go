package event

import "time"

// Event is the slice of the event catalog the team subsystem consumes.
// Event CRUD and publishing live elsewhere; this service only reads the
// team configuration and bumps the registration counter.
type Event struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"eventName"`
	IsTeamEvent          bool      `json:"isTeamEvent"`
	MinTeamSize          int       `json:"minTeamSize"`
	MaxTeamSize          int       `json:"maxTeamSize"`
	RegistrationFee      float64   `json:"registrationFee"`
	OrganizerID          string    `json:"organizerId"`
	CurrentRegistrations int       `json:"currentRegistrations"`
	StartDate            time.Time `json:"eventStartDate"`
	EndDate              time.Time `json:"eventEndDate"`
}

// Summary is the denormalized shape embedded in team reads.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"eventName"`
	StartDate   time.Time `json:"eventStartDate"`
	EndDate     time.Time `json:"eventEndDate"`
	MinTeamSize int       `json:"minTeamSize"`
	MaxTeamSize int       `json:"maxTeamSize"`
}

func (e *Event) Summary() Summary {
	return Summary{
		ID:          e.ID,
		Name:        e.Name,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		MinTeamSize: e.MinTeamSize,
		MaxTeamSize: e.MaxTeamSize,
	}
}
