package registration

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

type Status string

const (
	StatusRegistered Status = "Registered"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// RosterEntry is an immutable contact snapshot captured when the team
// registered. Later profile edits do not alter it.
type RosterEntry struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	RollNumber string `json:"rollNumber,omitempty"`
}

// Registration is the single event registration produced for a
// completed team. Owned by the team leader.
type Registration struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participantId"`
	EventID       string        `json:"eventId"`
	TeamName      string        `json:"teamName"`
	TeamMembers   []RosterEntry `json:"teamMembers"`
	TicketID      string        `json:"ticketId"`
	QRCode        string        `json:"qrCode"`
	QRCodeURL     string        `json:"qrCodeUrl,omitempty"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	RegisteredAt  time.Time     `json:"registeredAt"`
}
