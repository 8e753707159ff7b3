package team

import "time"

type ID string

// MemberStatus tracks how a participant relates to a team they were
// added to. Joins via invite code are accepted immediately; pending and
// declined exist for the invitation records kept on older teams.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberAccepted MemberStatus = "accepted"
	MemberDeclined MemberStatus = "declined"
)

// Status is the team lifecycle state. Registered is terminal.
type Status string

const (
	StatusForming    Status = "forming"
	StatusComplete   Status = "complete"
	StatusRegistered Status = "registered"
)

// Member is one non-leader participant on a team. The leader is stored
// on the team itself and never appears in the member list.
type Member struct {
	ParticipantID string       `json:"participantId"`
	Status        MemberStatus `json:"status"`
	InvitedAt     time.Time    `json:"invitedAt"`
	RespondedAt   *time.Time   `json:"respondedAt,omitempty"`
}

type Team struct {
	ID             ID         `json:"id"`
	EventID        string     `json:"eventId"`
	Name           string     `json:"teamName"`
	LeaderID       string     `json:"teamLeaderId"`
	TeamSize       int        `json:"teamSize"`
	InviteCode     string     `json:"inviteCode"`
	InviteLink     string     `json:"inviteLink"`
	Members        []Member   `json:"members"`
	Status         Status     `json:"status"`
	RegistrationID string     `json:"registrationId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// AcceptedCount counts the leader plus accepted members. Computed on
// read from the member list, never stored.
func (t *Team) AcceptedCount() int {
	n := 1
	for _, m := range t.Members {
		if m.Status == MemberAccepted {
			n++
		}
	}
	return n
}

// IsFull reports whether the accepted headcount meets the target size.
func (t *Team) IsFull() bool {
	return t.AcceptedCount() >= t.TeamSize
}

// MemberByParticipant returns the membership entry for a participant,
// or nil. The leader has no entry.
func (t *Team) MemberByParticipant(participantID string) *Member {
	for i := range t.Members {
		if t.Members[i].ParticipantID == participantID {
			return &t.Members[i]
		}
	}
	return nil
}

// HasParticipant reports whether the participant is the leader or holds
// a membership entry of any status.
func (t *Team) HasParticipant(participantID string) bool {
	return t.LeaderID == participantID || t.MemberByParticipant(participantID) != nil
}

// IsChatMember reports whether the participant may access the team's
// chat room: the leader or an accepted member.
func (t *Team) IsChatMember(participantID string) bool {
	if t.LeaderID == participantID {
		return true
	}
	m := t.MemberByParticipant(participantID)
	return m != nil && m.Status == MemberAccepted
}

// CreateTeamInput is the request body for team creation.
type CreateTeamInput struct {
	EventID  string `json:"eventId"`
	TeamName string `json:"teamName"`
	TeamSize int    `json:"teamSize"`
}
