package chat

import "time"

type MessageType string

const (
	TypeText   MessageType = "text"
	TypeFile   MessageType = "file"
	TypeLink   MessageType = "link"
	TypeSystem MessageType = "system"
)

// ReadReceipt marks a message as read by one participant. Append-only,
// at most one entry per participant.
type ReadReceipt struct {
	ParticipantID string    `json:"participantId"`
	ReadAt        time.Time `json:"readAt"`
}

// Message is a persisted chat message. SenderName is denormalized at
// send time and never recomputed. Soft-deleted messages keep their
// record but are hidden from history queries.
type Message struct {
	ID         string        `json:"id"`
	TeamID     string        `json:"teamId"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName"`
	Type       MessageType   `json:"messageType"`
	Content    string        `json:"content"`
	FileURL    string        `json:"fileUrl,omitempty"`
	FileName   string        `json:"fileName,omitempty"`
	FileSize   int64         `json:"fileSize,omitempty"`
	LinkURL    string        `json:"linkUrl,omitempty"`
	LinkTitle  string        `json:"linkTitle,omitempty"`
	ReadBy     []ReadReceipt `json:"readBy"`
	IsDeleted  bool          `json:"isDeleted"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// IsReadBy reports whether the participant already has a read receipt.
func (m *Message) IsReadBy(participantID string) bool {
	for _, r := range m.ReadBy {
		if r.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// SendMessageInput carries the payload of a send-message event or an
// upload-created message.
type SendMessageInput struct {
	TeamID    string      `json:"teamId"`
	Type      MessageType `json:"messageType"`
	Content   string      `json:"content"`
	FileURL   string      `json:"fileUrl,omitempty"`
	FileName  string      `json:"fileName,omitempty"`
	FileSize  int64       `json:"fileSize,omitempty"`
	LinkURL   string      `json:"linkUrl,omitempty"`
	LinkTitle string      `json:"linkTitle,omitempty"`
}

// HistoryQuery selects a chronological page of non-deleted messages.
// Before is exclusive; zero means "latest".
type HistoryQuery struct {
	TeamID string
	Limit  int
	Before time.Time
}
