package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/evently/evently-api/internal/domain/chat"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists chat messages. Messages are never removed
// through normal operation; SoftDelete only hides them from history.
type MessageRepository interface {
	Create(ctx context.Context, m *chat.Message) error
	GetByID(ctx context.Context, id string) (*chat.Message, error)

	// History returns non-deleted messages in chronological order.
	History(ctx context.Context, q chat.HistoryQuery) ([]*chat.Message, error)

	// AppendReadReceipt adds a receipt unless one already exists for the
	// participant. Reports whether a receipt was actually appended.
	AppendReadReceipt(ctx context.Context, messageID, participantID string, at time.Time) (bool, error)

	// MarkRead appends receipts for the given team-scoped messages,
	// skipping messages already read by the participant.
	MarkRead(ctx context.Context, teamID string, messageIDs []string, participantID string, at time.Time) error

	// UnreadCount counts non-deleted messages in the team not sent by
	// and not yet read by the participant.
	UnreadCount(ctx context.Context, teamID, participantID string) (int64, error)

	SoftDelete(ctx context.Context, messageID string) error
}

type inMemoryMessageRepo struct {
	mu       sync.RWMutex
	messages map[string]*chat.Message
}

func NewInMemoryMessageRepo() MessageRepository {
	return &inMemoryMessageRepo{messages: make(map[string]*chat.Message)}
}

func cloneMessage(m *chat.Message) *chat.Message {
	cp := *m
	cp.ReadBy = append([]chat.ReadReceipt(nil), m.ReadBy...)
	return &cp
}

func (r *inMemoryMessageRepo) Create(ctx context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID] = cloneMessage(m)
	return nil
}

func (r *inMemoryMessageRepo) GetByID(ctx context.Context, id string) (*chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

func (r *inMemoryMessageRepo) History(ctx context.Context, q chat.HistoryQuery) ([]*chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.TeamID != q.TeamID || m.IsDeleted {
			continue
		}
		if !q.Before.IsZero() && !m.CreatedAt.Before(q.Before) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	// Newest-first to apply the limit, then reversed to chronological.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *inMemoryMessageRepo) AppendReadReceipt(ctx context.Context, messageID, participantID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return false, ErrMessageNotFound
	}
	if m.IsReadBy(participantID) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, chat.ReadReceipt{ParticipantID: participantID, ReadAt: at})
	return true, nil
}

func (r *inMemoryMessageRepo) MarkRead(ctx context.Context, teamID string, messageIDs []string, participantID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range messageIDs {
		m, ok := r.messages[id]
		if !ok || m.TeamID != teamID || m.IsReadBy(participantID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, chat.ReadReceipt{ParticipantID: participantID, ReadAt: at})
	}
	return nil
}

func (r *inMemoryMessageRepo) UnreadCount(ctx context.Context, teamID, participantID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, m := range r.messages {
		if m.TeamID != teamID || m.IsDeleted || m.SenderID == participantID {
			continue
		}
		if !m.IsReadBy(participantID) {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryMessageRepo) SoftDelete(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	m.IsDeleted = true
	return nil
}
