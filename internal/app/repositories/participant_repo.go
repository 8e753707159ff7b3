package repositories

import (
	"context"
	"errors"
	"sync"

	"github.com/evently/evently-api/internal/domain/participant"
)

var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepository is the directory lookup used for roster
// snapshots and sender display names.
type ParticipantRepository interface {
	Put(ctx context.Context, p *participant.Participant) error
	GetByID(ctx context.Context, id string) (*participant.Participant, error)
	ListByIDs(ctx context.Context, ids []string) ([]*participant.Participant, error)
}

type inMemoryParticipantRepo struct {
	mu           sync.RWMutex
	participants map[string]*participant.Participant
}

func NewInMemoryParticipantRepo() ParticipantRepository {
	return &inMemoryParticipantRepo{participants: make(map[string]*participant.Participant)}
}

func (r *inMemoryParticipantRepo) Put(ctx context.Context, p *participant.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.participants[p.ID] = &cp
	return nil
}

func (r *inMemoryParticipantRepo) GetByID(ctx context.Context, id string) (*participant.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryParticipantRepo) ListByIDs(ctx context.Context, ids []string) ([]*participant.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*participant.Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.participants[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}
