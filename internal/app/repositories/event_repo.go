package repositories

import (
	"context"
	"errors"
	"sync"

	"github.com/evently/evently-api/internal/domain/event"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository is the slice of the event catalog this service
// consumes: lookup plus the atomic registration-counter increment.
type EventRepository interface {
	Put(ctx context.Context, e *event.Event) error
	GetByID(ctx context.Context, id string) (*event.Event, error)
	IncrementRegistrations(ctx context.Context, id string) error
}

type inMemoryEventRepo struct {
	mu     sync.RWMutex
	events map[string]*event.Event
}

func NewInMemoryEventRepo() EventRepository {
	return &inMemoryEventRepo{events: make(map[string]*event.Event)}
}

func (r *inMemoryEventRepo) Put(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.events[e.ID] = &cp
	return nil
}

func (r *inMemoryEventRepo) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryEventRepo) IncrementRegistrations(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.CurrentRegistrations++
	return nil
}
