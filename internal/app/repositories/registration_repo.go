package repositories

import (
	"context"
	"errors"
	"sync"

	"github.com/evently/evently-api/internal/domain/registration"
	"github.com/evently/evently-api/internal/domain/team"
)

var ErrRegistrationNotFound = errors.New("registration not found")

// RegistrationRepository persists team registrations. Commit is the
// registration bridge's unit of work: create the registration, bump the
// event counter and stamp the team registered, all or nothing.
type RegistrationRepository interface {
	Commit(ctx context.Context, t *team.Team, reg *registration.Registration) error
	GetByID(ctx context.Context, id string) (*registration.Registration, error)
}

type inMemoryRegistrationRepo struct {
	mu            sync.RWMutex
	registrations map[string]*registration.Registration

	teams  TeamRepository
	events EventRepository
}

// NewInMemoryRegistrationRepo needs the team and event repositories to
// apply the cross-entity commit; failures are compensated step by step.
func NewInMemoryRegistrationRepo(teams TeamRepository, events EventRepository) RegistrationRepository {
	return &inMemoryRegistrationRepo{
		registrations: make(map[string]*registration.Registration),
		teams:         teams,
		events:        events,
	}
}

func cloneRegistration(reg *registration.Registration) *registration.Registration {
	cp := *reg
	cp.TeamMembers = append([]registration.RosterEntry(nil), reg.TeamMembers...)
	return &cp
}

func (r *inMemoryRegistrationRepo) Commit(ctx context.Context, t *team.Team, reg *registration.Registration) error {
	r.mu.Lock()
	r.registrations[reg.ID] = cloneRegistration(reg)
	r.mu.Unlock()

	stamped := *t
	stamped.RegistrationID = reg.ID
	stamped.Status = team.StatusRegistered
	if err := r.teams.Update(ctx, &stamped); err != nil {
		r.mu.Lock()
		delete(r.registrations, reg.ID)
		r.mu.Unlock()
		return err
	}

	// Counter last: it must never move without a registration existing.
	if err := r.events.IncrementRegistrations(ctx, t.EventID); err != nil {
		_ = r.teams.Update(ctx, t)
		r.mu.Lock()
		delete(r.registrations, reg.ID)
		r.mu.Unlock()
		return err
	}

	t.RegistrationID = reg.ID
	t.Status = team.StatusRegistered
	return nil
}

func (r *inMemoryRegistrationRepo) GetByID(ctx context.Context, id string) (*registration.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return cloneRegistration(reg), nil
}
