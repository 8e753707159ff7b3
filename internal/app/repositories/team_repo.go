package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/evently/evently-api/internal/domain/team"
)

var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrInviteCodeNotFound = errors.New("invalid invite code")
	ErrTeamFull           = errors.New("team is already full")
	ErrDuplicateInvite    = errors.New("invite code already exists")
)

// TeamRepository persists teams. AppendMemberIfVacant is the one
// operation with a hard atomicity requirement: the capacity check and
// the membership append must be applied as a single step against the
// team's current persisted state so concurrent joiners cannot both
// claim the last slot.
type TeamRepository interface {
	Create(ctx context.Context, t *team.Team) error
	GetByID(ctx context.Context, id team.ID) (*team.Team, error)
	GetByInviteCode(ctx context.Context, code string) (*team.Team, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)

	// FindByEventAndParticipant returns any team for the event where the
	// participant is leader or holds a membership entry of any status.
	FindByEventAndParticipant(ctx context.Context, eventID, participantID string) (*team.Team, error)

	// FindActiveByEventAndParticipant is the cross-team exclusivity
	// check: leader or accepted/pending member of another team for the
	// same event. Declined memberships do not count. exclude is skipped.
	FindActiveByEventAndParticipant(ctx context.Context, eventID, participantID string, exclude team.ID) (*team.Team, error)

	ListByParticipant(ctx context.Context, participantID string) ([]*team.Team, error)

	// AppendMemberIfVacant appends the member only if the team is still
	// forming and under capacity, and returns the updated team. A
	// declined entry for the same participant is replaced rather than
	// duplicated. Returns ErrTeamFull when the slot was lost.
	AppendMemberIfVacant(ctx context.Context, id team.ID, m team.Member) (*team.Team, error)

	Update(ctx context.Context, t *team.Team) error
	Delete(ctx context.Context, id team.ID) error
}

type inMemoryTeamRepo struct {
	mu    sync.RWMutex
	teams map[team.ID]*team.Team
}

func NewInMemoryTeamRepo() TeamRepository {
	return &inMemoryTeamRepo{teams: make(map[team.ID]*team.Team)}
}

func cloneTeam(t *team.Team) *team.Team {
	cp := *t
	cp.Members = append([]team.Member(nil), t.Members...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (r *inMemoryTeamRepo) Create(ctx context.Context, t *team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.teams {
		if existing.InviteCode == t.InviteCode {
			return ErrDuplicateInvite
		}
	}
	r.teams[t.ID] = cloneTeam(t)
	return nil
}

func (r *inMemoryTeamRepo) GetByID(ctx context.Context, id team.ID) (*team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return cloneTeam(t), nil
}

func (r *inMemoryTeamRepo) GetByInviteCode(ctx context.Context, code string) (*team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teams {
		if t.InviteCode == code {
			return cloneTeam(t), nil
		}
	}
	return nil, ErrInviteCodeNotFound
}

func (r *inMemoryTeamRepo) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teams {
		if t.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryTeamRepo) FindByEventAndParticipant(ctx context.Context, eventID, participantID string) (*team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teams {
		if t.EventID != eventID {
			continue
		}
		if t.HasParticipant(participantID) {
			return cloneTeam(t), nil
		}
	}
	return nil, ErrTeamNotFound
}

func (r *inMemoryTeamRepo) FindActiveByEventAndParticipant(ctx context.Context, eventID, participantID string, exclude team.ID) (*team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teams {
		if t.EventID != eventID || t.ID == exclude {
			continue
		}
		if t.LeaderID == participantID {
			return cloneTeam(t), nil
		}
		if m := t.MemberByParticipant(participantID); m != nil && m.Status != team.MemberDeclined {
			return cloneTeam(t), nil
		}
	}
	return nil, ErrTeamNotFound
}

func (r *inMemoryTeamRepo) ListByParticipant(ctx context.Context, participantID string) ([]*team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*team.Team
	for _, t := range r.teams {
		if t.HasParticipant(participantID) {
			out = append(out, cloneTeam(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *inMemoryTeamRepo) AppendMemberIfVacant(ctx context.Context, id team.ID, m team.Member) (*team.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	if t.Status != team.StatusForming || t.IsFull() {
		return nil, ErrTeamFull
	}
	appendTeamMember(t, m)
	return cloneTeam(t), nil
}

// appendTeamMember adds the member, replacing a previously declined
// entry for the same participant so a participant never holds two
// entries on one team.
func appendTeamMember(t *team.Team, m team.Member) {
	for i := range t.Members {
		if t.Members[i].ParticipantID == m.ParticipantID && t.Members[i].Status == team.MemberDeclined {
			t.Members[i] = m
			return
		}
	}
	t.Members = append(t.Members, m)
}

func (r *inMemoryTeamRepo) Update(ctx context.Context, t *team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[t.ID]; !ok {
		return ErrTeamNotFound
	}
	r.teams[t.ID] = cloneTeam(t)
	return nil
}

func (r *inMemoryTeamRepo) Delete(ctx context.Context, id team.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}
