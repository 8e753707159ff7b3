package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/domain/event"
	"github.com/evently/evently-api/internal/domain/participant"
	"github.com/evently/evently-api/internal/domain/team"
	"github.com/evently/evently-api/pkg/eventlog"
	"github.com/evently/evently-api/pkg/logger"
)

var (
	ErrEventNotTeamBased  = errors.New("this event is not a team-based event")
	ErrTeamSizeOutOfRange = errors.New("team size outside the event's allowed range")
	ErrAlreadyInTeam      = errors.New("you are already part of a team for this event")
	ErrAlreadyInOtherTeam = errors.New("you are already part of another team for this event")
	ErrTeamAlreadyDone    = errors.New("team is already complete")
	ErrLeaderCannotJoin   = errors.New("you are the team leader")
	ErrAlreadyJoined      = errors.New("you have already joined this team")
	ErrInvitePending      = errors.New("you already have a pending invitation for this team")
	ErrTeamAccessDenied   = errors.New("access denied")
	ErrLeaderOnly         = errors.New("only the team leader may do this")
	ErrTeamRegistered     = errors.New("cannot modify team after registration")
	ErrLeaderCannotLeave  = errors.New("team leader cannot leave; delete the team instead")
)

const inviteCodeAttempts = 10

// MemberView is a membership entry populated with participant contact
// details for API responses.
type MemberView struct {
	Participant participant.Summary `json:"participant"`
	Status      team.MemberStatus   `json:"status"`
	InvitedAt   time.Time           `json:"invitedAt"`
	RespondedAt *time.Time          `json:"respondedAt,omitempty"`
}

// TeamView is the populated team shape returned by all read paths.
// AcceptedCount and IsFull are computed from the member list on every
// read, never stored.
type TeamView struct {
	ID             team.ID             `json:"id"`
	Name           string              `json:"teamName"`
	TeamSize       int                 `json:"teamSize"`
	Status         team.Status         `json:"status"`
	InviteCode     string              `json:"inviteCode"`
	InviteLink     string              `json:"inviteLink"`
	Leader         participant.Summary `json:"teamLeader"`
	Event          event.Summary       `json:"event"`
	Members        []MemberView        `json:"members"`
	AcceptedCount  int                 `json:"acceptedCount"`
	IsFull         bool                `json:"isFull"`
	RegistrationID string              `json:"registrationId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
}

// JoinResult reports a join outcome; Completed is set when this join
// filled the last slot and the registration bridge ran.
type JoinResult struct {
	Team      *TeamView
	Completed bool
}

// TeamService is the team registry: invite-code based assembly, the
// forming/complete/registered state machine and the synchronous
// hand-off to the registration bridge on completion.
type TeamService interface {
	Create(ctx context.Context, leaderID string, in team.CreateTeamInput) (*TeamView, error)
	ResolveInvite(ctx context.Context, code string) (*TeamView, error)
	Join(ctx context.Context, code, participantID string) (*JoinResult, error)
	ListMine(ctx context.Context, participantID string) ([]*TeamView, error)
	GetByID(ctx context.Context, teamID team.ID, callerID string) (*TeamView, error)
	RemoveMember(ctx context.Context, teamID team.ID, memberID, actingID string) (*TeamView, error)
	Leave(ctx context.Context, teamID team.ID, participantID string) error
	Delete(ctx context.Context, teamID team.ID, actingID string) error

	// AuthorizeChat returns the team if the participant may use its chat
	// room (leader or accepted member), ErrTeamAccessDenied otherwise.
	AuthorizeChat(ctx context.Context, teamID team.ID, participantID string) (*team.Team, error)
}

type teamService struct {
	teams        repositories.TeamRepository
	events       repositories.EventRepository
	participants repositories.ParticipantRepository
	bridge       RegistrationBridge
	appURL       string
	audit        *eventlog.Writer
	log          *logger.Logger
}

func NewTeamService(
	teams repositories.TeamRepository,
	events repositories.EventRepository,
	participants repositories.ParticipantRepository,
	bridge RegistrationBridge,
	appURL string,
	audit *eventlog.Writer,
	log *logger.Logger,
) TeamService {
	return &teamService{
		teams:        teams,
		events:       events,
		participants: participants,
		bridge:       bridge,
		appURL:       strings.TrimRight(appURL, "/"),
		audit:        audit,
		log:          log,
	}
}

func (s *teamService) Create(ctx context.Context, leaderID string, in team.CreateTeamInput) (*TeamView, error) {
	if strings.TrimSpace(in.TeamName) == "" {
		return nil, errors.New("teamName is required")
	}
	ev, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsTeamEvent {
		return nil, ErrEventNotTeamBased
	}
	if in.TeamSize < ev.MinTeamSize || in.TeamSize > ev.MaxTeamSize {
		return nil, fmt.Errorf("%w: must be between %d and %d", ErrTeamSizeOutOfRange, ev.MinTeamSize, ev.MaxTeamSize)
	}
	if _, err := s.teams.FindByEventAndParticipant(ctx, in.EventID, leaderID); err == nil {
		return nil, ErrAlreadyInTeam
	} else if !errors.Is(err, repositories.ErrTeamNotFound) {
		return nil, err
	}

	code, err := s.newInviteCode(ctx)
	if err != nil {
		return nil, err
	}
	t := &team.Team{
		ID:         team.ID(uuid.NewString()),
		EventID:    in.EventID,
		Name:       strings.TrimSpace(in.TeamName),
		LeaderID:   leaderID,
		TeamSize:   in.TeamSize,
		InviteCode: code,
		InviteLink: s.appURL + "/team/join/" + code,
		Status:     team.StatusForming,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.teams.Create(ctx, t); err != nil {
		return nil, err
	}
	s.log.Infow("team created", "teamId", t.ID, "eventId", t.EventID, "leaderId", leaderID)
	s.audit.Record(string(t.ID), "team-created", map[string]any{"eventId": t.EventID, "leaderId": leaderID, "teamSize": t.TeamSize})
	return s.buildView(ctx, t)
}

func (s *teamService) ResolveInvite(ctx context.Context, code string) (*TeamView, error) {
	t, err := s.teams.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if t.Status != team.StatusForming {
		return nil, ErrTeamAlreadyDone
	}
	return s.buildView(ctx, t)
}

func (s *teamService) Join(ctx context.Context, code, participantID string) (*JoinResult, error) {
	t, err := s.teams.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if t.Status != team.StatusForming {
		return nil, ErrTeamAlreadyDone
	}
	if t.LeaderID == participantID {
		return nil, ErrLeaderCannotJoin
	}
	if m := t.MemberByParticipant(participantID); m != nil {
		switch m.Status {
		case team.MemberAccepted:
			return nil, ErrAlreadyJoined
		case team.MemberPending:
			return nil, ErrInvitePending
		}
	}
	if _, err := s.teams.FindActiveByEventAndParticipant(ctx, t.EventID, participantID, t.ID); err == nil {
		return nil, ErrAlreadyInOtherTeam
	} else if !errors.Is(err, repositories.ErrTeamNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	member := team.Member{
		ParticipantID: participantID,
		Status:        team.MemberAccepted,
		InvitedAt:     now,
		RespondedAt:   &now,
	}
	// The capacity check and the append are one atomic step against the
	// persisted team; the loser of a last-slot race gets ErrTeamFull.
	updated, err := s.teams.AppendMemberIfVacant(ctx, t.ID, member)
	if err != nil {
		return nil, err
	}
	s.audit.Record(string(t.ID), "member-joined", map[string]any{"participantId": participantID})

	completed := false
	if updated.AcceptedCount() >= updated.TeamSize {
		if err := s.completeAndRegister(ctx, t, updated, now); err != nil {
			return nil, err
		}
		completed = true
	}

	view, err := s.buildView(ctx, updated)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Team: view, Completed: completed}, nil
}

// completeAndRegister runs the complete transition and the registration
// bridge as one unit from the joiner's perspective. A bridge failure
// rolls the join back entirely so the team is never left complete
// without a matching registration; the caller may simply retry.
func (s *teamService) completeAndRegister(ctx context.Context, before, updated *team.Team, at time.Time) error {
	updated.Status = team.StatusComplete
	updated.CompletedAt = &at
	if err := s.teams.Update(ctx, updated); err != nil {
		return err
	}
	if _, err := s.bridge.Register(ctx, updated); err != nil {
		s.log.Errorw("registration bridge failed, reverting join", "teamId", updated.ID, "error", err)
		revert := *before
		revert.Status = team.StatusForming
		revert.CompletedAt = nil
		if rerr := s.teams.Update(ctx, &revert); rerr != nil {
			s.log.Errorw("failed to revert team after bridge failure", "teamId", updated.ID, "error", rerr)
		}
		return fmt.Errorf("team registration failed: %w", err)
	}
	s.log.Infow("team registered", "teamId", updated.ID, "registrationId", updated.RegistrationID)
	s.audit.Record(string(updated.ID), "team-registered", map[string]any{"registrationId": updated.RegistrationID})
	return nil
}

func (s *teamService) ListMine(ctx context.Context, participantID string) ([]*TeamView, error) {
	teams, err := s.teams.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	out := make([]*TeamView, 0, len(teams))
	for _, t := range teams {
		view, err := s.buildView(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *teamService) GetByID(ctx context.Context, teamID team.ID, callerID string) (*TeamView, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !t.HasParticipant(callerID) {
		return nil, ErrTeamAccessDenied
	}
	return s.buildView(ctx, t)
}

func (s *teamService) RemoveMember(ctx context.Context, teamID team.ID, memberID, actingID string) (*TeamView, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.LeaderID != actingID {
		return nil, ErrLeaderOnly
	}
	if t.Status == team.StatusRegistered {
		return nil, ErrTeamRegistered
	}
	t.Members = removeMember(t.Members, memberID)
	if t.Status == team.StatusComplete {
		// Capacity no longer met; the team reopens for joins.
		t.Status = team.StatusForming
		t.CompletedAt = nil
	}
	if err := s.teams.Update(ctx, t); err != nil {
		return nil, err
	}
	return s.buildView(ctx, t)
}

func (s *teamService) Leave(ctx context.Context, teamID team.ID, participantID string) error {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.LeaderID == participantID {
		return ErrLeaderCannotLeave
	}
	if t.Status == team.StatusRegistered {
		return ErrTeamRegistered
	}
	t.Members = removeMember(t.Members, participantID)
	if t.Status == team.StatusComplete {
		t.Status = team.StatusForming
		t.CompletedAt = nil
	}
	return s.teams.Update(ctx, t)
}

func (s *teamService) Delete(ctx context.Context, teamID team.ID, actingID string) error {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.LeaderID != actingID {
		return ErrLeaderOnly
	}
	if t.Status == team.StatusRegistered {
		return ErrTeamRegistered
	}
	if err := s.teams.Delete(ctx, teamID); err != nil {
		return err
	}
	s.audit.Record(string(teamID), "team-deleted", map[string]any{"leaderId": actingID})
	return nil
}

func (s *teamService) AuthorizeChat(ctx context.Context, teamID team.ID, participantID string) (*team.Team, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !t.IsChatMember(participantID) {
		return nil, ErrTeamAccessDenied
	}
	return t, nil
}

func (s *teamService) newInviteCode(ctx context.Context) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		exists, err := s.teams.InviteCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique invite code")
}

func (s *teamService) buildView(ctx context.Context, t *team.Team) (*TeamView, error) {
	ids := make([]string, 0, len(t.Members)+1)
	ids = append(ids, t.LeaderID)
	for _, m := range t.Members {
		ids = append(ids, m.ParticipantID)
	}
	people, err := s.participants.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]participant.Summary, len(people))
	for _, p := range people {
		byID[p.ID] = p.Summary()
	}

	var evSummary event.Summary
	if ev, err := s.events.GetByID(ctx, t.EventID); err == nil {
		evSummary = ev.Summary()
	}

	members := make([]MemberView, 0, len(t.Members))
	for _, m := range t.Members {
		members = append(members, MemberView{
			Participant: byID[m.ParticipantID],
			Status:      m.Status,
			InvitedAt:   m.InvitedAt,
			RespondedAt: m.RespondedAt,
		})
	}

	return &TeamView{
		ID:             t.ID,
		Name:           t.Name,
		TeamSize:       t.TeamSize,
		Status:         t.Status,
		InviteCode:     t.InviteCode,
		InviteLink:     t.InviteLink,
		Leader:         byID[t.LeaderID],
		Event:          evSummary,
		Members:        members,
		AcceptedCount:  t.AcceptedCount(),
		IsFull:         t.IsFull(),
		RegistrationID: t.RegistrationID,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}, nil
}

func removeMember(members []team.Member, participantID string) []team.Member {
	out := members[:0]
	for _, m := range members {
		if m.ParticipantID != participantID {
			out = append(out, m)
		}
	}
	return out
}
