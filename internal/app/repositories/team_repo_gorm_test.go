package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/evently/evently-api/internal/domain/team"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newGormTeamRepoForTest(t *testing.T) TeamRepository {
	t.Helper()
	repo, err := NewGormTeamRepo(openTestDB(t))
	require.NoError(t, err)
	return repo
}

func sampleTeam(id, eventID, leaderID, code string) *team.Team {
	return &team.Team{
		ID:         team.ID(id),
		EventID:    eventID,
		Name:       "Team " + id,
		LeaderID:   leaderID,
		TeamSize:   3,
		InviteCode: code,
		InviteLink: "http://localhost:8080/team/join/" + code,
		Status:     team.StatusForming,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestGormTeamRepoRoundTrip(t *testing.T) {
	repo := newGormTeamRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleTeam("t1", "ev1", "alice", "AABBCCDD")))

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Team t1", got.Name)
	assert.Equal(t, team.StatusForming, got.Status)

	got, err = repo.GetByInviteCode(ctx, "AABBCCDD")
	require.NoError(t, err)
	assert.Equal(t, team.ID("t1"), got.ID)

	exists, err := repo.InviteCodeExists(ctx, "AABBCCDD")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.InviteCodeExists(ctx, "00000000")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrTeamNotFound)
	_, err = repo.GetByInviteCode(ctx, "missing")
	assert.ErrorIs(t, err, ErrInviteCodeNotFound)
}

func TestGormTeamRepoDuplicateInviteCode(t *testing.T) {
	repo := newGormTeamRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleTeam("t1", "ev1", "alice", "AABBCCDD")))
	err := repo.Create(ctx, sampleTeam("t2", "ev1", "bob", "AABBCCDD"))
	assert.ErrorIs(t, err, ErrDuplicateInvite)
}

func TestGormTeamRepoAppendMemberIfVacant(t *testing.T) {
	repo := newGormTeamRepoForTest(t)
	ctx := context.Background()

	seed := sampleTeam("t1", "ev1", "alice", "AABBCCDD")
	seed.TeamSize = 2
	require.NoError(t, repo.Create(ctx, seed))

	now := time.Now().UTC()
	updated, err := repo.AppendMemberIfVacant(ctx, "t1", team.Member{
		ParticipantID: "bob",
		Status:        team.MemberAccepted,
		InvitedAt:     now,
		RespondedAt:   &now,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.AcceptedCount())
	assert.True(t, updated.IsFull())

	_, err = repo.AppendMemberIfVacant(ctx, "t1", team.Member{ParticipantID: "cara", Status: team.MemberAccepted})
	assert.ErrorIs(t, err, ErrTeamFull)

	_, err = repo.AppendMemberIfVacant(ctx, "missing", team.Member{ParticipantID: "cara"})
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestGormTeamRepoDeclinedRejoinReplacesEntry(t *testing.T) {
	repo := newGormTeamRepoForTest(t)
	ctx := context.Background()

	seed := sampleTeam("t1", "ev1", "alice", "AABBCCDD")
	seed.Members = []team.Member{{ParticipantID: "bob", Status: team.MemberDeclined, InvitedAt: time.Now().UTC()}}
	require.NoError(t, repo.Create(ctx, seed))

	now := time.Now().UTC()
	updated, err := repo.AppendMemberIfVacant(ctx, "t1", team.Member{
		ParticipantID: "bob",
		Status:        team.MemberAccepted,
		InvitedAt:     now,
		RespondedAt:   &now,
	})
	require.NoError(t, err)
	require.Len(t, updated.Members, 1)
	assert.Equal(t, team.MemberAccepted, updated.Members[0].Status)
}

func TestGormTeamRepoMembershipQueries(t *testing.T) {
	repo := newGormTeamRepoForTest(t)
	ctx := context.Background()

	first := sampleTeam("t1", "ev1", "alice", "AAAA1111")
	first.Members = []team.Member{{ParticipantID: "bob", Status: team.MemberAccepted}}
	require.NoError(t, repo.Create(ctx, first))

	second := sampleTeam("t2", "ev1", "cara", "BBBB2222")
	second.Members = []team.Member{{ParticipantID: "dan", Status: team.MemberDeclined}}
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.FindByEventAndParticipant(ctx, "ev1", "bob")
	require.NoError(t, err)
	assert.Equal(t, team.ID("t1"), got.ID)

	// Declined membership still counts for the any-status lookup ...
	got, err = repo.FindByEventAndParticipant(ctx, "ev1", "dan")
	require.NoError(t, err)
	assert.Equal(t, team.ID("t2"), got.ID)

	// ... but not for the active one.
	_, err = repo.FindActiveByEventAndParticipant(ctx, "ev1", "dan", "")
	assert.ErrorIs(t, err, ErrTeamNotFound)

	// The team being joined is excluded from the exclusivity check.
	_, err = repo.FindActiveByEventAndParticipant(ctx, "ev1", "bob", "t1")
	assert.ErrorIs(t, err, ErrTeamNotFound)

	teams, err := repo.ListByParticipant(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, team.ID("t1"), teams[0].ID)

	teams, err = repo.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, teams, 1)
}

func TestGormTeamRepoUpdateAndDelete(t *testing.T) {
	repo := newGormTeamRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleTeam("t1", "ev1", "alice", "AABBCCDD")))

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	now := time.Now().UTC()
	got.Status = team.StatusRegistered
	got.RegistrationID = "reg1"
	got.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, team.StatusRegistered, got.Status)
	assert.Equal(t, "reg1", got.RegistrationID)
	require.NotNil(t, got.CompletedAt)

	require.NoError(t, repo.Delete(ctx, "t1"))
	assert.ErrorIs(t, repo.Delete(ctx, "t1"), ErrTeamNotFound)
}
