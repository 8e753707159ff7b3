package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/evently-api/internal/domain/chat"
)

func newGormMessageRepoForTest(t *testing.T) MessageRepository {
	t.Helper()
	repo, err := NewGormMessageRepo(openTestDB(t))
	require.NoError(t, err)
	return repo
}

func seedMessages(t *testing.T, repo MessageRepository, teamID, senderID string, n int) []string {
	t.Helper()
	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-m%d", teamID, i)
		ids[i] = id
		require.NoError(t, repo.Create(context.Background(), &chat.Message{
			ID:         id,
			TeamID:     teamID,
			SenderID:   senderID,
			SenderName: "Sender",
			Type:       chat.TypeText,
			Content:    fmt.Sprintf("message %d", i),
			ReadBy:     []chat.ReadReceipt{{ParticipantID: senderID, ReadAt: base.Add(time.Duration(i) * time.Second)}},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}
	return ids
}

func TestGormMessageRepoHistory(t *testing.T) {
	repo := newGormMessageRepoForTest(t)
	ctx := context.Background()
	ids := seedMessages(t, repo, "team1", "alice", 5)
	seedMessages(t, repo, "team2", "bob", 2)

	history, err := repo.History(ctx, chat.HistoryQuery{TeamID: "team1"})
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, ids[0], history[0].ID)
	assert.Equal(t, ids[4], history[4].ID)

	history, err = repo.History(ctx, chat.HistoryQuery{TeamID: "team1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[3], history[0].ID)
	assert.Equal(t, ids[4], history[1].ID)

	history, err = repo.History(ctx, chat.HistoryQuery{TeamID: "team1", Before: history[0].CreatedAt})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[2].ID)

	require.NoError(t, repo.SoftDelete(ctx, ids[1]))
	history, err = repo.History(ctx, chat.HistoryQuery{TeamID: "team1"})
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestGormMessageRepoReadReceipts(t *testing.T) {
	repo := newGormMessageRepoForTest(t)
	ctx := context.Background()
	ids := seedMessages(t, repo, "team1", "alice", 3)

	appended, err := repo.AppendReadReceipt(ctx, ids[0], "bob", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = repo.AppendReadReceipt(ctx, ids[0], "bob", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, appended)

	_, err = repo.AppendReadReceipt(ctx, "missing", "bob", time.Now().UTC())
	assert.ErrorIs(t, err, ErrMessageNotFound)

	got, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, got.ReadBy, 2)
	assert.True(t, got.IsReadBy("bob"))
}

func TestGormMessageRepoMarkReadAndUnreadCount(t *testing.T) {
	repo := newGormMessageRepoForTest(t)
	ctx := context.Background()
	ids := seedMessages(t, repo, "team1", "alice", 4)

	count, err := repo.UnreadCount(ctx, "team1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	count, err = repo.UnreadCount(ctx, "team1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, repo.MarkRead(ctx, "team1", ids[:2], "bob", time.Now().UTC()))
	count, err = repo.UnreadCount(ctx, "team1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Messages from another team never gain receipts through this batch.
	other := seedMessages(t, repo, "team2", "alice", 1)
	require.NoError(t, repo.MarkRead(ctx, "team1", other, "bob", time.Now().UTC()))
	got, err := repo.GetByID(ctx, other[0])
	require.NoError(t, err)
	assert.False(t, got.IsReadBy("bob"))

	// Soft-deleted messages drop out of the count.
	require.NoError(t, repo.SoftDelete(ctx, ids[2]))
	count, err = repo.UnreadCount(ctx, "team1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormMessageRepoSoftDelete(t *testing.T) {
	repo := newGormMessageRepoForTest(t)
	ctx := context.Background()
	ids := seedMessages(t, repo, "team1", "alice", 1)

	require.NoError(t, repo.SoftDelete(ctx, ids[0]))
	got, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	assert.ErrorIs(t, repo.SoftDelete(ctx, "missing"), ErrMessageNotFound)
}
