package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/domain/chat"
	"github.com/evently/evently-api/internal/domain/participant"
	"github.com/evently/evently-api/pkg/logger"
	"github.com/evently/evently-api/pkg/storage"
)

func newChatFixture(t *testing.T) (ChatService, repositories.MessageRepository) {
	t.Helper()
	messages := repositories.NewInMemoryMessageRepo()
	participants := repositories.NewInMemoryParticipantRepo()
	ctx := context.Background()
	require.NoError(t, participants.Put(ctx, &participant.Participant{ID: "alice", FirstName: "Alice", LastName: "Adams"}))
	require.NoError(t, participants.Put(ctx, &participant.Participant{ID: "bob", FirstName: "Bob", LastName: "Brown"}))
	svc := NewChatService(messages, participants, nil, logger.NewNop())
	return svc, messages
}

func TestSendMessage(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", chat.SendMessageInput{TeamID: "team1", Content: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, chat.TypeText, msg.Type)
	assert.Equal(t, "Alice Adams", msg.SenderName)
	require.Len(t, msg.ReadBy, 1)
	assert.Equal(t, "alice", msg.ReadBy[0].ParticipantID)

	_, err = svc.Send(ctx, "alice", chat.SendMessageInput{TeamID: "team1", Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendMessageUnknownSenderKeepsID(t *testing.T) {
	svc, _ := newChatFixture(t)

	msg, err := svc.Send(context.Background(), "ghost", chat.SendMessageInput{TeamID: "team1", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ghost", msg.SenderName)
}

func TestHistoryOrderAndPaging(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"one", "two", "three"} {
		msg, err := svc.Send(ctx, "alice", chat.SendMessageInput{TeamID: "team1", Content: content})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
		time.Sleep(2 * time.Millisecond)
	}

	history, err := svc.History(ctx, chat.HistoryQuery{TeamID: "team1"})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Content)
	assert.Equal(t, "three", history[2].Content)

	history, err = svc.History(ctx, chat.HistoryQuery{TeamID: "team1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "three", history[1].Content)

	history, err = svc.History(ctx, chat.HistoryQuery{TeamID: "team1", Before: history[1].CreatedAt})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[0], history[0].ID)
	assert.Equal(t, ids[1], history[1].ID)
}

func TestSoftDelete(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", chat.SendMessageInput{TeamID: "team1", Content: "secret"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, msg.ID, "bob"), ErrNotMessageSender)
	require.NoError(t, svc.Delete(ctx, msg.ID, "alice"))

	history, err := svc.History(ctx, chat.HistoryQuery{TeamID: "team1"})
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, svc.Delete(ctx, "nope", "alice"), repositories.ErrMessageNotFound)
}

func TestReadReceiptsIdempotent(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", chat.SendMessageInput{TeamID: "team1", Content: "read me"})
	require.NoError(t, err)

	appended, err := svc.MarkOneRead(ctx, msg.ID, "bob")
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = svc.MarkOneRead(ctx, msg.ID, "bob")
	require.NoError(t, err)
	assert.False(t, appended)

	// The sender's own implicit receipt never re-appends.
	appended, err = svc.MarkOneRead(ctx, msg.ID, "alice")
	require.NoError(t, err)
	assert.False(t, appended)
}

func TestMarkReadBatchAndUnreadCount(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"a", "b", "c"} {
		msg, err := svc.Send(ctx, "alice", chat.SendMessageInput{TeamID: "team1", Content: content})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	count, err := svc.UnreadCount(ctx, "team1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Own messages never count as unread.
	count, err = svc.UnreadCount(ctx, "team1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = svc.MarkRead(ctx, "team1", ids[:2], "bob")
	require.NoError(t, err)

	count, err = svc.UnreadCount(ctx, "team1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Repeating the batch is a no-op.
	_, err = svc.MarkRead(ctx, "team1", ids, "bob")
	require.NoError(t, err)
	count, err = svc.UnreadCount(ctx, "team1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUploadWithoutStorage(t *testing.T) {
	svc, _ := newChatFixture(t)
	_, err := svc.Upload(context.Background(), "alice", "team1", nil, nil)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

type stubStorage struct {
	key string
}

func (s *stubStorage) PutObject(_ context.Context, in storage.UploadInput) (string, error) {
	s.key = in.Key
	return "https://files.test/" + in.Key, nil
}

func (s *stubStorage) DeleteObject(context.Context, string) error { return nil }

func multipartFile(t *testing.T, filename, content string) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	return file, header
}

func TestUploadCreatesFileMessage(t *testing.T) {
	messages := repositories.NewInMemoryMessageRepo()
	participants := repositories.NewInMemoryParticipantRepo()
	ctx := context.Background()
	require.NoError(t, participants.Put(ctx, &participant.Participant{ID: "alice", FirstName: "Alice", LastName: "Adams"}))
	store := &stubStorage{}
	svc := NewChatService(messages, participants, store, logger.NewNop())

	file, header := multipartFile(t, "notes.txt", "meeting notes")
	msg, err := svc.Upload(ctx, "alice", "team1", file, header)
	require.NoError(t, err)

	assert.Equal(t, chat.TypeFile, msg.Type)
	assert.Equal(t, "Shared a file: notes.txt", msg.Content)
	assert.Equal(t, "notes.txt", msg.FileName)
	assert.Equal(t, "https://files.test/"+store.key, msg.FileURL)
	assert.True(t, strings.HasPrefix(store.key, "chat/team1/"))
	assert.True(t, strings.HasSuffix(store.key, ".txt"))

	stored, err := messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.Content, stored.Content)
}

func TestUploadRejectsForbiddenExtension(t *testing.T) {
	messages := repositories.NewInMemoryMessageRepo()
	participants := repositories.NewInMemoryParticipantRepo()
	svc := NewChatService(messages, participants, &stubStorage{}, logger.NewNop())

	file, header := multipartFile(t, "payload.exe", "MZ")
	_, err := svc.Upload(context.Background(), "alice", "team1", file, header)
	assert.ErrorIs(t, err, ErrFileTypeForbidden)
}
