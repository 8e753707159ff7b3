package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/domain/chat"
	"github.com/evently/evently-api/pkg/logger"
	"github.com/evently/evently-api/pkg/storage"
)

var (
	ErrEmptyMessage      = errors.New("message content is required")
	ErrNotMessageSender  = errors.New("only the sender may delete a message")
	ErrFileTooLarge      = errors.New("file exceeds the 10MB limit")
	ErrFileTypeForbidden = errors.New("file type not allowed")
	ErrStorageDisabled   = errors.New("file uploads are not enabled")
)

// MaxUploadSize caps chat attachments at 10 MiB.
const MaxUploadSize = 10 << 20

const defaultHistoryLimit = 100

// allowedExtensions mirrors the attachment allow-list enforced on
// upload; the MIME type reported by the client is checked as well.
var allowedExtensions = map[string]struct{}{
	".jpeg": {}, ".jpg": {}, ".png": {}, ".gif": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".txt": {}, ".zip": {}, ".rar": {}, ".mp4": {}, ".mp3": {}, ".csv": {},
}

var allowedMIMEPrefixes = []string{
	"image/jpeg", "image/jpg", "image/png", "image/gif",
	"application/pdf", "application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel", "text/plain", "text/csv",
	"application/zip", "application/x-zip-compressed",
	"application/x-rar-compressed", "application/vnd.rar",
	"video/mp4", "audio/mpeg", "audio/mp3",
	"application/octet-stream",
}

// MarkReadResult reports which of the requested messages actually
// gained a receipt; already-read messages are skipped silently.
type MarkReadResult struct {
	Marked []string `json:"markedMessageIds"`
}

// ChatService is the message store behind the team chat rooms. Access
// control lives with the caller (gateway or controller); the service
// trusts the sender identity it is given.
type ChatService interface {
	Send(ctx context.Context, senderID string, in chat.SendMessageInput) (*chat.Message, error)
	History(ctx context.Context, q chat.HistoryQuery) ([]*chat.Message, error)

	// MarkOneRead appends a single receipt, reporting whether it was new.
	MarkOneRead(ctx context.Context, messageID, participantID string) (bool, error)
	MarkRead(ctx context.Context, teamID string, messageIDs []string, participantID string) (*MarkReadResult, error)
	UnreadCount(ctx context.Context, teamID, participantID string) (int64, error)
	Delete(ctx context.Context, messageID, actingID string) error

	// Upload stores an attachment and persists the file message that
	// references it.
	Upload(ctx context.Context, senderID, teamID string, file multipart.File, header *multipart.FileHeader) (*chat.Message, error)
}

type chatService struct {
	messages     repositories.MessageRepository
	participants repositories.ParticipantRepository
	storage      storage.Service
	log          *logger.Logger
}

func NewChatService(
	messages repositories.MessageRepository,
	participants repositories.ParticipantRepository,
	store storage.Service,
	log *logger.Logger,
) ChatService {
	return &chatService{
		messages:     messages,
		participants: participants,
		storage:      store,
		log:          log,
	}
}

func (s *chatService) Send(ctx context.Context, senderID string, in chat.SendMessageInput) (*chat.Message, error) {
	msgType := in.Type
	if msgType == "" {
		msgType = chat.TypeText
	}
	if msgType == chat.TypeText && strings.TrimSpace(in.Content) == "" {
		return nil, ErrEmptyMessage
	}
	if msgType == chat.TypeLink && in.LinkURL != "" && in.LinkTitle == "" {
		if preview, err := fetchLinkPreview(ctx, in.LinkURL); err == nil {
			in.LinkTitle = preview.Title
		}
	}

	senderName := senderID
	if p, err := s.participants.GetByID(ctx, senderID); err == nil {
		senderName = p.FullName()
	}

	now := time.Now().UTC()
	m := &chat.Message{
		ID:         uuid.NewString(),
		TeamID:     in.TeamID,
		SenderID:   senderID,
		SenderName: senderName,
		Type:       msgType,
		Content:    in.Content,
		FileURL:    in.FileURL,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		LinkURL:    in.LinkURL,
		LinkTitle:  in.LinkTitle,
		// The sender has trivially read their own message.
		ReadBy:    []chat.ReadReceipt{{ParticipantID: senderID, ReadAt: now}},
		CreatedAt: now,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *chatService) History(ctx context.Context, q chat.HistoryQuery) ([]*chat.Message, error) {
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	return s.messages.History(ctx, q)
}

func (s *chatService) MarkOneRead(ctx context.Context, messageID, participantID string) (bool, error) {
	return s.messages.AppendReadReceipt(ctx, messageID, participantID, time.Now().UTC())
}

func (s *chatService) MarkRead(ctx context.Context, teamID string, messageIDs []string, participantID string) (*MarkReadResult, error) {
	if err := s.messages.MarkRead(ctx, teamID, messageIDs, participantID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &MarkReadResult{Marked: messageIDs}, nil
}

func (s *chatService) UnreadCount(ctx context.Context, teamID, participantID string) (int64, error) {
	return s.messages.UnreadCount(ctx, teamID, participantID)
}

func (s *chatService) Delete(ctx context.Context, messageID, actingID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != actingID {
		return ErrNotMessageSender
	}
	return s.messages.SoftDelete(ctx, messageID)
}

func (s *chatService) Upload(ctx context.Context, senderID, teamID string, file multipart.File, header *multipart.FileHeader) (*chat.Message, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if header.Size > MaxUploadSize {
		return nil, ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, ErrFileTypeForbidden
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !mimeAllowed(contentType) {
		return nil, ErrFileTypeForbidden
	}

	key := fmt.Sprintf("chat/%s/%s%s", teamID, uuid.NewString(), ext)
	url, err := s.storage.PutObject(ctx, storage.UploadInput{
		Key:         key,
		ContentType: contentType,
		Body:        io.LimitReader(file, MaxUploadSize),
		Size:        header.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	s.log.Infow("chat attachment stored", "teamId", teamID, "key", key, "size", header.Size)

	return s.Send(ctx, senderID, chat.SendMessageInput{
		TeamID:   teamID,
		Type:     chat.TypeFile,
		Content:  "Shared a file: " + header.Filename,
		FileURL:  url,
		FileName: header.Filename,
		FileSize: header.Size,
	})
}

func mimeAllowed(contentType string) bool {
	for _, p := range allowedMIMEPrefixes {
		if strings.HasPrefix(contentType, p) {
			return true
		}
	}
	return false
}
