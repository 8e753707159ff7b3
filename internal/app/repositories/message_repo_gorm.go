package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/evently/evently-api/internal/domain/chat"
)

type messageRecord struct {
	ID         string `gorm:"primaryKey"`
	TeamID     string `gorm:"index:idx_messages_team_created;not null"`
	SenderID   string `gorm:"index;not null"`
	SenderName string `gorm:"not null"`
	Type       string `gorm:"not null"`
	Content    string `gorm:"not null"`
	FileURL    string
	FileName   string
	FileSize   int64
	LinkURL    string
	LinkTitle  string
	ReadBy     string    `gorm:"type:text"`
	IsDeleted  bool      `gorm:"index;not null;default:false"`
	CreatedAt  time.Time `gorm:"index:idx_messages_team_created"`
}

func (messageRecord) TableName() string { return "messages" }

func toMessageRecord(m *chat.Message) (*messageRecord, error) {
	readBy, err := json.Marshal(m.ReadBy)
	if err != nil {
		return nil, err
	}
	return &messageRecord{
		ID:         m.ID,
		TeamID:     m.TeamID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Type:       string(m.Type),
		Content:    m.Content,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileSize:   m.FileSize,
		LinkURL:    m.LinkURL,
		LinkTitle:  m.LinkTitle,
		ReadBy:     string(readBy),
		IsDeleted:  m.IsDeleted,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}

func (rec *messageRecord) toDomain() (*chat.Message, error) {
	var readBy []chat.ReadReceipt
	if rec.ReadBy != "" {
		if err := json.Unmarshal([]byte(rec.ReadBy), &readBy); err != nil {
			return nil, err
		}
	}
	return &chat.Message{
		ID:         rec.ID,
		TeamID:     rec.TeamID,
		SenderID:   rec.SenderID,
		SenderName: rec.SenderName,
		Type:       chat.MessageType(rec.Type),
		Content:    rec.Content,
		FileURL:    rec.FileURL,
		FileName:   rec.FileName,
		FileSize:   rec.FileSize,
		LinkURL:    rec.LinkURL,
		LinkTitle:  rec.LinkTitle,
		ReadBy:     readBy,
		IsDeleted:  rec.IsDeleted,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

type gormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) (MessageRepository, error) {
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, err
	}
	return &gormMessageRepo{db: db}, nil
}

func (r *gormMessageRepo) Create(ctx context.Context, m *chat.Message) error {
	rec, err := toMessageRecord(m)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormMessageRepo) GetByID(ctx context.Context, id string) (*chat.Message, error) {
	var rec messageRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

func (r *gormMessageRepo) History(ctx context.Context, q chat.HistoryQuery) ([]*chat.Message, error) {
	query := r.db.WithContext(ctx).Where("team_id = ? AND is_deleted = ?", q.TeamID, false)
	if !q.Before.IsZero() {
		query = query.Where("created_at < ?", q.Before.UTC())
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	var recs []messageRecord
	if err := query.Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*chat.Message, len(recs))
	for i := range recs {
		// recs are newest-first; fill the slice back to front so the
		// result comes out chronological.
		m, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out[len(out)-1-i] = m
	}
	return out, nil
}

func (r *gormMessageRepo) AppendReadReceipt(ctx context.Context, messageID, participantID string, at time.Time) (bool, error) {
	appended := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec messageRecord
		err := tx.First(&rec, "id = ?", messageID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		m, err := rec.toDomain()
		if err != nil {
			return err
		}
		if m.IsReadBy(participantID) {
			return nil
		}
		m.ReadBy = append(m.ReadBy, chat.ReadReceipt{ParticipantID: participantID, ReadAt: at.UTC()})
		readBy, err := json.Marshal(m.ReadBy)
		if err != nil {
			return err
		}
		if err := tx.Model(&messageRecord{}).Where("id = ?", messageID).Update("read_by", string(readBy)).Error; err != nil {
			return err
		}
		appended = true
		return nil
	})
	return appended, err
}

func (r *gormMessageRepo) MarkRead(ctx context.Context, teamID string, messageIDs []string, participantID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recs []messageRecord
		if err := tx.Where("team_id = ? AND id IN ?", teamID, messageIDs).Find(&recs).Error; err != nil {
			return err
		}
		for i := range recs {
			m, err := recs[i].toDomain()
			if err != nil {
				return err
			}
			if m.IsReadBy(participantID) {
				continue
			}
			m.ReadBy = append(m.ReadBy, chat.ReadReceipt{ParticipantID: participantID, ReadAt: at.UTC()})
			readBy, err := json.Marshal(m.ReadBy)
			if err != nil {
				return err
			}
			if err := tx.Model(&messageRecord{}).Where("id = ?", m.ID).Update("read_by", string(readBy)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormMessageRepo) UnreadCount(ctx context.Context, teamID, participantID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("team_id = ? AND is_deleted = ? AND sender_id <> ?", teamID, false, participantID).
		Where("read_by NOT LIKE ?", `%"`+participantID+`"%`).
		Count(&count).Error
	return count, err
}

func (r *gormMessageRepo) SoftDelete(ctx context.Context, messageID string) error {
	res := r.db.WithContext(ctx).Model(&messageRecord{}).Where("id = ?", messageID).Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
