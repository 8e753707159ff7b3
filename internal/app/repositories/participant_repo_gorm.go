package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/evently/evently-api/internal/domain/participant"
)

type participantRecord struct {
	ID         string `gorm:"primaryKey"`
	FirstName  string `gorm:"not null"`
	LastName   string `gorm:"not null"`
	Email      string `gorm:"uniqueIndex;not null"`
	RollNumber string
}

func (participantRecord) TableName() string { return "participants" }

type gormParticipantRepo struct {
	db *gorm.DB
}

func NewGormParticipantRepo(db *gorm.DB) (ParticipantRepository, error) {
	if err := db.AutoMigrate(&participantRecord{}); err != nil {
		return nil, err
	}
	return &gormParticipantRepo{db: db}, nil
}

func (r *gormParticipantRepo) Put(ctx context.Context, p *participant.Participant) error {
	rec := participantRecord{
		ID:         p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		RollNumber: p.RollNumber,
	}
	return r.db.WithContext(ctx).Save(&rec).Error
}

func (r *gormParticipantRepo) GetByID(ctx context.Context, id string) (*participant.Participant, error) {
	var rec participantRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (r *gormParticipantRepo) ListByIDs(ctx context.Context, ids []string) ([]*participant.Participant, error) {
	var recs []participantRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*participant.Participant, len(recs))
	for i := range recs {
		byID[recs[i].ID] = recs[i].toDomain()
	}
	// Preserve the requested order; the bridge relies on it for roster
	// ordering (leader first, then members in membership order).
	out := make([]*participant.Participant, 0, len(recs))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (rec *participantRecord) toDomain() *participant.Participant {
	return &participant.Participant{
		ID:         rec.ID,
		FirstName:  rec.FirstName,
		LastName:   rec.LastName,
		Email:      rec.Email,
		RollNumber: rec.RollNumber,
	}
}
