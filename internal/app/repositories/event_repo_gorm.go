package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/evently/evently-api/internal/domain/event"
)

type eventRecord struct {
	ID                   string `gorm:"primaryKey"`
	Name                 string `gorm:"not null"`
	IsTeamEvent          bool   `gorm:"not null;default:false"`
	MinTeamSize          int
	MaxTeamSize          int
	RegistrationFee      float64
	OrganizerID          string
	CurrentRegistrations int `gorm:"not null;default:0"`
	StartDate            time.Time
	EndDate              time.Time
}

func (eventRecord) TableName() string { return "events" }

type gormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) (EventRepository, error) {
	if err := db.AutoMigrate(&eventRecord{}); err != nil {
		return nil, err
	}
	return &gormEventRepo{db: db}, nil
}

func (r *gormEventRepo) Put(ctx context.Context, e *event.Event) error {
	rec := eventRecord{
		ID:                   e.ID,
		Name:                 e.Name,
		IsTeamEvent:          e.IsTeamEvent,
		MinTeamSize:          e.MinTeamSize,
		MaxTeamSize:          e.MaxTeamSize,
		RegistrationFee:      e.RegistrationFee,
		OrganizerID:          e.OrganizerID,
		CurrentRegistrations: e.CurrentRegistrations,
		StartDate:            e.StartDate.UTC(),
		EndDate:              e.EndDate.UTC(),
	}
	return r.db.WithContext(ctx).Save(&rec).Error
}

func (r *gormEventRepo) GetByID(ctx context.Context, id string) (*event.Event, error) {
	var rec eventRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event.Event{
		ID:                   rec.ID,
		Name:                 rec.Name,
		IsTeamEvent:          rec.IsTeamEvent,
		MinTeamSize:          rec.MinTeamSize,
		MaxTeamSize:          rec.MaxTeamSize,
		RegistrationFee:      rec.RegistrationFee,
		OrganizerID:          rec.OrganizerID,
		CurrentRegistrations: rec.CurrentRegistrations,
		StartDate:            rec.StartDate,
		EndDate:              rec.EndDate,
	}, nil
}

func (r *gormEventRepo) IncrementRegistrations(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&eventRecord{}).Where("id = ?", id).
		Update("current_registrations", gorm.Expr("current_registrations + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}
