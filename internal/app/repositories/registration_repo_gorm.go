package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/evently/evently-api/internal/domain/registration"
	"github.com/evently/evently-api/internal/domain/team"
)

type registrationRecord struct {
	ID            string `gorm:"primaryKey"`
	ParticipantID string `gorm:"index;not null"`
	EventID       string `gorm:"index;not null"`
	TeamName      string
	TeamMembers   string `gorm:"type:text"`
	TicketID      string `gorm:"uniqueIndex;not null"`
	QRCode        string
	QRCodeURL     string
	Status        string `gorm:"not null"`
	PaymentStatus string `gorm:"not null"`
	RegisteredAt  time.Time
}

func (registrationRecord) TableName() string { return "registrations" }

type gormRegistrationRepo struct {
	db *gorm.DB
}

func NewGormRegistrationRepo(db *gorm.DB) (RegistrationRepository, error) {
	if err := db.AutoMigrate(&registrationRecord{}); err != nil {
		return nil, err
	}
	return &gormRegistrationRepo{db: db}, nil
}

func (r *gormRegistrationRepo) Commit(ctx context.Context, t *team.Team, reg *registration.Registration) error {
	roster, err := json.Marshal(reg.TeamMembers)
	if err != nil {
		return err
	}
	rec := registrationRecord{
		ID:            reg.ID,
		ParticipantID: reg.ParticipantID,
		EventID:       reg.EventID,
		TeamName:      reg.TeamName,
		TeamMembers:   string(roster),
		TicketID:      reg.TicketID,
		QRCode:        reg.QRCode,
		QRCodeURL:     reg.QRCodeURL,
		Status:        string(reg.Status),
		PaymentStatus: string(reg.PaymentStatus),
		RegisteredAt:  reg.RegisteredAt.UTC(),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		res := tx.Model(&eventRecord{}).Where("id = ?", t.EventID).
			Update("current_registrations", gorm.Expr("current_registrations + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEventNotFound
		}
		res = tx.Model(&teamRecord{}).Where("id = ?", string(t.ID)).Updates(map[string]any{
			"registration_id": reg.ID,
			"status":          string(team.StatusRegistered),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTeamNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.RegistrationID = reg.ID
	t.Status = team.StatusRegistered
	return nil
}

func (r *gormRegistrationRepo) GetByID(ctx context.Context, id string) (*registration.Registration, error) {
	var rec registrationRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	var roster []registration.RosterEntry
	if rec.TeamMembers != "" {
		if err := json.Unmarshal([]byte(rec.TeamMembers), &roster); err != nil {
			return nil, err
		}
	}
	return &registration.Registration{
		ID:            rec.ID,
		ParticipantID: rec.ParticipantID,
		EventID:       rec.EventID,
		TeamName:      rec.TeamName,
		TeamMembers:   roster,
		TicketID:      rec.TicketID,
		QRCode:        rec.QRCode,
		QRCodeURL:     rec.QRCodeURL,
		Status:        registration.Status(rec.Status),
		PaymentStatus: registration.PaymentStatus(rec.PaymentStatus),
		RegisteredAt:  rec.RegisteredAt,
	}, nil
}
