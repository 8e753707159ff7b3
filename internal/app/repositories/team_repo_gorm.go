package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evently/evently-api/internal/domain/team"
)

// teamRecord is the table shape. The member list is stored as a
// serialized JSON text column, mirroring the document layout the API
// exposes; it keeps the schema identical on postgres and the sqlite
// backend the tests run against.
type teamRecord struct {
	ID             string `gorm:"primaryKey"`
	EventID        string `gorm:"index;not null"`
	Name           string `gorm:"not null"`
	LeaderID       string `gorm:"index;not null"`
	TeamSize       int    `gorm:"not null"`
	InviteCode     string `gorm:"uniqueIndex;not null"`
	InviteLink     string
	Members        string `gorm:"type:text"`
	Status         string `gorm:"index;not null"`
	RegistrationID string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func (teamRecord) TableName() string { return "teams" }

func toTeamRecord(t *team.Team) (*teamRecord, error) {
	members, err := json.Marshal(t.Members)
	if err != nil {
		return nil, err
	}
	return &teamRecord{
		ID:             string(t.ID),
		EventID:        t.EventID,
		Name:           t.Name,
		LeaderID:       t.LeaderID,
		TeamSize:       t.TeamSize,
		InviteCode:     t.InviteCode,
		InviteLink:     t.InviteLink,
		Members:        string(members),
		Status:         string(t.Status),
		RegistrationID: t.RegistrationID,
		CreatedAt:      t.CreatedAt.UTC(),
		CompletedAt:    t.CompletedAt,
	}, nil
}

func (rec *teamRecord) toDomain() (*team.Team, error) {
	var members []team.Member
	if rec.Members != "" {
		if err := json.Unmarshal([]byte(rec.Members), &members); err != nil {
			return nil, err
		}
	}
	return &team.Team{
		ID:             team.ID(rec.ID),
		EventID:        rec.EventID,
		Name:           rec.Name,
		LeaderID:       rec.LeaderID,
		TeamSize:       rec.TeamSize,
		InviteCode:     rec.InviteCode,
		InviteLink:     rec.InviteLink,
		Members:        members,
		Status:         team.Status(rec.Status),
		RegistrationID: rec.RegistrationID,
		CreatedAt:      rec.CreatedAt,
		CompletedAt:    rec.CompletedAt,
	}, nil
}

type gormTeamRepo struct {
	db *gorm.DB
}

func NewGormTeamRepo(db *gorm.DB) (TeamRepository, error) {
	if err := db.AutoMigrate(&teamRecord{}); err != nil {
		return nil, err
	}
	return &gormTeamRepo{db: db}, nil
}

func (r *gormTeamRepo) Create(ctx context.Context, t *team.Team) error {
	rec, err := toTeamRecord(t)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateInvite
		}
		return err
	}
	return nil
}

func (r *gormTeamRepo) GetByID(ctx context.Context, id team.ID) (*team.Team, error) {
	var rec teamRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

func (r *gormTeamRepo) GetByInviteCode(ctx context.Context, code string) (*team.Team, error) {
	var rec teamRecord
	err := r.db.WithContext(ctx).First(&rec, "invite_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

func (r *gormTeamRepo) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&teamRecord{}).Where("invite_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *gormTeamRepo) FindByEventAndParticipant(ctx context.Context, eventID, participantID string) (*team.Team, error) {
	return r.findMembership(ctx, eventID, participantID, "", false)
}

func (r *gormTeamRepo) FindActiveByEventAndParticipant(ctx context.Context, eventID, participantID string, exclude team.ID) (*team.Team, error) {
	return r.findMembership(ctx, eventID, participantID, exclude, true)
}

// findMembership scans the event's teams in Go rather than pushing the
// JSON member predicate into SQL; one event rarely has more than a few
// dozen teams and this keeps the query portable across postgres and the
// sqlite test backend.
func (r *gormTeamRepo) findMembership(ctx context.Context, eventID, participantID string, exclude team.ID, activeOnly bool) (*team.Team, error) {
	var recs []teamRecord
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&recs).Error; err != nil {
		return nil, err
	}
	for i := range recs {
		t, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		if t.ID == exclude {
			continue
		}
		if t.LeaderID == participantID {
			return t, nil
		}
		m := t.MemberByParticipant(participantID)
		if m == nil {
			continue
		}
		if activeOnly && m.Status == team.MemberDeclined {
			continue
		}
		return t, nil
	}
	return nil, ErrTeamNotFound
}

func (r *gormTeamRepo) ListByParticipant(ctx context.Context, participantID string) ([]*team.Team, error) {
	var recs []teamRecord
	err := r.db.WithContext(ctx).
		Where("leader_id = ? OR members LIKE ?", participantID, `%"`+participantID+`"%`).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*team.Team, 0, len(recs))
	for i := range recs {
		t, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		// The LIKE is a coarse prefilter over the JSON column; confirm
		// the membership before returning.
		if !t.HasParticipant(participantID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *gormTeamRepo) AppendMemberIfVacant(ctx context.Context, id team.ID, m team.Member) (*team.Team, error) {
	var updated *team.Team
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// sqlite (tests) serializes writers on its own and rejects the
		// FOR UPDATE syntax; postgres needs the row lock.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rec teamRecord
		err := q.First(&rec, "id = ?", string(id)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTeamNotFound
		}
		if err != nil {
			return err
		}
		t, err := rec.toDomain()
		if err != nil {
			return err
		}
		if t.Status != team.StatusForming || t.IsFull() {
			return ErrTeamFull
		}
		appendTeamMember(t, m)
		members, err := json.Marshal(t.Members)
		if err != nil {
			return err
		}
		if err := tx.Model(&teamRecord{}).Where("id = ?", string(id)).Update("members", string(members)).Error; err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *gormTeamRepo) Update(ctx context.Context, t *team.Team) error {
	rec, err := toTeamRecord(t)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&teamRecord{}).Where("id = ?", rec.ID).Updates(map[string]any{
		"members":         rec.Members,
		"status":          rec.Status,
		"registration_id": rec.RegistrationID,
		"completed_at":    rec.CompletedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (r *gormTeamRepo) Delete(ctx context.Context, id team.ID) error {
	res := r.db.WithContext(ctx).Delete(&teamRecord{}, "id = ?", string(id))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTeamNotFound
	}
	return nil
}
