package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/domain/registration"
	"github.com/evently/evently-api/internal/domain/team"
	"github.com/evently/evently-api/pkg/logger"
	"github.com/evently/evently-api/pkg/storage"
)

// RegistrationBridge converts a completed team into a single event
// registration: roster snapshot, ticket and QR token generation, then
// one atomic commit that creates the registration, bumps the event
// counter and stamps the team registered.
type RegistrationBridge interface {
	Register(ctx context.Context, t *team.Team) (*registration.Registration, error)
}

type registrationBridge struct {
	registrations repositories.RegistrationRepository
	events        repositories.EventRepository
	participants  repositories.ParticipantRepository
	storage       storage.Service
	notifier      RegistrationNotifier
	log           *logger.Logger
}

func NewRegistrationBridge(
	registrations repositories.RegistrationRepository,
	events repositories.EventRepository,
	participants repositories.ParticipantRepository,
	store storage.Service,
	notifier RegistrationNotifier,
	log *logger.Logger,
) RegistrationBridge {
	return &registrationBridge{
		registrations: registrations,
		events:        events,
		participants:  participants,
		storage:       store,
		notifier:      notifier,
		log:           log,
	}
}

func (b *registrationBridge) Register(ctx context.Context, t *team.Team) (*registration.Registration, error) {
	ev, err := b.events.GetByID(ctx, t.EventID)
	if err != nil {
		return nil, err
	}

	roster, err := b.buildRoster(ctx, t)
	if err != nil {
		return nil, err
	}

	ticketID := newTicketID()
	qrToken := "QR-" + ticketID

	paymentStatus := registration.PaymentPending
	if ev.RegistrationFee == 0 {
		paymentStatus = registration.PaymentCompleted
	}

	reg := &registration.Registration{
		ID:            uuid.NewString(),
		ParticipantID: t.LeaderID,
		EventID:       t.EventID,
		TeamName:      t.Name,
		TeamMembers:   roster,
		TicketID:      ticketID,
		QRCode:        qrToken,
		Status:        registration.StatusRegistered,
		PaymentStatus: paymentStatus,
		RegisteredAt:  time.Now().UTC(),
	}
	reg.QRCodeURL = b.uploadQRImage(ctx, ticketID, qrToken)

	if err := b.registrations.Commit(ctx, t, reg); err != nil {
		return nil, err
	}

	if b.notifier != nil {
		if err := b.notifier.Notify(ctx, t, reg); err != nil {
			b.log.Warnw("registration notification failed", "teamId", t.ID, "ticketId", ticketID, "error", err)
		}
	}
	return reg, nil
}

// buildRoster snapshots the contact details of the leader followed by
// the accepted members, in membership order. The snapshot is copied
// into the registration so later profile edits do not rewrite history.
func (b *registrationBridge) buildRoster(ctx context.Context, t *team.Team) ([]registration.RosterEntry, error) {
	ids := []string{t.LeaderID}
	for _, m := range t.Members {
		if m.Status == team.MemberAccepted {
			ids = append(ids, m.ParticipantID)
		}
	}
	people, err := b.participants.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(people) != len(ids) {
		return nil, fmt.Errorf("roster snapshot incomplete: expected %d participants, found %d", len(ids), len(people))
	}
	roster := make([]registration.RosterEntry, 0, len(people))
	for _, p := range people {
		roster = append(roster, registration.RosterEntry{
			Name:       p.FullName(),
			Email:      p.Email,
			RollNumber: p.RollNumber,
		})
	}
	return roster, nil
}

// uploadQRImage renders the scannable token as a PNG and stores it when
// object storage is configured. The token string stays authoritative;
// a storage failure is logged and the bridge proceeds without the URL.
func (b *registrationBridge) uploadQRImage(ctx context.Context, ticketID, qrToken string) string {
	if b.storage == nil {
		return ""
	}
	png, err := qrcode.Encode(qrToken, qrcode.Medium, 256)
	if err != nil {
		b.log.Warnw("failed to render ticket QR image", "ticketId", ticketID, "error", err)
		return ""
	}
	url, err := b.storage.PutObject(ctx, storage.UploadInput{
		Key:         "tickets/" + ticketID + ".png",
		ContentType: "image/png",
		Body:        bytes.NewReader(png),
		Size:        int64(len(png)),
	})
	if err != nil {
		b.log.Warnw("failed to upload ticket QR image", "ticketId", ticketID, "error", err)
		return ""
	}
	return url
}

func newTicketID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("TKT-%d-%s", time.Now().UnixMilli(), strings.ToUpper(hex.EncodeToString(buf)))
}
