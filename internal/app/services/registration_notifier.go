package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evently/evently-api/internal/domain/registration"
	"github.com/evently/evently-api/internal/domain/team"
	"github.com/evently/evently-api/pkg/logger"
)

// RegistrationNotifier tells an external system that a team finished
// registering. Delivery is best effort; the registration itself never
// depends on it.
type RegistrationNotifier interface {
	Notify(ctx context.Context, t *team.Team, reg *registration.Registration) error
}

type registrationNotifier struct {
	client *http.Client
	url    string
	token  string
	log    *logger.Logger
}

// NewRegistrationNotifier posts registration events to a fixed webhook
// URL. An empty URL disables delivery.
func NewRegistrationNotifier(url, token string, client *http.Client, log *logger.Logger) RegistrationNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &registrationNotifier{
		client: client,
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		log:    log,
	}
}

func (n *registrationNotifier) Notify(ctx context.Context, t *team.Team, reg *registration.Registration) error {
	if n.url == "" {
		return nil
	}

	body := map[string]any{
		"event":     "team.registered",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"teamId":        t.ID,
			"teamName":      t.Name,
			"eventId":       t.EventID,
			"ticketId":      reg.TicketID,
			"paymentStatus": reg.PaymentStatus,
			"members":       reg.TeamMembers,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warnw("registration webhook delivery failed", "teamId", t.ID, "error", err)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Warnw("registration webhook returned non-2xx status", "teamId", t.ID, "status", resp.StatusCode)
		return errors.New("registration webhook returned non-2xx status")
	}
	return nil
}
