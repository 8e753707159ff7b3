package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evently/evently-api/pkg/logger"
)

var invalidSegment = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Writer persists team lifecycle events to disk as an audit trail, one
// JSON file per event under baseDir/<event-type>/<teamId>/.
type Writer struct {
	baseDir string
	log     *logger.Logger
}

// NewWriter returns a writer rooted at baseDir, or nil when baseDir is
// empty. A nil Writer is valid and records nothing.
func NewWriter(baseDir string, log *logger.Logger) *Writer {
	base := strings.TrimSpace(baseDir)
	if base == "" {
		return nil
	}
	return &Writer{baseDir: filepath.Clean(base), log: log}
}

func (w *Writer) Enabled() bool {
	return w != nil && w.baseDir != ""
}

// Write records one event. Failures are reported to the caller but are
// never worth failing the originating operation over.
func (w *Writer) Write(teamID, eventType string, payload any) error {
	if !w.Enabled() {
		return nil
	}

	dir := filepath.Join(w.baseDir, sanitizeSegment(eventType), sanitizeSegment(teamID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ts := time.Now().UTC()
	fileName := fmt.Sprintf("%s-%s.json", ts.Format("20060102T150405Z"), uuid.NewString())
	path := filepath.Join(dir, fileName)

	record := map[string]any{
		"event_type":  eventType,
		"team_id":     teamID,
		"recorded_at": ts.Format(time.RFC3339Nano),
		"payload":     payload,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Record is Write with the error swallowed into the log, for call sites
// where the audit trail is strictly best effort.
func (w *Writer) Record(teamID, eventType string, payload any) {
	if err := w.Write(teamID, eventType, payload); err != nil && w.log != nil {
		w.log.Warnw("audit event not recorded", "eventType", eventType, "teamId", teamID, "error", err)
	}
}

func sanitizeSegment(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "unknown"
	}
	sanitized := invalidSegment.ReplaceAllString(candidate, "_")
	sanitized = strings.Trim(sanitized, "._-")
	if sanitized == "" {
		return "unknown"
	}
	return sanitized
}
