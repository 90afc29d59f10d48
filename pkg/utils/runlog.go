package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultRunLogDir holds one JSONL file per pipeline run.
const DefaultRunLogDir = ".housegen/runlogs"

// RunLog writes structured JSONL events for a single pipeline run.
type RunLog struct {
	mu      sync.Mutex
	f       *os.File
	id      string
	path    string
	secrets []string
}

// OpenRunLog creates dir/run-<id>.jsonl. Values listed in secrets are masked
// in every string field written.
func OpenRunLog(dir, id string, secrets ...string) (*RunLog, error) {
	if dir == "" {
		dir = DefaultRunLogDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.jsonl", id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	var keep []string
	for _, s := range secrets {
		if s != "" {
			keep = append(keep, s)
		}
	}
	return &RunLog{f: f, id: id, path: path, secrets: keep}, nil
}

func (r *RunLog) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Close closes the underlying file, if open.
func (r *RunLog) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	return r.f.Close()
}

// LogEvent writes a JSON line with the provided type and fields. A nil
// RunLog discards everything.
func (r *RunLog) LogEvent(eventType string, fields map[string]any) {
	if r == nil || r.f == nil {
		return
	}
	payload := map[string]any{
		"ts":   time.Now().Format(time.RFC3339Nano),
		"run":  r.id,
		"type": eventType,
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = r.redact(s)
		}
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.f.Write(append(b, '\n'))
}

func (r *RunLog) redact(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, "<REDACTED>")
	}
	return s
}
