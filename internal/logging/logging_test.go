package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/orrn/printworker/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("job printed", "job_id", "job-1", "duration_ms", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json: %v", err)
	}
	if entry["job_id"] != "job-1" || entry["msg"] != "job printed" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNew_Plain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "plain"}, &buf)

	logger.Debug("claim", "job_id", "job-2")

	out := buf.String()
	if strings.Contains(out, "time=") {
		t.Errorf("plain format should drop timestamps: %q", out)
	}
	if !strings.Contains(out, "job_id=job-2") {
		t.Errorf("expected key=value output, got %q", out)
	}
}
