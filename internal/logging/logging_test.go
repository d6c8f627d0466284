package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in).Level(); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("session created", "session_id", "abc")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "session created" || line["session_id"] != "abc" {
		t.Errorf("unexpected record: %v", line)
	}
}

func TestNewTo_Text(t *testing.T) {
	var buf bytes.Buffer
	NewTo(&buf, "debug", "TEXT").Debug("quote", "kind", "swap")
	if !strings.Contains(buf.String(), "kind=swap") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
