package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "text", "auto"} {
		logger := New(config.LoggingConfig{Level: "info", Format: format, Output: "stderr"}, "1.0.0")
		if logger == nil {
			t.Fatalf("New(format=%s) returned nil", format)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	logger.With("component", "loader").Info("scripts loaded", "modules", 3)
	logger.Debug("filtered out")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":       "scripts loaded",
		"service":   ServiceName,
		"version":   "test",
		"component": "loader",
		"modules":   float64(3),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %v", k, entry[k], v)
		}
	}
}

func TestNewWithWriter_AutoIsJSONForBuffers(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(config.LoggingConfig{Format: "auto"}, "test", &buf).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("auto format on a buffer = %q, want JSON", buf.String())
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(config.LoggingConfig{Format: "text"}, "test", &buf).Warn("careful", "func", "door")
	out := buf.String()
	for _, want := range []string{"level=WARN", "msg=careful", "service=glscript", "func=door"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogger_With(t *testing.T) {
	logger := Default()
	child := logger.With("component", "bridge")
	if child == nil || child == logger {
		t.Error("With() should return a distinct logger")
	}
}
