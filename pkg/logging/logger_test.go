package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// decode returns the JSON events written to buf, one per line.
func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo || cfg.Pretty || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestSetup_LevelFiltersEvents(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
	}{
		{LevelDebug, []string{"debug", "info", "warn", "error"}},
		{LevelInfo, []string{"info", "warn", "error"}},
		{LevelWarn, []string{"warn", "error"}},
		{LevelError, []string{"error"}},
		{"bogus", []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			logger.Debug().Msg("item processed")
			logger.Info().Msg("batch flushed")
			logger.Warn().Msg("item failed")
			logger.Error().Msg("checkpoint save failed")

			events := decode(t, buf)
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %d: %s", len(events), len(tt.want), buf.String())
			}
			for i, ev := range events {
				if ev["level"] != tt.want[i] {
					t.Errorf("event %d level = %v, want %s", i, ev["level"], tt.want[i])
				}
				if _, ok := ev["time"]; !ok {
					t.Errorf("event %d has no timestamp", i)
				}
			}
		})
	}
}

func TestSetup_PrettyWritesConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Int("rows", 50).Msg("Batch flushed")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
	if !strings.Contains(out, "Batch flushed") || !strings.Contains(out, "rows=") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestNewLogger_TagsComponentOnGlobalLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("pipeline")
	logger.Info().Msg("Session started")

	events := decode(t, buf)
	if len(events) != 1 || events[0]["component"] != "pipeline" {
		t.Errorf("events = %v", events)
	}
}

func TestForSession(t *testing.T) {
	buf := &bytes.Buffer{}
	base := Setup(Config{Level: LevelInfo, Output: buf})

	logger := ForSession(base, "session_1")
	logger.Info().Str("vendor_id", "42").Msg("Item processed")

	events := decode(t, buf)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0]["session_id"] != "session_1" || events[0]["vendor_id"] != "42" {
		t.Errorf("event = %v", events[0])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"debug", true},
		{"INFO", true},
		{"warning", true},
		{"error", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidLevel(tt.input); got != tt.want {
				t.Errorf("ValidLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
