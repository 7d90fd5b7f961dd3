package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologAdapterWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.DebugLevel)

	log.Info("Pipeline", "stage emitted", map[string]interface{}{"percent": 30})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["component"] != "Pipeline" {
		t.Errorf("component = %v, want Pipeline", entry["component"])
	}
	if entry["message"] != "stage emitted" {
		t.Errorf("message = %v, want stage emitted", entry["message"])
	}
	if entry["percent"] != float64(30) {
		t.Errorf("percent = %v, want 30", entry["percent"])
	}
}

func TestZerologAdapterError(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.InfoLevel)

	log.Error("Gateway", errors.New("unreachable"), nil)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["error"] != "unreachable" {
		t.Errorf("error = %v, want unreachable", entry["error"])
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
}

func TestZerologAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.WarnLevel)

	log.Debug("X", "hidden", nil)
	log.Info("X", "hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %s", buf.String())
	}

	log.Warning("X", "shown", nil)
	if buf.Len() == 0 {
		t.Error("expected warning output")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "1")
	if got := LevelFromEnv("error"); got != zerolog.DebugLevel {
		t.Errorf("LevelFromEnv with DEBUG=1 = %v, want debug", got)
	}

	t.Setenv("LOG_LEVEL", "error")
	if got := LevelFromEnv("info"); got != zerolog.ErrorLevel {
		t.Errorf("LevelFromEnv with LOG_LEVEL=error = %v, want error", got)
	}
}
