package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be a nop logger when no level is configured")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer SetLogger(nil)

	core := GetLogger().Core()
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn level should be enabled")
	}
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info level should be disabled")
	}
}

func TestInitializeUnknownLevel(t *testing.T) {
	if err := Initialize("verbose"); err == nil {
		t.Error("Initialize() should reject unknown levels")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogServiceCall(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogServiceCall("update", "install", map[string]any{"entity_id": "update.core"}, nil)
	LogServiceCall("update", "skip", map[string]any{"entity_id": "update.core"}, errors.New("boom"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	if entries[0].Message != "Service call dispatched" {
		t.Errorf("first entry = %q", entries[0].Message)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("failed call should log at warn, got %v", entries[1].Level)
	}
}

func TestTruncate(t *testing.T) {
	long := make([]byte, maxLoggedPayload+10)
	for i := range long {
		long[i] = 'a'
	}

	got := truncate(long)
	if len(got) != maxLoggedPayload+3 {
		t.Errorf("truncate() length = %d, want %d", len(got), maxLoggedPayload+3)
	}

	if truncate([]byte("short")) != "short" {
		t.Error("short payloads should be returned unchanged")
	}
}
