package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		wantLvl zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},        // default
		{"unknown", zapcore.InfoLevel}, // default
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level)
			if err != nil {
				t.Fatalf("New(%q) returned error: %v", tt.level, err)
			}
			if l == nil {
				t.Fatalf("New(%q) returned nil logger", tt.level)
			}
		})
	}
}

func TestNewWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	l, err := NewWithOptions(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("NewWithOptions returned error: %v", err)
	}

	l.Info("hello from test")
	l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output in file")
	}
}

func TestGlobalSetGlobal(t *testing.T) {
	original := Global()
	if original == nil {
		t.Fatal("Global() returned nil before SetGlobal")
	}

	core, obs := observer.New(zapcore.InfoLevel)
	testLogger := zap.New(core)

	SetGlobal(testLogger)
	defer SetGlobal(original)

	Info("test message", zap.String("key", "value"))

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Message != "test message" {
		t.Errorf("expected message %q, got %q", "test message", entries[0].Message)
	}
}

func TestLevelFiltering(t *testing.T) {
	original := Global()
	core, obs := observer.New(zapcore.WarnLevel)
	SetGlobal(zap.New(core))
	defer SetGlobal(original)

	Debug("should not appear")
	Info("should not appear")
	Warn("should appear")
	Error("should appear")

	entries := obs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d", len(entries))
	}
}
