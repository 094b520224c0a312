package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", WarnLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "debug", Fields{})
	logger.Info(ctx, "info", Fields{})
	logger.Warn(ctx, "warn", Fields{})
	logger.Error(ctx, "error", Fields{}, errors.New("boom"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("unexpected levels: %s, %s", entries[0].Level, entries[1].Level)
	}
	if entries[1].Error != "boom" {
		t.Errorf("Error = %q, want boom", entries[1].Error)
	}
	if entries[1].File == "" || entries[1].Line == 0 {
		t.Error("expected caller information on error entries")
	}
}

func TestStructuredLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithStation(WithRequestID(context.Background(), "req-42"), "8518750")
	logger.WarnErr(ctx, "[NOAA_FALLBACK] substituted", Fields{"product": "tides"}, errors.New("no data"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.RequestID != "req-42" {
		t.Errorf("RequestID = %q", e.RequestID)
	}
	if e.StationID != "8518750" {
		t.Errorf("StationID = %q", e.StationID)
	}
	if e.Error != "no data" {
		t.Errorf("Error = %q", e.Error)
	}
	if e.Fields["product"] != "tides" {
		t.Errorf("Fields = %v", e.Fields)
	}
}

func TestContextLogger_MergeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	cl := logger.WithFields(Fields{"component": "ledger", "method": "default"})
	cl.Info(context.Background(), "call", Fields{"method": "waterLevel"})

	entries := decodeEntries(t, &buf)
	if got := entries[0].Fields["method"]; got != "waterLevel" {
		t.Errorf("method = %v, want waterLevel", got)
	}
	if got := entries[0].Fields["component"]; got != "ledger" {
		t.Errorf("component = %v, want ledger", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger_WritesNothing(t *testing.T) {
	logger := NewNopLogger()
	logger.Error(context.Background(), "ignored", Fields{}, errors.New("x"))
}
