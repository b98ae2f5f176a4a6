package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestInitWriter_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "srengine", slog.LevelInfo)
	l.Info("hello", slog.String("series", "6003"))
	l.Debug("suppressed")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "srengine" {
		t.Errorf("service = %v, want srengine", rec["service"])
	}
	if rec["series"] != "6003" {
		t.Errorf("series = %v, want 6003", rec["series"])
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if tid := TraceID(ctx); tid != "" {
		t.Errorf("expected empty trace id, got %q", tid)
	}

	ctx = WithTraceID(ctx, "6003-1709305200000")
	if tid := TraceID(ctx); tid != "6003-1709305200000" {
		t.Errorf("expected '6003-1709305200000', got %q", tid)
	}
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	if got, want := GenerateTraceID("6003", ts), "6003-1709305200000"; got != want {
		t.Errorf("GenerateTraceID = %q, want %q", got, want)
	}
}

func TestLogWithTrace(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithTrace(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no trace id, got %v", attrs)
	}

	ctx = WithTraceID(ctx, "abc-123")
	if attrs := LogWithTrace(ctx); len(attrs) != 1 {
		t.Fatalf("expected one attr with trace id set, got %v", attrs)
	}
}
