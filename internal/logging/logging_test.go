package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc123")
	if got := CorrelationID(ctx); got != "abc123" {
		t.Fatalf("CorrelationID() = %q, want abc123", got)
	}
}

func TestCorrelationIDMissing(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Fatalf("CorrelationID() on bare context = %q, want empty", got)
	}
}

func TestGenerateCorrelationIDUnique(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	if a == "" || len(a) != 16 {
		t.Fatalf("GenerateCorrelationID() = %q, want 16 hex chars", a)
	}
	if a == b {
		t.Fatalf("two generated IDs collided: %q", a)
	}
}

func TestScanLoggerNotNil(t *testing.T) {
	if ScanLogger("abc123", "social", "knows", "edge") == nil {
		t.Fatal("ScanLogger() returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
