package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}

	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRedactScrubsSensitiveKeys(t *testing.T) {
	a := redact(nil, slog.String("api_key", "AKIA-very-secret"))
	if a.Value.String() != "[REDACTED]" {
		t.Errorf("api_key not redacted: %s", a.Value.String())
	}

	b := redact(nil, slog.String("deployment", "prod-api"))
	if b.Value.String() != "prod-api" {
		t.Errorf("benign key mangled: %s", b.Value.String())
	}
}
