package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
		"warning": zerolog.WarnLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("raw=%q expected %v, got %v ok=%v", raw, want, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be ignored")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogTimestamp, "nope")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if !cfg.JSON {
		t.Fatalf("expected json output")
	}
	if !cfg.Timestamp {
		t.Fatalf("invalid bool must keep the default timestamp setting")
	}
}

func TestApplyJSONWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logger := Apply(Config{Level: zerolog.InfoLevel, JSON: true, Out: &buf})
	defer Apply(DefaultConfig(ProfileTest))

	logger.Info().Str("link", "/dev/ttyUSB0").Msg("link up")
	logger.Debug().Msg("filtered")
	out := buf.String()
	if !strings.Contains(out, `"link":"/dev/ttyUSB0"`) {
		t.Fatalf("missing link field: %s", out)
	}
	if strings.Contains(out, "filtered") {
		t.Fatalf("debug line should be filtered at info: %s", out)
	}
}
