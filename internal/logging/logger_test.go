package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Setenv(EnvLevel, "")
	tests := map[string]zerolog.Level{
		"":      zerolog.WarnLevel,
		"debug": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"bogus": zerolog.WarnLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLevel, "error")
	if got := ParseLevel("debug"); got != zerolog.ErrorLevel {
		t.Errorf("expected env to win, got %v", got)
	}
}

func TestInitJSONCarriesApp(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	logger := Init("netshell", Options{Level: "info", JSON: true, Out: &buf})
	logger.Info().Msg("hello")
	logger.Debug().Msg("hidden")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["app"] != "netshell" || line["message"] != "hello" {
		t.Errorf("unexpected line %v", line)
	}
}
