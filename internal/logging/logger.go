// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "NETSHELL_LOG_LEVEL"

// Options controls logger construction.
type Options struct {
	Level string // trace|debug|info|warn|error; empty means warn
	JSON  bool
	Out   io.Writer
}

// Init builds the logger for app and installs it as the zerolog global.
func Init(app string, opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).Level(ParseLevel(opts.Level)).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel resolves a level name, letting NETSHELL_LOG_LEVEL win.
// Unknown names fall back to warn.
func ParseLevel(name string) zerolog.Level {
	if env := os.Getenv(EnvLevel); env != "" {
		name = env
	}
	if name == "" {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.WarnLevel
	}
	return lvl
}
