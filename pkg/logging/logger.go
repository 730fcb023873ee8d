// Package logging configures zerolog for the module. The proxy binary
// calls Setup once at startup; packages derive component-scoped child
// loggers so one process's client, cache, and warmer lines can be told
// apart.
//
// Output is JSON on stderr by default. Pretty switches to the console
// writer for local runs. Events carry the fields the marketplace flows
// filter on: endpoint, page, status_code, error_class, cache_hit,
// remaining (request budget), etag, ttl, user_id.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the global logger.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn or error.
	// Unknown or empty values fall back to info.
	Level string

	// Pretty switches from JSON to human-readable console output.
	Pretty bool

	// Output is where log lines go. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the production defaults: info-level JSON on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Output: os.Stderr,
	}
}

// Setup installs the global logger per cfg and returns it.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level(cfg.Level))

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// level maps a config string to a zerolog level, defaulting to info.
func level(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		// common spelling in hand-written configs
		s = "warn"
	}

	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// ForComponent returns a child of the global logger tagged with the
// component name.
func ForComponent(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
