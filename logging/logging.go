// Package logging configures the process-wide zerolog logger, the same
// structured-field pattern as adred-codev-ws_poc's logger.go (timestamped,
// JSON by default, a console writer for local development) scaled down to
// this repository's one "component" field instead of a full LoggerConfig
// struct.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger. pretty selects a human-readable console writer
// instead of JSON, for local development.
func New(pretty bool) zerolog.Logger {
	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return logger
}

// Component returns a child logger whose "component" field carries name,
// standing in for the bracketed tags the original Rust and the teacher
// both used informally; main.go passes lowercase names such as "shm",
// "symbols" and "ws-<source>".
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
