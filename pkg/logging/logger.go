// Package logging configures the process-wide zerolog logger and hands out
// per-component child loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every request and batch.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs batch and run progress.
	LevelInfo LogLevel = "info"

	// LevelWarn logs failed calls.
	LevelWarn LogLevel = "warn"

	// LevelError logs aborted runs only.
	LevelError LogLevel = "error"
)

// Component names used with NewLogger.
const (
	ComponentClient = "igdb-client"
	ComponentIngest = "ingest"
	ComponentStore  = "store"
	ComponentCLI    = "igdb-sync"
)

// Config holds logger configuration.
type Config struct {
	Level  LogLevel
	Pretty bool      // console output instead of JSON
	Output io.Writer // nil means os.Stderr
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Setup installs the process-wide logger and returns it. Components derive
// their loggers from it through NewLogger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel validates a level name from a flag or the environment. An empty
// name means info.
func ParseLevel(s string) (LogLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[LogLevel(name)]; !ok {
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
	return LogLevel(name), nil
}

// zerolog maps the level onto zerolog, falling back to info.
func (l LogLevel) zerolog() zerolog.Level {
	parsed, err := ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[parsed]
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-call flow
//   - Request bodies and response status
//   - Limiter throttling
//   - Worker failures inside a batch
//
// Info: progress
//   - Client ready (token obtained)
//   - Each fetched batch and its item count
//   - Ingestion run start/finish and per-resource counts
//
// Warn: failed calls
//   - Non-2xx catalogue answers
//   - Network errors and timeouts
//   - A batch failed at some offset
//
// Error: aborted work
//   - Token request rejected
//   - Ingestion run failed
//
// Context Fields:
//   - resource: IGDB endpoint (games, genres, platforms, companies)
//   - offset: starting offset of a call or batch
//   - batch: batch number within a walk, from 1
//   - items: number of decoded records
//   - status: HTTP status code
//   - duration: elapsed time
//   - error_class: client, server, rate_limit or network
