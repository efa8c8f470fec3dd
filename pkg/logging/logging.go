// Package logging provides the process-wide structured logger for lineup using zerolog.
package logging

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger    *zerolog.Logger
	humanMode atomic.Bool
)

func init() {
	// JSON to stderr at info level until Init is called.
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the global logger.
// If debug is true, sets log level to Debug.
// If human is true, uses a human-friendly console writer.
func Init(debug bool, human bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	humanMode.Store(human)

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: os.Stderr}
	}

	l := zerolog.New(output).With().Timestamp().Logger()
	logger = &l
}

// InitFromStrings configures the logger from config-file values.
// Level is debug, info, warn or error (unknown means info); format is
// "console" or "json".
func InitFromStrings(level, format string) {
	Init(strings.EqualFold(level, "debug"), strings.EqualFold(format, "console"))
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && lvl > zerolog.InfoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
}

// L returns the base logger.
func L() *zerolog.Logger {
	return logger
}

// WithPhase returns a logger with the phase field set.
func WithPhase(phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

// SetLogger allows overriding the global logger (useful for testing).
func SetLogger(l zerolog.Logger) {
	logger = &l
}

// IsHumanMode reports whether console output was requested.
// Completion events add human-readable companions to numeric fields in this mode.
func IsHumanMode() bool {
	return humanMode.Load()
}
