// Package logging builds the zerolog loggers shared by both binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Out is the console writer every logger writes through.
var Out io.Writer = zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}

// New returns a logger tagged with role at the named level. An empty or
// unknown level means info; GLOG=no in the environment disables output.
func New(level, role string) zerolog.Logger {
	lvl := ParseLevel(level)
	if strings.TrimSpace(os.Getenv("GLOG")) == "no" {
		lvl = zerolog.Disabled
	}
	return zerolog.New(Out).
		Level(lvl).
		With().Timestamp().Str("role", role).
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
