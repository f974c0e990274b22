// Package logx builds the process logger for nexus binaries. The library
// itself takes a logger by injection; nothing in here is consulted by
// package nexus.
package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a console logger at the requested level. Unknown levels fall
// back to info; the DEBUG environment variable forces debug.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
