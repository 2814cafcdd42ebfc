// Package logging builds the zerolog loggers used by the CLI and server.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/bmrs/internal/config"
)

// New returns a logger writing to w. Format "json" emits JSON lines; anything
// else uses the console writer. Unknown levels fall back to info.
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Quiet returns a logger that discards everything.
func Quiet() zerolog.Logger {
	return zerolog.Nop()
}
