package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup initializes a zerolog.Logger based on the requested format.
// format can be "text" (human-friendly console) or "json" (structured).
// level is a zerolog level name; an empty or unknown level means info.
func Setup(format string, level ...string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if len(level) > 0 && level[0] != "" {
		if l, err := zerolog.ParseLevel(level[0]); err == nil {
			lvl = l
		}
	}
	if format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// ForKind returns a child logger tagged with the CSV file being processed.
func ForKind(log zerolog.Logger, file string) zerolog.Logger {
	return log.With().Str("file", file).Logger()
}
