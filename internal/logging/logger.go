// Package logging builds the daemon's structured logger.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w. Console output is colorized by tint;
// JSON output carries the version for log shipping.
func New(w io.Writer, level slog.Level, format, version, appName string) *slog.Logger {
	if format == FormatJSON {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
		return slog.New(h).With(
			"app", appName,
			"version", version,
		)
	}

	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  level <= slog.LevelDebug,
		TimeFormat: time.DateTime,
	})
	return slog.New(h).With("app", appName)
}
