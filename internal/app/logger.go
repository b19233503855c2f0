package app

import (
	"io"
	"log/slog"
)

// newLogger builds the app's isolated logger from a validated Config. The
// process-global slog default is left untouched so embedded engine instances
// keep their own output.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[cfg.LogLevel]}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
