package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger matching the configured format. JSON
// output is intended for production log shipping, text for local work.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
