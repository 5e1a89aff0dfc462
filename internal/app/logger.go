package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Outside production it logs at debug,
// which includes claim/record disagreements seen by the authenticator.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg == nil {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	if !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "zapflow"), slog.String("env", cfg.AppEnv))
}
