package config

import (
	"io"
	"log/slog"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/normalization"
)

var (
	levelNames = normalization.NewEnumNormalizer("logging.level", map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError,
	}, slog.LevelInfo)
	formatNames = normalization.NewEnumNormalizer("logging.format", map[string]string{
		"":     "text",
		"text": "text",
		"json": "json",
	}, "text")
)

// SlogLevel maps the configured level; unknown values fall back to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	return levelNames.Normalize(l.Level)
}

// NewLogger builds the slog logger described by the configuration. verbose
// forces debug level regardless of the configured one.
func (l LoggingConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := l.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if formatNames.Normalize(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
