// Package logging configures the engine's structured logging, shared by
// every layer from the socket reactor up through the conversation manager.
//
// Grounded on the teacher's internal/logging/logging.go: a single
// Configure entrypoint selecting a text or JSON log/slog handler by level,
// adapted here for a library rather than a standalone server — Configure
// returns the logger instead of mutating slog.SetDefault, since a caller
// embedding this engine in a larger process should not have its global
// logger silently replaced — and extended with per-component child
// loggers (component=tcpchannel, component=udpchannel, ...) since a DoIP
// engine's log lines need to be attributable to one of several
// concurrently-running state machines.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls how Configure builds the root logger.
type Config struct {
	Level            string
	Structured       bool
	StructuredFormat string
	IncludePID       bool
	ExtraFields      map[string]string
}

// Configure builds the root slog.Logger from Config.
func Configure(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	var handler slog.Handler
	out := io.Writer(os.Stderr)

	attrs := make([]slog.Attr, 0, len(cfg.ExtraFields)+1)
	for k, v := range cfg.ExtraFields {
		attrs = append(attrs, slog.String(k, v))
	}
	if cfg.IncludePID {
		attrs = append(attrs, slog.Int("pid", os.Getpid()))
	}

	if cfg.Structured && strings.ToLower(cfg.StructuredFormat) == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger tagged with the given component name,
// the convention every package in this engine uses so concurrent
// state-machine logs are attributable: tcpchannel, udpchannel,
// conversation, convmgr, reactor.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}
