// Package logger builds the *slog.Logger instances used across esca.
//
// Interactive commands log with the charmbracelet/log handler to stderr so
// log lines never interleave with the streamed reply on stdout. The chat
// command can additionally tee JSON records into a log file in the esca
// directory.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New returns a logger configured by opts. Without options it writes
// info-level text records to stderr.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stderr},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var w io.Writer
	switch len(cfg.writers) {
	case 0:
		w = os.Stderr
	case 1:
		w = cfg.writers[0]
	default:
		w = io.MultiWriter(cfg.writers...)
	}

	switch {
	case cfg.pretty:
		handler := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(cfg.level),
			ReportTimestamp: true,
			ReportCaller:    cfg.source,
		})
		return slog.New(handler)

	case cfg.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		}))

	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		}))
	}
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrNop returns l, or a Nop logger when l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
