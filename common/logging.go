package common

import (
	"io"
	"log/slog"
	"os"
)

// LoggingOpts selects the log format and the attributes every line carries.
type LoggingOpts struct {
	Debug   bool
	JSON    bool
	Service string
	Version string
	// UID tags every line when several instances log to the same place.
	UID string

	// Output defaults to stderr.
	Output io.Writer
}

// SetupLogger builds a text or JSON slog logger from opts.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	if opts.UID != "" {
		log = log.With("uid", opts.UID)
	}
	return log
}
