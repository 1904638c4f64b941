// Package logging builds the process logger: human-readable text on stderr
// and, optionally, a size-rotated JSON log file.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Verbose lowers the console level to Debug.
	Verbose bool
	// File, when set, receives every record at Debug level as JSON.
	File string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// New returns the logger and a func closing the log file, if any.
func New(opts Options) (*slog.Logger, func() error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.Handler(slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}))

	closer := func() error { return nil }
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = teeHandler{handler, fileHandler}
		closer = file.Close
	}

	return slog.New(handler), closer
}

// teeHandler forwards each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
