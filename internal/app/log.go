package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogFile is the log file name inside the configured log directory.
const LogFile = "gallery.log"

// galleryHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<invocationID>\t<message>\t<key=value ...>
type galleryHandler struct {
	w            io.Writer
	level        slog.Leveler
	invocationID string
	attrs        []slog.Attr
}

func (h *galleryHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *galleryHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, h.invocationID, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	// One write per record keeps lines whole when goroutines log concurrently.
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *galleryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &galleryHandler{
		w:            h.w,
		level:        h.level,
		invocationID: h.invocationID,
		attrs:        append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *galleryHandler) WithGroup(string) slog.Handler { return h }

// parseLevel maps a config level name to a slog.Level. Empty means info.
func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// newLogger creates a structured logger that writes to stderr and, when
// logDir is set, also to logDir/gallery.log. It returns the slog.Logger,
// the open log file (nil without logDir, for cleanup), and any error.
func newLogger(stderr io.Writer, logDir, levelName, invocationID string) (*slog.Logger, *os.File, error) {
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}

	if logDir == "" {
		return slog.New(&galleryHandler{w: stderr, level: level, invocationID: invocationID}), nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &galleryHandler{w: io.MultiWriter(f, stderr), level: level, invocationID: invocationID}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the gallery.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
