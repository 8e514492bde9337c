// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for AleutianConnect components.
//
// The package wraps log/slog with a layered output model shared by the
// connect CLI, the connectd daemon, and the session services:
//
//   - stderr output by default (Unix CLI convention)
//   - optional file logging with automatic directory creation
//   - optional cloud export via the LogExporter interface
//
//	┌────────────────────────────────────────────────────────────┐
//	│                         Logger                             │
//	│  ┌─────────────┐  ┌─────────────┐  ┌────────────────────┐  │
//	│  │   stderr    │  │  log file   │  │    LogExporter     │  │
//	│  │  (default)  │  │  (optional) │  │  (GCS, enterprise) │  │
//	│  └─────────────┘  └─────────────┘  └────────────────────┘  │
//	└────────────────────────────────────────────────────────────┘
//
// Basic usage:
//
//	logger := logging.Default()
//	logger.Info("sign-in completed", "endpoint", endpoint)
//	defer logger.Close()
//
// Services take a *slog.Logger obtained via Logger.Slog(). Every
// destination, the exporter included, sits in the slog handler chain, so
// entries logged through Slog() reach all of them.
//
// # Security
//
// This package does not redact anything on its own. Access tokens must
// never reach a log call in the clear; use Redact for the rare places a
// token needs to be correlated:
//
//	logger.Info("token stored", "token", logging.Redact(token))
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents log severity, ordered Debug < Info < Warn < Error.
// Setting a minimum level discards everything below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational events (sign-in, status change).
	LevelInfo

	// LevelWarn is for recoverable problems (store write failed, retrying).
	LevelWarn

	// LevelError is for failed operations where the process continues.
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config string ("debug", "info", "warn", "error",
// any case) onto a Level. Unrecognized strings mean LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// slogLevel bridges Level to the standard library's slog.Level.
// The slog scale runs -4, 0, 4, 8 for the same four severities.
func (l Level) slogLevel() slog.Level {
	if l < LevelDebug || l > LevelError {
		return slog.LevelInfo
	}
	return slog.Level(int(l)*4 - 4)
}

// levelFromSlog is the inverse bridge, clamping custom slog levels onto
// the nearest named severity.
func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// Config configures Logger behavior. The zero value logs Info+ to stderr
// in text format, which is what the CLI wants when nothing is configured.
type Config struct {
	// Level is the minimum level to emit. Default: LevelInfo.
	Level Level

	// LogDir enables file logging into the given directory. Files are
	// named "{Service}_{YYYY-MM-DD}.log" and always JSON. Supports ~
	// expansion ("~/.aleutian/logs"). Default: disabled.
	LogDir string

	// Service tags every entry with a "service" attribute
	// (e.g. "connect", "connectd"). Default: untagged.
	Service string

	// JSON switches stderr output to JSON. File output is always JSON
	// regardless. Default: text.
	JSON bool

	// Quiet suppresses stderr output, leaving only file and exporter
	// destinations. With neither configured the logger discards
	// everything, which is what the CLI's store helpers rely on.
	Quiet bool

	// Exporter optionally receives every emitted entry.
	// Export failures are dropped; logging must not fail the caller.
	Exporter LogExporter
}

// LogExporter ships log entries to an external system (GCS, Loki, a
// collector). Implementations buffer internally; Export must not block,
// Flush drains the buffer, Close releases resources. Flush then Close are
// called in that order during shutdown.
type LogExporter interface {
	// Export enqueues one entry.
	Export(ctx context.Context, entry LogEntry) error

	// Flush sends everything buffered. Called during graceful shutdown.
	Flush(ctx context.Context) error

	// Close releases connections and files, after Flush.
	Close() error
}

// LogEntry is the exporter-facing form of a log record.
type LogEntry struct {
	// Timestamp when the entry was generated (local time).
	Timestamp time.Time

	// Level of the entry.
	Level Level

	// Message is the primary log message.
	Message string

	// Service is Config.Service at the time of logging.
	Service string

	// Attrs holds the key-value attributes of the call.
	Attrs map[string]any
}

// Logger wraps slog.Logger with multi-destination output and export.
// Safe for concurrent use. Call Close to flush the exporter and close
// the log file.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter

	// mu serializes Close against itself.
	mu sync.Mutex
}

// New creates a Logger from config. Destinations that cannot be set up
// (unwritable LogDir) are skipped rather than failing; everything else
// still logs.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.slogLevel()}

	logger := &Logger{config: config, exporter: config.Exporter}

	var destinations []slog.Handler
	if !config.Quiet {
		if config.JSON {
			destinations = append(destinations, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			destinations = append(destinations, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if config.LogDir != "" {
		if file := openLogFile(config); file != nil {
			logger.file = file
			// File logs are machine-consumed, always JSON.
			destinations = append(destinations, slog.NewJSONHandler(file, opts))
		}
	}
	if config.Service != "" {
		tag := []slog.Attr{slog.String("service", config.Service)}
		for i := range destinations {
			destinations[i] = destinations[i].WithAttrs(tag)
		}
	}
	if config.Exporter != nil {
		destinations = append(destinations, &exporterHandler{
			exporter: config.Exporter,
			service:  config.Service,
			min:      config.Level.slogLevel(),
		})
	}

	var handler slog.Handler
	switch len(destinations) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = destinations[0]
	default:
		handler = &fanoutHandler{destinations: destinations}
	}

	logger.slog = slog.New(handler)
	return logger
}

// openLogFile opens today's log file under config.LogDir, creating the
// directory if needed. Returns nil when the directory or file cannot be
// opened.
func openLogFile(config Config) *os.File {
	dir := expandHome(config.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	service := config.Service
	if service == "" {
		service = "connect"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// Default returns an Info-level stderr logger tagged "connect".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "connect"})
}

// Debug logs at Debug level with slog-style key-value args.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs at Info level with slog-style key-value args.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs at Warn level with slog-style key-value args.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs at Error level with slog-style key-value args.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger carrying additional attributes. The parent
// is unchanged; file handle and exporter are shared.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// Slog exposes the underlying *slog.Logger for services that take the
// standard type directly.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, closes it, then syncs and closes the log
// file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// fanoutHandler delivers each record to every destination, letting stderr
// stay text while the file stays JSON and the exporter gets LogEntry.
type fanoutHandler struct {
	destinations []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, d := range h.destinations {
		if d.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, d := range h.destinations {
		if !d.Enabled(ctx, r.Level) {
			continue
		}
		if err := d.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.destinations))
	for i, d := range h.destinations {
		next[i] = d.WithAttrs(attrs)
	}
	return &fanoutHandler{destinations: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.destinations))
	for i, d := range h.destinations {
		next[i] = d.WithGroup(name)
	}
	return &fanoutHandler{destinations: next}
}

// exporterHandler adapts a LogExporter into the slog handler chain.
type exporterHandler struct {
	exporter LogExporter
	service  string
	min      slog.Level
	attrs    []slog.Attr
	group    string
}

func (h *exporterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *exporterHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		Service:   h.service,
		Attrs:     make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	for _, a := range h.attrs {
		entry.Attrs[h.qualify(a.Key)] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[h.qualify(a.Key)] = a.Value.Resolve().Any()
		return true
	})
	// Export failures stay out of the caller's way.
	_ = h.exporter.Export(ctx, entry)
	return nil
}

func (h *exporterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *exporterHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group == "" {
		clone.group = name
	} else {
		clone.group = clone.group + "." + name
	}
	return &clone
}

// qualify prefixes a key with the open group, matching how the JSON
// handler nests grouped attributes.
func (h *exporterHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Redact masks a secret for logging, keeping any recognizable prefix and
// the last four characters: "alp_f00d...89ab". Short values are fully
// masked.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	prefix := ""
	if i := strings.Index(secret, "_"); i > 0 && i <= 4 {
		prefix = secret[:i+1]
	}
	body := secret[len(prefix):]
	if len(body) <= 8 {
		return prefix + "****"
	}
	return prefix + body[:4] + "..." + body[len(body)-4:]
}

// NopExporter discards all entries. Useful when export is disabled.
type NopExporter struct{}

func (NopExporter) Export(context.Context, LogEntry) error { return nil }
func (NopExporter) Flush(context.Context) error            { return nil }
func (NopExporter) Close() error                           { return nil }

// BufferedExporter collects entries in memory. Tests use it to assert on
// log output:
//
//	exporter := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Exporter: exporter, Quiet: true})
//	logger.Info("sign-in completed", "endpoint", ep)
//	entries := exporter.Entries()
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{}
}

// Export appends the entry to the buffer.
func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op, entries are already in memory.
func (e *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of the collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LogEntry{}, e.entries...)
}
