// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog logger the codereview CLI hands to every
// service package.
//
// Records go to stderr as text, or JSON with Config.JSON. With Config.LogDir
// set they are also appended, always as JSON, to {service}_{date}.log in
// that directory:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.ParseLevel("debug"),
//	    LogDir:  "~/.codereview/logs",
//	    Service: "codereview",
//	})
//	defer logger.Close()
//	orch, err := orchestrator.New(reg, orchestrator.WithLogger(logger.Slog()))
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a slog level. The constants cover the four the config accepts.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps a config value to a Level, case-insensitively.
// Anything unrecognized is LevelInfo so a typo never silences the logger.
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

// Config configures New. The zero value logs Info and above to stderr as text.
type Config struct {
	Level Level

	// LogDir enables the JSON log file. A leading ~ is expanded.
	LogDir string

	// Service is added to every record as "service" and names the log file.
	Service string

	// JSON switches stderr output to JSON.
	JSON bool

	// Quiet drops stderr output. The log file, if any, is still written.
	Quiet bool
}

// Logger owns the slog logger and its log file.
type Logger struct {
	slog *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New builds a Logger. A LogDir that cannot be created or opened is
// skipped and the logger falls back to stderr only.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	l := &Logger{}

	var sinks []slog.Handler
	if !cfg.Quiet {
		if cfg.JSON {
			sinks = append(sinks, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if cfg.LogDir != "" {
		if f, err := openLogFile(cfg.LogDir, cfg.Service, time.Now()); err == nil {
			l.file = f
			sinks = append(sinks, slog.NewJSONHandler(f, opts))
		}
	}

	h := fanOut(sinks)
	if cfg.Service != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.slog = slog.New(h)
	return l
}

// Slog returns the logger to pass to service packages.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	if err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}

func openLogFile(dir, service string, now time.Time) (*os.File, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if service == "" {
		service = "codereview"
	}
	name := fmt.Sprintf("%s_%s.log", service, now.Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

// fanOut combines sinks into one handler.
func fanOut(sinks []slog.Handler) slog.Handler {
	switch len(sinks) {
	case 0:
		return slog.DiscardHandler
	case 1:
		return sinks[0]
	default:
		return teeHandler(sinks)
	}
}

// teeHandler hands each record to every sink that accepts its level.
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
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
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
