// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-triggers reviews when source files change.
//
// Editors save in bursts (write, chmod, rename-over), so changes are
// collected for a debounce window and delivered as one deduplicated batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoPaths is returned by New without anything to watch.
var ErrNoPaths = errors.New("no paths to watch")

// Op is the kind of change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the lowercase name of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file system change.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a debounced batch. It runs on the watcher's debounce
// goroutine, so batches never overlap.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before a batch is delivered. Default 300ms.
	Debounce time.Duration

	// Extensions limits directory watches to these file extensions.
	// Explicitly named files are always reported.
	Extensions []string

	// IgnorePatterns are base names or globs to skip.
	IgnorePatterns []string

	// BufferSize is the pending change capacity. Default 1000.
	BufferSize int

	Logger *slog.Logger
}

// DefaultOptions returns C++ sources and headers with a 300ms debounce.
func DefaultOptions() Options {
	return Options{
		Debounce:       300 * time.Millisecond,
		Extensions:     []string{".cpp", ".cc", ".cxx", ".h", ".hpp"},
		IgnorePatterns: []string{".git", "build", "*.swp", "*.tmp", "*~"},
		BufferSize:     1000,
	}
}

// Watcher watches files and directories and batches their changes.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	watcher  *fsnotify.Watcher
	handler  Handler
	opts     Options
	logger   *slog.Logger
	files    map[string]bool
	dirs     []string
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// New creates a watcher over paths, which may be files or directories.
//
// Files are watched through their parent directory so that editors which
// replace the file on save keep being observed.
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w := &Watcher{
		handler: handler,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "watch")),
		files:   make(map[string]bool),
		changes: make(chan Change, opts.BufferSize),
		done:    make(chan struct{}),
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
		if info.IsDir() {
			w.dirs = append(w.dirs, abs)
		} else {
			w.files[abs] = true
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = fw
	return w, nil
}

// Start begins watching. It returns immediately; the watcher runs until
// ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	added := make(map[string]bool)
	for file := range w.files {
		dir := filepath.Dir(file)
		if added[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		added[dir] = true
	}
	for _, dir := range w.dirs {
		if err := w.addRecursive(dir); err != nil {
			return err
		}
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether Start has run and Stop has not.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.IgnorePatterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// relevant reports whether a change to path should be delivered.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	if w.shouldIgnore(path) {
		return false
	}
	inDir := false
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			inDir = true
			break
		}
	}
	if !inDir {
		return false
	}
	if len(w.opts.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.opts.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)

			// New subdirectories of a watched tree are watched too.
			if event.Has(fsnotify.Create) && len(w.dirs) > 0 {
				if info, err := os.Stat(path); err == nil && info.IsDir() && !w.shouldIgnore(path) {
					if err := w.addRecursive(path); err != nil {
						w.logger.Warn("failed to watch new directory",
							slog.String("path", path), slog.String("error", err.Error()))
					}
					continue
				}
			}

			if event.Op == fsnotify.Chmod || !w.relevant(path) {
				continue
			}

			select {
			case w.changes <- Change{Path: path, Op: convertOp(event.Op), Time: time.Now()}:
			default:
				w.logger.Warn("change buffer full, dropping event", slog.String("path", path))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			if deduped := deduplicate(batch); len(deduped) > 0 && w.handler != nil {
				w.handler(ctx, deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// deduplicate keeps the latest change per path, in first-seen order.
func deduplicate(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if idx, ok := seen[c.Path]; ok {
			out[idx] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
