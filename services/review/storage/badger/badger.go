// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens and manages the BadgerDB instance that backs the
// persistent review cache.
//
// The in-process cache forgets everything when the CLI exits. Pointing the
// cache at BadgerDB lets repeated `codereview analyze` runs over unchanged
// files hit.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrPathRequired is returned when a persistent database has no path.
	ErrPathRequired = errors.New("path is required for persistent database")

	// ErrNilDB is returned when a GC runner is given no database.
	ErrNilDB = errors.New("db must not be nil")

	// ErrInvalidGC is returned for a non-positive interval or a ratio outside [0,1].
	ErrInvalidGC = errors.New("invalid gc settings")
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger

	// GCInterval is the value log GC period. Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a value log rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns the configuration used by the CLI cache.
//
// Cache entries are cheap to recompute, so commits are not fsynced.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     false,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter routes badger's printf-style logger into slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (l *slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// open applies cfg to badger's options and opens the raw database.
func open(cfg Config) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, ErrPathRequired
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger.With(slog.String("component", "badger"))})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// =============================================================================
// GC runner
// =============================================================================

// GCRunner periodically rewrites the value log.
//
// Thread Safety:
//
//	Start and Stop are safe to call more than once and from any goroutine.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewGCRunner creates a runner. It does nothing until Start is called.
//
// Inputs:
//
//	db - The database. Must not be nil.
//	interval - GC period. Must be positive.
//	ratio - Discard ratio in [0,1].
//	logger - Optional.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidGC)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: ratio must be between 0 and 1", ErrInvalidGC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start launches the GC goroutine.
func (r *GCRunner) Start() {
	r.startOnce.Do(func() { go r.run() })
}

// Stop signals the GC goroutine and waits for it. A runner that was never
// started returns immediately.
func (r *GCRunner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.doneCh
		}
	})
}

func (r *GCRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *GCRunner) collect() {
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		r.logger.Debug("badger value log GC completed")
	case errors.Is(err, badger.ErrNoRewrite):
		// Nothing to reclaim.
	default:
		r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
	}
}

// =============================================================================
// Managed DB
// =============================================================================

// DB is a BadgerDB instance with its GC runner.
type DB struct {
	*badger.DB
	gc        *GCRunner
	path      string
	inMemory  bool
	closeOnce sync.Once
	closeErr  error
}

// OpenDB opens the database and starts value log GC when configured.
//
// Outputs:
//
//	*DB - The database. Caller must Close it.
//	error - ErrPathRequired, or a wrapped open error.
func OpenDB(cfg Config) (*DB, error) {
	raw, err := open(cfg)
	if err != nil {
		return nil, err
	}

	db := &DB{DB: raw, path: cfg.Path, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(raw, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		db.gc = runner
		runner.Start()
	}
	return db, nil
}

// Close stops GC and closes the database. Later calls return the first result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.gc != nil {
			d.gc.Stop()
		}
		d.closeErr = d.DB.Close()
	})
	return d.closeErr
}

// Path returns the database directory, empty for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the database lives only in RAM.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// WithTxn runs fn in a read-write transaction and commits when fn returns nil.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// CountPrefix returns the number of keys under prefix.
func (d *DB) CountPrefix(ctx context.Context, prefix []byte) (int, error) {
	count := 0
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// DeletePrefix removes every key under prefix and returns how many were removed.
func (d *DB) DeletePrefix(ctx context.Context, prefix []byte) (int, error) {
	var keys [][]byte
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	txn := d.DB.NewTransaction(true)
	defer func() { txn.Discard() }()
	for _, key := range keys {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return 0, fmt.Errorf("commit deletes: %w", err)
			}
			txn = d.DB.NewTransaction(true)
			err = txn.Delete(key)
		}
		if err != nil {
			return 0, fmt.Errorf("delete %q: %w", key, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("commit deletes: %w", err)
	}
	return len(keys), nil
}
