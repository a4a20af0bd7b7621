// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codereview/services/review/rules"
	storage "github.com/AleutianAI/codereview/services/review/storage/badger"
)

const backendBadger = "badger"

// KeyPrefix namespaces cache entries inside the database.
const KeyPrefix = "review/cache/"

// ErrNilDB is returned when a BadgerStore is created without a database.
var ErrNilDB = errors.New("cache: badger db must not be nil")

// BadgerOption configures a BadgerStore.
type BadgerOption func(*BadgerStore)

// WithLogger sets the logger used to report read failures.
func WithLogger(logger *slog.Logger) BadgerOption {
	return func(s *BadgerStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// BadgerStore is a Store persisted in BadgerDB.
//
// Description:
//
//	Each entry is one key, KeyPrefix + cache key, holding the JSON encoded
//	violation list. The store does not own the database; closing it is
//	the caller's job.
//
// Thread Safety:
//
//	Safe for concurrent use. Badger transactions serialize conflicting writes.
type BadgerStore struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewBadgerStore wraps an open database.
func NewBadgerStore(db *storage.DB, opts ...BadgerOption) (*BadgerStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	s := &BadgerStore{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func dbKey(key string) []byte {
	return []byte(KeyPrefix + key)
}

// Get implements Store. Read and decode failures are logged and reported
// as a miss.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]rules.Violation, bool) {
	start := time.Now()

	var violations []rules.Violation
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &violations)
		})
	})

	hit := err == nil
	recordGet(ctx, backendBadger, time.Since(start), hit)
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	if violations == nil {
		violations = []rules.Violation{}
	}
	return violations, true
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, key string, violations []rules.Violation) error {
	if violations == nil {
		violations = []rules.Violation{}
	}
	data, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), data)
	})
	if err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	recordPut(ctx, backendBadger)
	return nil
}

// Clear implements Store.
func (s *BadgerStore) Clear(ctx context.Context) error {
	n, err := s.db.DeletePrefix(ctx, []byte(KeyPrefix))
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	recordClear(ctx, backendBadger, n)
	return nil
}

// Size implements Store. Returns 0 when the database cannot be read.
func (s *BadgerStore) Size() int {
	n, err := s.db.CountPrefix(context.Background(), []byte(KeyPrefix))
	if err != nil {
		s.logger.Warn("cache size failed", slog.String("error", err.Error()))
		return 0
	}
	return n
}
