// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenDB_InMemory(t *testing.T) {
	db := openTestDB(t)

	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())

	ctx := context.Background()
	err := db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("key"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("value"), val)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestOpenDB_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := OpenDB(DefaultConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, dir, db.Path())

	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("persistent-key"), []byte("persistent-value"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := OpenDB(DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	err = reopened.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("persistent-key"))
		return err
	})
	assert.NoError(t, err)
}

func TestOpenDB_PathRequired(t *testing.T) {
	_, err := OpenDB(Config{})
	assert.True(t, errors.Is(err, ErrPathRequired))
}

func TestDB_CloseTwice(t *testing.T) {
	db, err := OpenDB(DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.NoError(t, db.Close())
}

func TestDB_WithTxn_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestDB_CancelledContext(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := db.WithTxn(ctx, func(*badger.Txn) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	err = db.WithReadTxn(ctx, func(*badger.Txn) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDB_Prefixes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTxn(ctx, func(txn *badger.Txn) error {
		for i := 0; i < 5; i++ {
			if err := txn.Set([]byte(fmt.Sprintf("a/%d", i)), []byte("x")); err != nil {
				return err
			}
		}
		return txn.Set([]byte("b/0"), []byte("y"))
	})
	require.NoError(t, err)

	n, err := db.CountPrefix(ctx, []byte("a/"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	removed, err := db.DeletePrefix(ctx, []byte("a/"))
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	n, err = db.CountPrefix(ctx, []byte("a/"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = db.CountPrefix(ctx, []byte("b/"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewGCRunner_Validation(t *testing.T) {
	db := openTestDB(t)

	_, err := NewGCRunner(nil, time.Second, 0.5, nil)
	assert.ErrorIs(t, err, ErrNilDB)

	_, err = NewGCRunner(db.DB, 0, 0.5, nil)
	assert.ErrorIs(t, err, ErrInvalidGC)

	_, err = NewGCRunner(db.DB, time.Second, 1.5, nil)
	assert.ErrorIs(t, err, ErrInvalidGC)
}

func TestGCRunner_StartStop(t *testing.T) {
	db := openTestDB(t)

	runner, err := NewGCRunner(db.DB, 10*time.Millisecond, 0.5, nil)
	require.NoError(t, err)

	runner.Start()
	runner.Start()
	time.Sleep(30 * time.Millisecond)
	runner.Stop()
	runner.Stop()
}

func TestGCRunner_StopWithoutStart(t *testing.T) {
	db := openTestDB(t)

	runner, err := NewGCRunner(db.DB, time.Second, 0.5, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a runner that was never started")
	}
}
