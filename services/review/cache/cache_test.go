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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
	storage "github.com/AleutianAI/codereview/services/review/storage/badger"
)

func sampleViolations() []rules.Violation {
	return []rules.Violation{
		{
			RawViolation: rules.RawViolation{
				Location:    rules.Location{File: "Spell.cpp", Line: 12, Column: 5},
				Message:     "memory allocated for 'aura' is never released in Cast",
				Explanation: "The pointer goes out of scope without delete.",
				Snippet:     "Aura* aura = new Aura();",
				Fix:         &rules.SuggestedFix{Description: "Use std::unique_ptr."},
				Confidence:  0.75,
			},
			RuleID:     "MEM-001",
			Confidence: 0.75,
			Metadata: rules.Metadata{
				Category: rules.CategoryMemory,
				Severity: rules.SeverityCritical,
				Priority: 85,
				Source:   rules.SourceDetector,
			},
		},
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("badger", func(t *testing.T) {
		db, err := storage.OpenDB(storage.InMemoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		s, err := NewBadgerStore(db)
		require.NoError(t, err)
		fn(t, s)
	})
}

func TestStore_GetPut(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, ok := s.Get(ctx, "missing")
		assert.False(t, ok)

		want := sampleViolations()
		require.NoError(t, s.Put(ctx, "Spell.cpp:100:10", want))

		got, ok := s.Get(ctx, "Spell.cpp:100:10")
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, 1, s.Size())
	})
}

func TestStore_EmptyEntryIsAHit(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "clean.cpp:1:1", nil))

		got, ok := s.Get(ctx, "clean.cpp:1:1")
		assert.True(t, ok)
		assert.Empty(t, got)
	})
}

func TestStore_EntriesAreCopies(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		in := sampleViolations()
		require.NoError(t, s.Put(ctx, "k", in))

		in[0].Message = "mutated after put"
		got, _ := s.Get(ctx, "k")
		got[0].Message = "mutated after get"

		again, ok := s.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, sampleViolations()[0].Message, again[0].Message)
	})
}

func TestStore_Clear(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Put(ctx, fmt.Sprintf("f%d.cpp:1:1", i), sampleViolations()))
		}
		assert.Equal(t, 3, s.Size())

		require.NoError(t, s.Clear(ctx))
		assert.Equal(t, 0, s.Size())
		_, ok := s.Get(ctx, "f0.cpp:1:1")
		assert.False(t, ok)
	})
}

func TestStore_Concurrent(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("f%d.cpp:1:1", i%4)
				_ = s.Put(ctx, key, sampleViolations())
				_, _ = s.Get(ctx, key)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 4, s.Size())
	})
}

func TestBadgerStore_IgnoresForeignKeys(t *testing.T) {
	db, err := storage.OpenDB(storage.InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	s, err := NewBadgerStore(db)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", nil))

	_, err = db.DeletePrefix(ctx, []byte("unrelated/"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Size())
}

func TestNewBadgerStore_NilDB(t *testing.T) {
	_, err := NewBadgerStore(nil)
	assert.ErrorIs(t, err, ErrNilDB)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "src/Spell.cpp:1200:340", Fingerprint("src/Spell.cpp", 1200, 340))

	// Same path and counts collide regardless of content.
	assert.Equal(t, Fingerprint("a.cpp", 10, 2), Fingerprint("a.cpp", 10, 2))
	assert.NotEqual(t, Fingerprint("a.cpp", 10, 2), Fingerprint("a.cpp", 11, 2))
}

func TestResolveKey(t *testing.T) {
	prog := &ast.Program{Metadata: ast.Metadata{NodeCount: 42, LinesOfCode: 7}}
	actx := ast.Context{File: "Unit.cpp"}

	assert.Equal(t, "Unit.cpp:42:7", ResolveKey("", prog, actx))
	assert.Equal(t, "custom", ResolveKey("custom", prog, actx))
}
