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
	"sync"
	"time"

	"github.com/AleutianAI/codereview/services/review/rules"
)

const backendMemory = "memory"

// MemoryStore is an unbounded in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]rules.Violation
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]rules.Violation)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]rules.Violation, bool) {
	start := time.Now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	recordGet(ctx, backendMemory, time.Since(start), ok)
	if !ok {
		return nil, false
	}
	return clone(entry), true
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, key string, violations []rules.Violation) error {
	entry := clone(violations)

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	recordPut(ctx, backendMemory)
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string][]rules.Violation)
	s.mu.Unlock()

	recordClear(ctx, backendMemory, n)
	return nil
}

// Size implements Store.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
