// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes review results per analysis input.
//
// Entries are keyed by a fingerprint of the file path and two summary
// statistics of its syntax tree. They are never invalidated: a caller
// whose source changed either clears the cache or relies on the new parse
// producing a different fingerprint.
//
// Two stores implement the same contract: MemoryStore for a long-running
// process and BadgerStore for results that survive across CLI runs.
// Neither evicts; growth is bounded only by Clear.
package cache

import (
	"context"
	"fmt"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// Store holds confidence-filtered violation sets by key.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. Get and Put copy the
//	slice so stored entries are never shared with callers.
type Store interface {
	// Get returns the stored violations for key. Lookup failures are
	// reported as a miss.
	Get(ctx context.Context, key string) ([]rules.Violation, bool)

	// Put stores violations under key, replacing any previous entry.
	Put(ctx context.Context, key string, violations []rules.Violation) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Size returns the number of entries.
	Size() int
}

// Fingerprint derives a cache key from a file path and syntax tree summary.
//
// Description:
//
//	Two different trees with the same node and line counts for the same
//	path collide. That looseness is kept deliberately: callers that need
//	content-exact keys pass their own key through ResolveKey.
func Fingerprint(file string, nodeCount, linesOfCode int) string {
	return fmt.Sprintf("%s:%d:%d", file, nodeCount, linesOfCode)
}

// ResolveKey returns override when set, otherwise the fingerprint of prog.
//
// The key does not depend on execution options: two runs over the same
// input with different filters share an entry.
func ResolveKey(override string, prog *ast.Program, actx ast.Context) string {
	if override != "" {
		return override
	}
	return Fingerprint(actx.File, prog.Metadata.NodeCount, prog.Metadata.LinesOfCode)
}

func clone(violations []rules.Violation) []rules.Violation {
	out := make([]rules.Violation, len(violations))
	copy(out, violations)
	return out
}
