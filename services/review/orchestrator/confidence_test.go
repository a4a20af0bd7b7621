// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

func TestAdjustConfidence(t *testing.T) {
	tests := []struct {
		name     string
		seed     float64
		base     float64
		priority int
		domainR  bool
		domainC  bool
		want     float64
	}{
		{name: "high priority unchanged", seed: 0.9, base: 0.5, priority: 90, want: 0.9},
		{name: "low priority penalty", seed: 0.6, base: 0.5, priority: 10, want: 0.54},
		{name: "threshold is not low", seed: 0.6, base: 0.5, priority: 50, want: 0.6},
		{name: "49 is low", seed: 0.6, base: 0.5, priority: 49, want: 0.54},
		{name: "domain bonus", seed: 0.8, base: 0.5, priority: 80, domainR: true, domainC: true, want: 0.88},
		{name: "domain rule, foreign project", seed: 0.8, base: 0.5, priority: 80, domainR: true, want: 0.8},
		{name: "domain project, generic rule", seed: 0.8, base: 0.5, priority: 80, domainC: true, want: 0.8},
		{name: "bonus then penalty", seed: 0.8, base: 0.5, priority: 30, domainR: true, domainC: true, want: 0.792},
		{name: "clamped to one", seed: 0.95, base: 0.5, priority: 90, domainR: true, domainC: true, want: 1},
		{name: "zero seed uses base", seed: 0, base: 0.7, priority: 90, want: 0.7},
		{name: "zero seed and base", seed: 0, base: 0, priority: 10, want: 0},
		{name: "negative seed floored", seed: -0.2, base: 0.5, priority: 90, want: 0},
		{name: "seed above one clamped", seed: 1.4, base: 0.5, priority: 90, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := rules.Rule{
				ID:             "X",
				Priority:       tt.priority,
				BaseConfidence: tt.base,
				DomainSpecific: tt.domainR,
			}
			got := AdjustConfidence(rules.RawViolation{Confidence: tt.seed}, rule, ast.Context{Domain: tt.domainC})
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, PerformanceSummary{}, Summarize(nil))
		assert.Equal(t, PerformanceSummary{}, Summarize(map[string]time.Duration{}))
	})

	t.Run("single", func(t *testing.T) {
		got := Summarize(map[string]time.Duration{"A": 4 * time.Millisecond})
		assert.Equal(t, 4*time.Millisecond, got.Average)
		assert.Equal(t, RuleTiming{RuleID: "A", Duration: 4 * time.Millisecond}, got.Slowest)
		assert.Equal(t, got.Slowest, got.Fastest)
	})

	t.Run("several", func(t *testing.T) {
		got := Summarize(map[string]time.Duration{
			"A": 2 * time.Millisecond,
			"B": 10 * time.Millisecond,
			"C": 1 * time.Millisecond,
			"D": 3 * time.Millisecond,
		})
		assert.Equal(t, 4*time.Millisecond, got.Average)
		assert.Equal(t, "B", got.Slowest.RuleID)
		assert.Equal(t, "C", got.Fastest.RuleID)
	})

	t.Run("ties resolve to smaller id", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			got := Summarize(map[string]time.Duration{
				"Z": time.Millisecond,
				"M": time.Millisecond,
				"A": time.Millisecond,
			})
			assert.Equal(t, "A", got.Slowest.RuleID)
			assert.Equal(t, "A", got.Fastest.RuleID)
		}
	})
}
