// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codereview/services/review/ast"
)

var noop = DetectorFunc(func(context.Context, *ast.Program, ast.Context) ([]RawViolation, error) {
	return nil, nil
})

func testRule(id string, cat Category, sev Severity, priority int) Rule {
	return Rule{
		ID:             id,
		Name:           id,
		Category:       cat,
		Severity:       sev,
		Priority:       priority,
		BaseConfidence: 0.8,
		Enabled:        true,
		Detector:       noop,
	}
}

func testRules() []Rule {
	disabled := testRule("MEM-002", CategoryMemory, SeverityMajor, 70)
	disabled.Enabled = false
	domain := testRule("CONV-001", CategoryConvention, SeverityMinor, 40)
	domain.DomainSpecific = true
	return []Rule{
		testRule("NULL-001", CategoryNullSafety, SeverityCritical, 90),
		testRule("MEM-001", CategoryMemory, SeverityCritical, 90),
		disabled,
		domain,
		testRule("SEC-001", CategorySecurity, SeverityCritical, 95),
		testRule("PERF-001", CategoryPerformance, SeverityInfo, 20),
	}
}

func TestNewRegistry_Lookups(t *testing.T) {
	reg, err := NewRegistry(testRules()...)
	require.NoError(t, err)

	assert.Equal(t, 6, reg.Len())
	assert.Len(t, reg.All(), 6)
	assert.Equal(t, "NULL-001", reg.All()[0].ID)

	mem := reg.ByCategory(CategoryMemory)
	require.Len(t, mem, 2)
	assert.Equal(t, "MEM-001", mem[0].ID)
	assert.Equal(t, "MEM-002", mem[1].ID)
	assert.Empty(t, reg.ByCategory(CategoryArchitecture))

	assert.Len(t, reg.BySeverity(SeverityCritical), 3)

	rule, ok := reg.ByID("SEC-001")
	assert.True(t, ok)
	assert.Equal(t, 95, rule.Priority)

	_, ok = reg.ByID("NOPE-999")
	assert.False(t, ok)
}

func TestNewRegistry_CopiesAreIsolated(t *testing.T) {
	reg := MustRegistry(testRules()...)

	all := reg.All()
	all[0].Priority = 1
	all[0].Enabled = false

	rule, ok := reg.ByID(all[0].ID)
	require.True(t, ok)
	assert.Equal(t, 90, rule.Priority)
	assert.True(t, rule.Enabled)
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.All())
}

func TestNewRegistry_Rejects(t *testing.T) {
	valid := testRule("A", CategoryMemory, SeverityMajor, 50)

	tests := []struct {
		name   string
		mutate func(r *Rule)
		want   error
	}{
		{"empty id", func(r *Rule) { r.ID = "" }, ErrInvalidRule},
		{"nil detector", func(r *Rule) { r.Detector = nil }, ErrInvalidRule},
		{"unknown category", func(r *Rule) { r.Category = "style" }, ErrInvalidRule},
		{"unknown severity", func(r *Rule) { r.Severity = "blocker" }, ErrInvalidRule},
		{"priority too high", func(r *Rule) { r.Priority = 101 }, ErrInvalidRule},
		{"negative priority", func(r *Rule) { r.Priority = -1 }, ErrInvalidRule},
		{"confidence above one", func(r *Rule) { r.BaseConfidence = 1.5 }, ErrInvalidRule},
		{"negative confidence", func(r *Rule) { r.BaseConfidence = -0.1 }, ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)
			_, err := NewRegistry(rule)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewRegistry(valid, valid)
		assert.True(t, errors.Is(err, ErrDuplicateRule))
	})

	t.Run("boundaries accepted", func(t *testing.T) {
		lo := valid
		lo.ID, lo.Priority, lo.BaseConfidence = "LO", 0, 0
		hi := valid
		hi.ID, hi.Priority, hi.BaseConfidence = "HI", 100, 1
		_, err := NewRegistry(lo, hi)
		assert.NoError(t, err)
	})
}

func TestRegistry_Statistics(t *testing.T) {
	reg := MustRegistry(testRules()...)

	stats := reg.Statistics()
	assert.Equal(t, 6, stats.TotalRules)
	assert.Equal(t, 5, stats.EnabledRules)
	assert.Equal(t, 1, stats.DisabledRules)
	assert.Equal(t, 1, stats.DomainSpecificCount)
	assert.Equal(t, 2, stats.ByCategory[CategoryMemory])
	assert.Equal(t, 0, stats.ByCategory[CategoryArchitecture])
	assert.Len(t, stats.ByCategory, len(Categories))
	assert.Equal(t, 3, stats.BySeverity[SeverityCritical])
	assert.Len(t, stats.BySeverity, len(Severities))

	// Computed on demand, equal across calls.
	assert.Equal(t, stats, reg.Statistics())
}

func TestRuleExecutionError_Error(t *testing.T) {
	err := RuleExecutionError{RuleID: "MEM-001", Message: "boom"}
	assert.Equal(t, "rule MEM-001: boom", err.Error())
}

func TestNewViolation(t *testing.T) {
	rule := testRule("MEM-001", CategoryMemory, SeverityCritical, 90)
	rule.BaseConfidence = 0.7

	t.Run("detector seed wins", func(t *testing.T) {
		v := NewViolation(rule, RawViolation{Message: "leak", Confidence: 0.95})
		assert.Equal(t, "MEM-001", v.RuleID)
		assert.Equal(t, 0.95, v.Confidence)
		assert.Equal(t, Metadata{
			Category: CategoryMemory,
			Severity: SeverityCritical,
			Priority: 90,
			Source:   SourceDetector,
		}, v.Metadata)
	})

	t.Run("zero seed falls back to base confidence", func(t *testing.T) {
		v := NewViolation(rule, RawViolation{Message: "leak"})
		assert.Equal(t, 0.7, v.Confidence)
	})
}

func TestRule_Seed(t *testing.T) {
	rule := testRule("NULL-001", CategoryNullSafety, SeverityCritical, 95)
	rule.BaseConfidence = 0.7

	assert.Equal(t, 0.4, rule.Seed(RawViolation{Confidence: 0.4}))
	assert.Equal(t, 0.7, rule.Seed(RawViolation{}), "zero is unset")

	v := NewViolation(rule, RawViolation{})
	assert.Equal(t, rule.Seed(RawViolation{}), v.Confidence)
}
