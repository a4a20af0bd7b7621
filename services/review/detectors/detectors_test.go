// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detectors

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

const fixtureFile = "src/server/game/Fixture.cpp"

func loadFixture(t *testing.T) (*ast.Program, ast.Context) {
	t.Helper()
	content, err := os.ReadFile("testdata/violations.cpp")
	require.NoError(t, err)
	prog, err := ast.NewCPPBuilder().Build(context.Background(), content, fixtureFile)
	require.NoError(t, err)
	return prog, ast.Context{File: fixtureFile, Domain: true, Dialect: "c++17"}
}

// lineOf returns the 1-based line of the first occurrence of substr.
func lineOf(t *testing.T, prog *ast.Program, substr string) int {
	t.Helper()
	for i, line := range prog.Lines() {
		if strings.Contains(line, substr) {
			return i + 1
		}
	}
	t.Fatalf("fixture has no line containing %q", substr)
	return 0
}

func ruleByID(t *testing.T, id string) rules.Rule {
	t.Helper()
	for _, r := range Builtin() {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("no builtin rule %s", id)
	return rules.Rule{}
}

func detect(t *testing.T, id string, prog *ast.Program, actx ast.Context) []rules.RawViolation {
	t.Helper()
	out, err := ruleByID(t, id).Detector.Detect(context.Background(), prog, actx)
	require.NoError(t, err)
	return out
}

func lines(vs []rules.RawViolation) []int {
	out := make([]int, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Location.Line)
	}
	return out
}

func TestBuiltin_Catalogue(t *testing.T) {
	catalogue := Builtin()

	reg, err := rules.NewRegistry(catalogue...)
	require.NoError(t, err)
	assert.Equal(t, 15, reg.Len())

	stats := reg.Statistics()
	for _, c := range rules.Categories {
		assert.GreaterOrEqual(t, stats.ByCategory[c], 1, "category %s has no rule", c)
	}
	assert.Equal(t, 3, stats.DomainSpecificCount)
	assert.Equal(t, 15, stats.EnabledRules)

	// Fresh slice per call.
	catalogue[0].Enabled = false
	assert.True(t, Builtin()[0].Enabled)
}

func TestDetectors_Fixture(t *testing.T) {
	prog, actx := loadFixture(t)

	tests := []struct {
		id      string
		want    []string
		notWant []string
	}{
		{
			id:      "NULL-001",
			want:    []string{"*ptr = 42;"},
			notWant: []string{"delete ptr;"},
		},
		{
			id:   "NULL-002",
			want: []string{"data[0] = 1;"},
		},
		{
			id:      "MEM-001",
			want:    []string{"int* data = new int[100];", "int* buffer = new int[100];"},
			notWant: []string{"std::unique_ptr<int[]>"},
		},
		{
			id:      "CONV-001",
			want:    []string{"class bad_class_name"},
			notWant: []string{"class GoodClassName"},
		},
		{
			id:      "CONV-002",
			want:    []string{"void bad_method_name()"},
			notWant: []string{"void GoodMethodName()"},
		},
		{
			id:      "SEC-001",
			want:    []string{"SELECT * FROM characters"},
			notWant: []string{"PExecute"},
		},
		{
			id:   "SEC-002",
			want: []string{"strcpy(dest, src);"},
		},
		{
			id:   "SEC-003",
			want: []string{"CharacterDatabase.PExecute"},
		},
		{
			id:   "PERF-001",
			want: []string{"result += std::to_string(i);"},
		},
		{
			id:      "PERF-002",
			want:    []string{"void passByValue(LargeObject obj)"},
			notWant: []string{"void passByReference", "void sqlInjection"},
		},
		{
			id:      "ARCH-001",
			want:    []string{"class GodClass"},
			notWant: []string{"class NetworkHandler"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := lines(detect(t, tt.id, prog, actx))
			for _, s := range tt.want {
				assert.Contains(t, got, lineOf(t, prog, s), "expected hit on %q", s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, got, lineOf(t, prog, s), "unexpected hit on %q", s)
			}
		})
	}
}

func TestDetectors_NullCheckSuppresses(t *testing.T) {
	prog, actx := loadFixture(t)

	got := detect(t, "NULL-001", prog, actx)
	require.Len(t, got, 1)
	assert.Equal(t, lineOf(t, prog, "*ptr = 42;"), got[0].Location.Line)
	assert.Equal(t, fixtureFile, got[0].Location.File)
	assert.Equal(t, "*ptr = 42;", got[0].Snippet)
	require.NotNil(t, got[0].Fix)
}

func TestDetectors_DoubleDelete(t *testing.T) {
	prog, actx := loadFixture(t)

	got := detect(t, "MEM-002", prog, actx)

	// Only doubleFree: resetBetweenDeletes reassigns between the deletes.
	require.Len(t, got, 1)
	first := lineOf(t, prog, "delete ptr;")
	assert.Equal(t, first+1, got[0].Location.Line)
}

func TestDetectors_Concurrency(t *testing.T) {
	prog, actx := loadFixture(t)

	t.Run("class without mutex", func(t *testing.T) {
		got := detect(t, "CONC-001", prog, actx)
		require.Len(t, got, 1)
		assert.Equal(t, lineOf(t, prog, "++count;"), got[0].Location.Line)
		assert.Contains(t, got[0].Message, "UnsafeCounter::increment")
	})

	t.Run("class with mutex, write without lock", func(t *testing.T) {
		got := detect(t, "CONC-002", prog, actx)
		require.Len(t, got, 1)
		assert.Equal(t, lineOf(t, prog, "_items = _items + 1;"), got[0].Location.Line)
		assert.Contains(t, got[0].Message, "Inventory::AddItem")
	})
}

func TestDetectors_UsingNamespaceInHeader(t *testing.T) {
	src := []byte("using namespace std;\nclass Spell {};\n")

	build := func(file string) (*ast.Program, ast.Context) {
		prog, err := ast.NewCPPBuilder().Build(context.Background(), src, file)
		require.NoError(t, err)
		return prog, ast.Context{File: file}
	}

	prog, actx := build("src/server/game/Spells/Spell.h")
	got := detect(t, "ARCH-002", prog, actx)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Location.Line)

	prog, actx = build("src/server/game/Spells/Spell.cpp")
	assert.Empty(t, detect(t, "ARCH-002", prog, actx))
}

func TestDetectors_HonourCancellation(t *testing.T) {
	prog, actx := loadFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, rule := range Builtin() {
		_, err := rule.Detector.Detect(ctx, prog, actx)
		assert.ErrorIs(t, err, context.Canceled, rule.ID)
	}
}

func TestToPascal(t *testing.T) {
	assert.Equal(t, "BadClassName", toPascal("bad_class_name"))
	assert.Equal(t, "HandleNetwork", toPascal("handleNetwork"))
	assert.Equal(t, "X", toPascal("_x"))
}
