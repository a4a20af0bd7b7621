// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCPP = `#include <mutex>
#include "Player.h"

int globalCounter = 0;

class SafeCounter {
    int count = 0;
    std::mutex mtx;

    void increment() {
        std::lock_guard<std::mutex> lock(mtx);
        ++count;
    }
};

void Player::Update(uint32 diff) {
    int* data = new int[100];
    for (int i = 0; i < 10; ++i) {
        data[i] = i;
    }
    delete[] data;
    return;
}

static int helper(int x) {
    int y = x;
    y = y + 1;
    return y;
}
`

func buildSample(t *testing.T) *Program {
	t.Helper()
	prog, err := NewCPPBuilder().Build(context.Background(), []byte(sampleCPP), "Player.cpp")
	require.NoError(t, err)
	require.NotNil(t, prog)
	return prog
}

func symbolNames(syms []Symbol) []string {
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, s.Name)
	}
	return out
}

func TestCPPBuilder_Build_Symbols(t *testing.T) {
	prog := buildSample(t)

	assert.Equal(t, []string{"SafeCounter"}, symbolNames(prog.Symbols.Classes))
	assert.ElementsMatch(t, []string{"increment", "Update"}, symbolNames(prog.Symbols.Methods))
	assert.Equal(t, []string{"helper"}, symbolNames(prog.Symbols.Functions))

	for _, m := range prog.Symbols.Methods {
		switch m.Name {
		case "increment":
			assert.Equal(t, "SafeCounter", m.Scope)
		case "Update":
			assert.Equal(t, "Player", m.Scope)
		}
	}

	vars := symbolNames(prog.Symbols.Variables)
	assert.Contains(t, vars, "globalCounter")
	assert.Contains(t, vars, "count")
	assert.Contains(t, vars, "mtx")
	assert.Contains(t, vars, "data")
	assert.Contains(t, vars, "y")
}

func TestCPPBuilder_Build_Includes(t *testing.T) {
	prog := buildSample(t)

	require.Len(t, prog.Includes, 2)
	assert.Equal(t, Include{Path: "mutex", System: true, Line: 1}, prog.Includes[0])
	assert.Equal(t, Include{Path: "Player.h", System: false, Line: 2}, prog.Includes[1])
}

func TestCPPBuilder_Build_Metadata(t *testing.T) {
	prog := buildSample(t)

	assert.Equal(t, 29, prog.Metadata.LinesOfCode)
	assert.Greater(t, prog.Metadata.NodeCount, 50)
	assert.Equal(t, "translation_unit", prog.Root.Type)
	assert.Equal(t, "#include <mutex>", prog.Line(1))
	assert.Equal(t, "", prog.Line(1000))

	// NodeCount equals the number of nodes reachable by Walk.
	seen := 0
	prog.Walk(func(*Node) bool { seen++; return true })
	assert.Equal(t, prog.Metadata.NodeCount, seen)
}

func TestCPPBuilder_Build_ControlFlow(t *testing.T) {
	prog := buildSample(t)
	require.NotNil(t, prog.CFG)

	var update []BasicBlock
	for _, b := range prog.CFG.Blocks {
		if b.Function == "Update" {
			update = append(update, b)
		}
	}
	require.Len(t, update, 4)
	assert.Equal(t, "statement", update[0].Kind)
	assert.Equal(t, "loop", update[1].Kind)
	assert.Equal(t, "return", update[3].Kind)
	assert.Contains(t, prog.CFG.Edges, Edge{From: update[1].ID, To: update[1].ID})
}

func TestCPPBuilder_Build_DataFlow(t *testing.T) {
	prog := buildSample(t)
	require.NotNil(t, prog.DataFlow)

	var defs, uses int
	for _, d := range prog.DataFlow.Definitions {
		if d.Function == "helper" && d.Name == "y" {
			defs++
		}
	}
	for _, u := range prog.DataFlow.Uses {
		if u.Function == "helper" && u.Name == "y" {
			uses++
		}
	}
	// int y = x; y = y + 1;
	assert.Equal(t, 2, defs)
	// y + 1, return y
	assert.Equal(t, 2, uses)
}

func TestCPPBuilder_Build_Errors(t *testing.T) {
	b := NewCPPBuilder(WithMaxFileSize(16))

	t.Run("nil content", func(t *testing.T) {
		_, err := b.Build(context.Background(), nil, "a.cpp")
		assert.True(t, errors.Is(err, ErrInvalidContent))
	})

	t.Run("too large", func(t *testing.T) {
		_, err := b.Build(context.Background(), []byte("int aaaaaaaaaaaaaaaaaaaaaaa = 1;"), "a.cpp")
		assert.True(t, errors.Is(err, ErrFileTooLarge))
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := b.Build(context.Background(), []byte{0xff, 0xfe}, "a.cpp")
		assert.True(t, errors.Is(err, ErrInvalidContent))
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Build(ctx, []byte("int x;"), "a.cpp")
		assert.True(t, errors.Is(err, ErrContextCanceled))
	})
}

func TestCPPBuilder_Build_Empty(t *testing.T) {
	prog, err := NewCPPBuilder().Build(context.Background(), []byte{}, "empty.h")
	require.NoError(t, err)
	assert.Equal(t, 0, prog.Metadata.LinesOfCode)
	assert.Empty(t, prog.Symbols.Classes)
}

func TestCPPBuilder_Supports(t *testing.T) {
	b := NewCPPBuilder()
	assert.True(t, b.Supports("src/Spell.cpp"))
	assert.True(t, b.Supports("src/Spell.H"))
	assert.True(t, b.Supports("src/Spell.hpp"))
	assert.False(t, b.Supports("README.md"))
}
