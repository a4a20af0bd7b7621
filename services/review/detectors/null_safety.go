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
	"fmt"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// detectUncheckedPointerParam flags pointer parameters dereferenced before
// any condition tests them.
func detectUncheckedPointerParam(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	err := eachCallable(ctx, prog, func(c callable) {
		for _, param := range pointerParams(prog, c.params) {
			name := prog.Text(param)
			deref := firstUnguarded(prog, c.body, name, c.body.StartByte)
			if deref == nil {
				continue
			}
			v := raw(prog, actx, deref,
				fmt.Sprintf("pointer parameter '%s' dereferenced without a null check in %s", name, c.sym.Name),
				"A caller may pass nullptr. Dereferencing it crashes the worldserver.",
				0.7)
			v.Fix = &rules.SuggestedFix{
				Description: fmt.Sprintf("Return early when '%s' is null, or take a reference if null is never valid.", name),
				Diff:        fmt.Sprintf("+    if (!%s)\n+        return;", name),
			}
			out = append(out, v)
		}
	})
	return out, err
}

// detectUncheckedAllocation flags raw pointers from new that are used
// without a null check.
func detectUncheckedAllocation(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	err := eachCallable(ctx, prog, func(c callable) {
		for _, alloc := range newAllocations(c.body) {
			name := prog.Text(alloc)
			deref := firstUnguarded(prog, c.body, name, alloc.EndByte)
			if deref == nil {
				continue
			}
			out = append(out, raw(prog, actx, deref,
				fmt.Sprintf("'%s' allocated with new is used without a null check", name),
				"Allocations through nothrow new or custom allocators can return null.",
				0.6))
		}
	})
	return out, err
}
