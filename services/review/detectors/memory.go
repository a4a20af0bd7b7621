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

// detectLeakedAllocation flags raw pointers from new that are neither
// deleted, returned nor handed to anything else in the same function.
func detectLeakedAllocation(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	err := eachCallable(ctx, prog, func(c callable) {
		for _, alloc := range newAllocations(c.body) {
			name := prog.Text(alloc)
			if escapes(prog, c.body, name) {
				continue
			}
			v := raw(prog, actx, alloc,
				fmt.Sprintf("memory allocated for '%s' is never released in %s", name, c.sym.Name),
				"The pointer goes out of scope without delete and is not returned or passed on.",
				0.75)
			v.Fix = &rules.SuggestedFix{
				Description: "Hold the allocation in std::unique_ptr so it is released on every path.",
			}
			out = append(out, v)
		}
	})
	return out, err
}

// escapes reports whether name is deleted, returned, assigned away or
// passed as a call argument under body.
func escapes(prog *ast.Program, body *ast.Node, name string) bool {
	for _, n := range findAll(body, "delete_expression", "return_statement", "argument_list") {
		if mentions(prog, n, name) {
			return true
		}
	}
	for _, n := range findAll(body, "assignment_expression") {
		if len(n.Children) == 2 && mentions(prog, n.Children[1], name) {
			return true
		}
	}
	return false
}

// detectDoubleDelete flags a second delete of the same pointer with no
// reassignment in between.
func detectDoubleDelete(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	err := eachCallable(ctx, prog, func(c callable) {
		deleted := make(map[string]int)
		visit(c.body, func(n *ast.Node) bool {
			switch n.Type {
			case "assignment_expression":
				if target := first(n); target != nil && target.Type == "identifier" {
					delete(deleted, prog.Text(target))
				}
			case "delete_expression":
				target := first(n)
				if target == nil || target.Type != "identifier" {
					return true
				}
				name := prog.Text(target)
				if line, ok := deleted[name]; ok {
					out = append(out, raw(prog, actx, n,
						fmt.Sprintf("'%s' deleted twice (first delete on line %d)", name, line),
						"Deleting an already freed pointer corrupts the heap.",
						0.85))
				}
				deleted[name] = n.StartLine
			}
			return true
		})
	})
	return out, err
}
