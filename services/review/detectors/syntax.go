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
	"sort"
	"strings"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// visit walks n depth-first. Returning false skips the children.
func visit(n *ast.Node, fn func(*ast.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		visit(c, fn)
	}
}

// findAll returns the descendants of n (n included) with one of the types.
func findAll(n *ast.Node, types ...string) []*ast.Node {
	var out []*ast.Node
	visit(n, func(c *ast.Node) bool {
		for _, t := range types {
			if c.Type == t {
				out = append(out, c)
				break
			}
		}
		return true
	})
	return out
}

// child returns the first direct child of n with the given type.
func child(n *ast.Node, typ string) *ast.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// first returns n's first child, or nil.
func first(n *ast.Node) *ast.Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// mentions reports whether an identifier named name occurs under n.
func mentions(prog *ast.Program, n *ast.Node, name string) bool {
	found := false
	visit(n, func(c *ast.Node) bool {
		if found {
			return false
		}
		if c.Type == "identifier" && prog.Text(c) == name {
			found = true
		}
		return true
	})
	return found
}

// operator returns the anonymous operator token between the first two
// named children of a binary or assignment expression.
func operator(prog *ast.Program, n *ast.Node) string {
	if n == nil || len(n.Children) < 2 {
		return ""
	}
	left, right := n.Children[0], n.Children[1]
	if left.EndByte > right.StartByte || right.StartByte > len(prog.Source) {
		return ""
	}
	return strings.TrimSpace(prog.Source[left.EndByte:right.StartByte])
}

// callable is a function or method definition with its parts resolved.
type callable struct {
	sym    ast.Symbol
	params *ast.Node
	body   *ast.Node
}

// callables returns every function and method definition in source order.
func callables(prog *ast.Program) []callable {
	syms := make([]ast.Symbol, 0, len(prog.Symbols.Functions)+len(prog.Symbols.Methods))
	syms = append(syms, prog.Symbols.Functions...)
	syms = append(syms, prog.Symbols.Methods...)
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Line < syms[j].Line })

	out := make([]callable, 0, len(syms))
	for _, sym := range syms {
		if sym.Node == nil {
			continue
		}
		c := callable{sym: sym, body: child(sym.Node, "compound_statement")}
		for _, part := range sym.Node.Children {
			if part == c.body {
				continue
			}
			if lists := findAll(part, "parameter_list"); len(lists) > 0 {
				c.params = lists[0]
				break
			}
		}
		out = append(out, c)
	}
	return out
}

// eachCallable runs fn for every definition with a body, stopping early
// when ctx is done.
func eachCallable(ctx context.Context, prog *ast.Program, fn func(c callable)) error {
	for _, c := range callables(prog) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.body == nil {
			continue
		}
		fn(c)
	}
	return nil
}

// pointerParams returns the names of raw-pointer parameters.
func pointerParams(prog *ast.Program, params *ast.Node) []*ast.Node {
	var out []*ast.Node
	if params == nil {
		return out
	}
	for _, p := range params.Children {
		if p.Type != "parameter_declaration" {
			continue
		}
		if ptr := child(p, "pointer_declarator"); ptr != nil {
			if id := child(ptr, "identifier"); id != nil {
				out = append(out, id)
			}
		}
	}
	return out
}

// newAllocations returns the identifiers of raw-pointer locals initialised
// directly with a new-expression (`T* p = new T`). Smart-pointer
// construction such as `std::unique_ptr<T> p(new T)` is not included.
func newAllocations(body *ast.Node) []*ast.Node {
	var out []*ast.Node
	for _, decl := range findAll(body, "declaration") {
		for _, init := range decl.Children {
			if init.Type != "init_declarator" {
				continue
			}
			ptr := child(init, "pointer_declarator")
			if ptr == nil || child(init, "new_expression") == nil {
				continue
			}
			if id := child(ptr, "identifier"); id != nil {
				out = append(out, id)
			}
		}
	}
	return out
}

// dereferences returns the nodes under body that dereference name:
// `*name`, `name->x` and `name[i]`.
func dereferences(prog *ast.Program, body *ast.Node, name string) []*ast.Node {
	var out []*ast.Node
	visit(body, func(n *ast.Node) bool {
		target := first(n)
		if target == nil || target.Type != "identifier" || prog.Text(target) != name {
			return true
		}
		switch n.Type {
		case "pointer_expression":
			if strings.HasPrefix(prog.Text(n), "*") {
				out = append(out, n)
			}
		case "field_expression":
			if strings.HasPrefix(strings.TrimSpace(prog.Source[target.EndByte:n.EndByte]), "->") {
				out = append(out, n)
			}
		case "subscript_expression":
			out = append(out, n)
		}
		return true
	})
	return out
}

// guardMarkers are call names that assert a pointer is valid.
var guardMarkers = []string{"ASSERT", "ABORT_MSG", "ensure", "ENSURE", "WPAssert"}

// guards returns the start offsets of conditions under body that test name.
func guards(prog *ast.Program, body *ast.Node, name string) []int {
	var out []int
	visit(body, func(n *ast.Node) bool {
		var cond *ast.Node
		switch n.Type {
		case "if_statement", "while_statement", "conditional_expression":
			cond = first(n)
		case "binary_expression":
			if op := operator(prog, n); op == "&&" || op == "||" {
				cond = first(n)
			}
		case "call_expression":
			callee := prog.Text(first(n))
			for _, marker := range guardMarkers {
				if strings.Contains(callee, marker) {
					cond = child(n, "argument_list")
					break
				}
			}
		}
		if cond != nil && mentions(prog, cond, name) {
			out = append(out, cond.StartByte)
		}
		return true
	})
	return out
}

// firstUnguarded returns the first dereference of name after offset that
// is not preceded by a guard, or nil.
func firstUnguarded(prog *ast.Program, body *ast.Node, name string, after int) *ast.Node {
	checks := guards(prog, body, name)
	for _, d := range dereferences(prog, body, name) {
		if d.StartByte < after {
			continue
		}
		guarded := false
		for _, g := range checks {
			if g < d.StartByte {
				guarded = true
				break
			}
		}
		if !guarded {
			return d
		}
	}
	return nil
}

// raw builds a RawViolation anchored at n.
func raw(prog *ast.Program, actx ast.Context, n *ast.Node, message, explanation string, confidence float64) rules.RawViolation {
	return rules.RawViolation{
		Location: rules.Location{
			File:   actx.File,
			Line:   n.StartLine,
			Column: n.StartColumn,
		},
		Message:     message,
		Explanation: explanation,
		Snippet:     strings.TrimSpace(prog.Line(n.StartLine)),
		Confidence:  confidence,
	}
}
