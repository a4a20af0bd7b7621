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
	"strings"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// lockMarkers are the RAII guards and calls that indicate a held lock.
var lockMarkers = []string{
	"lock_guard", "unique_lock", "scoped_lock", "shared_lock",
	"std::lock(", ".lock()", "->lock()",
	"TRINITY_GUARD", "TRINITY_WRITE_GUARD", "TRINITY_READ_GUARD",
}

// classLayout is what the concurrency rules need to know about a class.
type classLayout struct {
	sym      ast.Symbol
	fields   map[string]bool
	hasMutex bool
}

// layoutOf collects the non-atomic data members of a class and whether it
// owns a mutex.
func layoutOf(prog *ast.Program, class ast.Symbol) classLayout {
	layout := classLayout{sym: class, fields: make(map[string]bool)}
	body := child(class.Node, "field_declaration_list")
	if body == nil {
		return layout
	}
	for _, decl := range body.Children {
		if decl.Type != "field_declaration" || child(decl, "function_declarator") != nil {
			continue
		}
		typ := strings.ToLower(prog.Text(decl))
		if strings.Contains(typ, "mutex") {
			layout.hasMutex = true
			continue
		}
		if strings.Contains(typ, "atomic") {
			continue
		}
		for _, id := range findAll(decl, "field_identifier") {
			layout.fields[prog.Text(id)] = true
		}
	}
	return layout
}

// mutation returns the first write to a member field under body, or nil.
func mutation(prog *ast.Program, body *ast.Node, fields map[string]bool) *ast.Node {
	var hit *ast.Node
	visit(body, func(n *ast.Node) bool {
		if hit != nil {
			return false
		}
		if n.Type != "update_expression" && n.Type != "assignment_expression" {
			return true
		}
		target := first(n)
		if target == nil {
			return true
		}
		switch target.Type {
		case "identifier":
			if fields[prog.Text(target)] {
				hit = n
			}
		case "field_expression":
			text := prog.Text(target)
			if strings.HasPrefix(text, "this->") && fields[strings.TrimPrefix(text, "this->")] {
				hit = n
			}
		}
		return true
	})
	return hit
}

func holdsLock(prog *ast.Program, body *ast.Node) bool {
	text := prog.Text(body)
	for _, marker := range lockMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// classMutations reports, for every class, the methods that write member
// state. withMutex selects classes that do or do not own a mutex.
func classMutations(ctx context.Context, prog *ast.Program, withMutex bool, report func(layout classLayout, method callable, site *ast.Node) rules.RawViolation) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	methods := callables(prog)
	for _, class := range prog.Symbols.Classes {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		layout := layoutOf(prog, class)
		if layout.hasMutex != withMutex || len(layout.fields) == 0 {
			continue
		}
		for _, m := range methods {
			if m.body == nil || m.sym.Kind != ast.SymbolMethod || !scopeMatches(m.sym.Scope, class.Name) {
				continue
			}
			if m.sym.Name == class.Name || strings.HasPrefix(m.sym.Name, "~") {
				continue
			}
			if withMutex && holdsLock(prog, m.body) {
				continue
			}
			if site := mutation(prog, m.body, layout.fields); site != nil {
				out = append(out, report(layout, m, site))
			}
		}
	}
	return out, nil
}

// scopeMatches reports whether a method scope names class, qualified or not.
func scopeMatches(scope, class string) bool {
	return scope == class || strings.HasSuffix(scope, "::"+class)
}

// detectUnsynchronizedMember flags member writes in classes that own no
// mutex at all.
func detectUnsynchronizedMember(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	return classMutations(ctx, prog, false, func(layout classLayout, m callable, site *ast.Node) rules.RawViolation {
		v := raw(prog, actx, site,
			fmt.Sprintf("%s::%s modifies member state without synchronization", layout.sym.Name, m.sym.Name),
			"If instances are shared between map update threads this write is a data race.",
			0.55)
		v.Fix = &rules.SuggestedFix{Description: "Guard the member with a std::mutex or make it std::atomic."}
		return v
	})
}

// detectUnlockedWrite flags member writes in classes that own a mutex,
// from methods that never take it.
func detectUnlockedWrite(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	return classMutations(ctx, prog, true, func(layout classLayout, m callable, site *ast.Node) rules.RawViolation {
		return raw(prog, actx, site,
			fmt.Sprintf("%s::%s writes shared state without holding the class mutex", layout.sym.Name, m.sym.Name),
			"The class owns a mutex, so its members are expected to be accessed under it.",
			0.7)
	})
}
