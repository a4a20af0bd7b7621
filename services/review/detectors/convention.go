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
	"regexp"
	"strings"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

var pascalCase = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// toPascal converts snake_case or camelCase to PascalCase.
func toPascal(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func namingViolation(prog *ast.Program, actx ast.Context, sym ast.Symbol, kind string, confidence float64) rules.RawViolation {
	anchor := sym.Node
	if anchor == nil {
		anchor = &ast.Node{StartLine: sym.Line, StartColumn: 1}
	}
	v := raw(prog, actx, anchor,
		fmt.Sprintf("%s name '%s' is not PascalCase", kind, sym.Name),
		"TrinityCore names classes, structs and methods in PascalCase.",
		confidence)
	v.Fix = &rules.SuggestedFix{Description: fmt.Sprintf("Rename to '%s'.", toPascal(sym.Name))}
	return v
}

// detectClassNaming flags classes and structs not named in PascalCase.
func detectClassNaming(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	for _, class := range prog.Symbols.Classes {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !pascalCase.MatchString(class.Name) {
			out = append(out, namingViolation(prog, actx, class, "class", 0.8))
		}
	}
	return out, nil
}

// detectMethodNaming flags methods not named in PascalCase. Constructors,
// destructors and operators are exempt.
func detectMethodNaming(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	for _, m := range prog.Symbols.Methods {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if strings.HasPrefix(m.Name, "~") || strings.HasPrefix(m.Name, "operator") || scopeMatches(m.Scope, m.Name) {
			continue
		}
		if !pascalCase.MatchString(m.Name) {
			out = append(out, namingViolation(prog, actx, m, "method", 0.7))
		}
	}
	return out, nil
}
