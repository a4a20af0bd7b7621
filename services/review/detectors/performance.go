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

// heavyTypes are library types that are expensive to copy.
var heavyTypes = map[string]bool{
	"std::string":        true,
	"std::vector":        true,
	"std::map":           true,
	"std::set":           true,
	"std::list":          true,
	"std::deque":         true,
	"std::unordered_map": true,
	"std::unordered_set": true,
}

var loopTypes = []string{"for_statement", "for_range_loop", "while_statement", "do_statement"}

// stringLocals returns the names of std::string locals and parameters of c.
func stringLocals(prog *ast.Program, c callable) map[string]bool {
	names := make(map[string]bool)
	collect := func(decl *ast.Node) {
		isString := false
		for _, part := range decl.Children {
			switch part.Type {
			case "type_identifier", "qualified_identifier":
				isString = isString || strings.HasSuffix(prog.Text(part), "string")
			case "identifier":
				if isString {
					names[prog.Text(part)] = true
				}
			case "init_declarator", "reference_declarator":
				if ids := findAll(part, "identifier"); isString && len(ids) > 0 {
					names[prog.Text(ids[0])] = true
				}
			}
		}
	}
	for _, decl := range findAll(c.body, "declaration") {
		collect(decl)
	}
	if c.params != nil {
		for _, p := range c.params.Children {
			if p.Type == "parameter_declaration" && len(p.Children) > 1 {
				collect(p)
			}
		}
	}
	return names
}

// detectStringConcatInLoop flags `s += ...` on std::string inside loops.
func detectStringConcatInLoop(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	err := eachCallable(ctx, prog, func(c callable) {
		strs := stringLocals(prog, c)
		if len(strs) == 0 {
			return
		}
		seen := make(map[*ast.Node]bool)
		for _, loop := range findAll(c.body, loopTypes...) {
			for _, assign := range findAll(loop, "assignment_expression") {
				if seen[assign] || operator(prog, assign) != "+=" {
					continue
				}
				target := first(assign)
				if target == nil || target.Type != "identifier" || !strs[prog.Text(target)] {
					continue
				}
				seen[assign] = true
				v := raw(prog, actx, assign,
					fmt.Sprintf("string '%s' grown with += inside a loop", prog.Text(target)),
					"Each append may reallocate and copy the whole string.",
					0.65)
				v.Fix = &rules.SuggestedFix{Description: "Call reserve() before the loop or build the text with std::ostringstream."}
				out = append(out, v)
			}
		}
	})
	return out, err
}

// baseType strips template arguments from a type name.
func baseType(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// detectPassByValue flags parameters of class type or heavy library type
// taken by value.
func detectPassByValue(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	classes := make(map[string]bool, len(prog.Symbols.Classes))
	for _, class := range prog.Symbols.Classes {
		classes[class.Name] = true
	}

	var out []rules.RawViolation
	err := eachCallable(ctx, prog, func(c callable) {
		if c.params == nil {
			return
		}
		for _, p := range c.params.Children {
			if p.Type != "parameter_declaration" {
				continue
			}
			var typ, name *ast.Node
			byValue := true
			for _, part := range p.Children {
				switch part.Type {
				case "type_identifier", "qualified_identifier", "template_type":
					if typ == nil {
						typ = part
					}
				case "identifier":
					name = part
				case "pointer_declarator", "reference_declarator", "abstract_pointer_declarator", "abstract_reference_declarator", "array_declarator":
					byValue = false
				}
			}
			if !byValue || typ == nil || name == nil {
				continue
			}
			typeName := baseType(prog.Text(typ))
			if !classes[typeName] && !heavyTypes[typeName] {
				continue
			}
			v := raw(prog, actx, p,
				fmt.Sprintf("parameter '%s' of type %s is passed by value", prog.Text(name), typeName),
				"The argument is copied on every call.",
				0.6)
			v.Fix = &rules.SuggestedFix{
				Description: fmt.Sprintf("Take 'const %s&' instead.", prog.Text(typ)),
			}
			out = append(out, v)
		}
	})
	return out, err
}
