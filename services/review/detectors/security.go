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

var sqlKeyword = regexp.MustCompile(`\b(SELECT|INSERT INTO|UPDATE|DELETE FROM|REPLACE INTO)\b`)

// unsafeCString maps banned C string functions to their bounded replacement.
var unsafeCString = map[string]string{
	"strcpy":   "strncpy or std::string",
	"strcat":   "strncat or std::string",
	"sprintf":  "snprintf or Trinity::StringFormat",
	"vsprintf": "vsnprintf",
	"gets":     "fgets",
}

// formattedQueryCalls are TrinityCore database calls that take a printf
// style SQL format.
var formattedQueryCalls = []string{"PQuery", "PExecute", "PAppend"}

// detectSQLConcatenation flags SQL text built with operator+ from
// non-literal operands.
func detectSQLConcatenation(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []rules.RawViolation
	visit(prog.Root, func(n *ast.Node) bool {
		if n.Type != "binary_expression" || operator(prog, n) != "+" {
			return true
		}
		hasSQL, hasValue := false, false
		visit(n, func(c *ast.Node) bool {
			switch c.Type {
			case "string_literal", "raw_string_literal":
				if sqlKeyword.MatchString(prog.Text(c)) {
					hasSQL = true
				}
				return false
			case "identifier", "call_expression", "field_expression":
				hasValue = true
				return false
			}
			return true
		})
		if !hasSQL || !hasValue {
			return true
		}
		v := raw(prog, actx, n,
			"SQL statement built by string concatenation",
			"Concatenated values reach the database unescaped and allow SQL injection.",
			0.85)
		v.Fix = &rules.SuggestedFix{
			Description: "Use a PreparedStatement from the database's prepared statement table and bind the value with SetData.",
		}
		out = append(out, v)
		return false
	})
	return out, nil
}

// calleeName returns the unqualified name of a call's target.
func calleeName(prog *ast.Program, call *ast.Node) string {
	name := prog.Text(first(call))
	if i := strings.LastIndexAny(name, ":.>"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// detectUnsafeCString flags calls to unbounded C string functions.
func detectUnsafeCString(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []rules.RawViolation
	for _, call := range findAll(prog.Root, "call_expression") {
		name := calleeName(prog, call)
		replacement, banned := unsafeCString[name]
		if !banned {
			continue
		}
		v := raw(prog, actx, call,
			fmt.Sprintf("%s does not bound the destination buffer", name),
			"Input longer than the destination overflows the buffer.",
			0.8)
		v.Fix = &rules.SuggestedFix{Description: "Use " + replacement + "."}
		out = append(out, v)
	}
	return out, nil
}

// detectFormattedQuery flags printf-style database calls that splice a %s
// argument into SQL text.
func detectFormattedQuery(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []rules.RawViolation
	for _, call := range findAll(prog.Root, "call_expression") {
		name := calleeName(prog, call)
		matched := false
		for _, q := range formattedQueryCalls {
			if name == q {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		args := child(call, "argument_list")
		format := first(args)
		if format == nil || format.Type != "string_literal" || !strings.Contains(prog.Text(format), "%s") {
			continue
		}
		out = append(out, raw(prog, actx, call,
			fmt.Sprintf("%s splices a string argument into SQL", name),
			"String arguments are not escaped by the format call. Player-controlled names can inject SQL.",
			0.7))
	}
	return out, nil
}
