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
	"path/filepath"
	"strings"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// GodClassMethodThreshold is the method count at which a class is reported
// as having too many responsibilities.
const GodClassMethodThreshold = 6

var headerExtensions = map[string]bool{".h": true, ".hh": true, ".hpp": true, ".hxx": true}

// detectGodClass flags classes that define GodClassMethodThreshold or more
// methods, in-class or out of line.
func detectGodClass(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	var out []rules.RawViolation
	for _, class := range prog.Symbols.Classes {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		count := 0
		for _, m := range prog.Symbols.Methods {
			if scopeMatches(m.Scope, class.Name) && m.Name != class.Name && !strings.HasPrefix(m.Name, "~") {
				count++
			}
		}
		if count < GodClassMethodThreshold || class.Node == nil {
			continue
		}
		v := raw(prog, actx, class.Node,
			fmt.Sprintf("class %s defines %d methods", class.Name, count),
			"A class with this many responsibilities is hard to test and change. Split it along its concerns.",
			0.6)
		v.Fix = &rules.SuggestedFix{Description: "Extract groups of related methods into dedicated handler classes."}
		out = append(out, v)
	}
	return out, nil
}

// detectUsingNamespaceInHeader flags `using namespace` directives in headers.
func detectUsingNamespaceInHeader(ctx context.Context, prog *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !headerExtensions[strings.ToLower(filepath.Ext(actx.File))] {
		return nil, nil
	}
	var out []rules.RawViolation
	for _, n := range findAll(prog.Root, "using_declaration") {
		if !strings.HasPrefix(prog.Text(n), "using namespace") {
			continue
		}
		out = append(out, raw(prog, actx, n,
			"using namespace directive in a header",
			"Every file that includes this header inherits the directive.",
			0.9))
	}
	return out, nil
}
