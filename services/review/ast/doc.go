// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the program representation consumed by review rules
// and a tree-sitter based builder for C++ sources.
//
// A Program bundles the syntax tree, the raw source, a symbol table, the
// include directives, a coarse control-flow graph, identifier dataflow facts
// and parse metadata. A Context describes the analyzed file (path, project
// root, domain flag, compiler dialect).
//
// Rules only read these values. Builders are the only writers, and only
// until Build returns.
//
// # Usage
//
//	builder := ast.NewCPPBuilder()
//	prog, err := builder.Build(ctx, content, "src/server/game/Spells/Spell.cpp")
//	if err != nil {
//	    return fmt.Errorf("build program: %w", err)
//	}
//	for _, cls := range prog.Symbols.Classes {
//	    fmt.Println(cls.Name, cls.Line)
//	}
package ast
