// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detectors provides the built-in C++ review rules.
//
// Every detector is a pure function over an ast.Program. They are syntactic
// heuristics over the tree-sitter tree and the symbol table: no type
// inference, no alias analysis. Confidence values reflect that.
//
// Detectors check ctx between functions or classes and return ctx.Err()
// when it is done, so a timed-out detector usually stops soon after the
// executor gives up on it.
package detectors
