// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"
	"sync"
	"time"
)

// Node is one syntax node of the parsed program.
//
// Positions are 1-based. StartByte/EndByte index into Program.Source.
type Node struct {
	Type        string  `json:"type"`
	StartByte   int     `json:"start_byte"`
	EndByte     int     `json:"end_byte"`
	StartLine   int     `json:"start_line"`
	StartColumn int     `json:"start_column"`
	EndLine     int     `json:"end_line"`
	EndColumn   int     `json:"end_column"`
	Children    []*Node `json:"children,omitempty"`
}

// SymbolKind classifies a symbol table entry.
type SymbolKind string

const (
	SymbolClass    SymbolKind = "class"
	SymbolMethod   SymbolKind = "method"
	SymbolFunction SymbolKind = "function"
	SymbolVariable SymbolKind = "variable"
)

// Symbol is a named declaration found by the builder.
type Symbol struct {
	// Name is the unqualified name.
	Name string `json:"name"`

	// Kind is the symbol kind.
	Kind SymbolKind `json:"kind"`

	// Scope is the enclosing class or function name, empty at file scope.
	Scope string `json:"scope,omitempty"`

	// Line and EndLine bound the declaration (1-based, inclusive).
	Line    int `json:"line"`
	EndLine int `json:"end_line"`

	// Node is the declaring syntax node. Not serialized.
	Node *Node `json:"-"`
}

// SymbolTable groups declarations by kind.
type SymbolTable struct {
	Classes   []Symbol `json:"classes"`
	Methods   []Symbol `json:"methods"`
	Functions []Symbol `json:"functions"`
	Variables []Symbol `json:"variables"`
}

// Include is one #include directive.
type Include struct {
	Path   string `json:"path"`
	System bool   `json:"system"`
	Line   int    `json:"line"`
}

// BasicBlock is a straight-line run of statements inside one function.
type BasicBlock struct {
	ID        int    `json:"id"`
	Function  string `json:"function"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Kind      string `json:"kind"`
}

// Edge connects two basic blocks by ID.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ControlFlowGraph is a coarse per-function control-flow graph.
type ControlFlowGraph struct {
	Blocks []BasicBlock `json:"blocks"`
	Edges  []Edge       `json:"edges"`
}

// DataFlowFact records one definition or use of an identifier.
type DataFlowFact struct {
	Name     string `json:"name"`
	Function string `json:"function"`
	Line     int    `json:"line"`
}

// DataFlowFacts holds identifier definitions and uses.
type DataFlowFacts struct {
	Definitions []DataFlowFact `json:"definitions"`
	Uses        []DataFlowFact `json:"uses"`
}

// Metadata summarizes a parse. NodeCount and LinesOfCode feed the cache fingerprint.
type Metadata struct {
	ParseTime   time.Duration `json:"parse_time"`
	NodeCount   int           `json:"node_count"`
	LinesOfCode int           `json:"lines_of_code"`
}

// Program is the analysis input handed to every detector.
//
// # Thread Safety
//
// A Program is shared read-only by all concurrently running detectors.
// Nothing in this repository mutates a Program after Build returns, and
// detectors must not either. The lazily split line cache is guarded.
type Program struct {
	Root     *Node             `json:"root"`
	Source   string            `json:"-"`
	Symbols  SymbolTable       `json:"symbols"`
	Includes []Include         `json:"includes"`
	CFG      *ControlFlowGraph `json:"cfg,omitempty"`
	DataFlow *DataFlowFacts    `json:"dataflow,omitempty"`
	Metadata Metadata          `json:"metadata"`

	linesOnce sync.Once
	lines     []string
}

// Lines returns the source split into lines (without terminators).
func (p *Program) Lines() []string {
	p.linesOnce.Do(func() {
		p.lines = strings.Split(strings.ReplaceAll(p.Source, "\r\n", "\n"), "\n")
	})
	return p.lines
}

// Line returns the 1-based source line n, or "" when out of range.
func (p *Program) Line(n int) string {
	lines := p.Lines()
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// Text returns the source text covered by n.
func (p *Program) Text(n *Node) string {
	if n == nil || n.StartByte < 0 || n.EndByte > len(p.Source) || n.StartByte > n.EndByte {
		return ""
	}
	return p.Source[n.StartByte:n.EndByte]
}

// Walk visits every node depth-first in source order.
//
// Returning false from fn skips the node's children.
func (p *Program) Walk(fn func(n *Node) bool) {
	if p.Root == nil {
		return
	}
	walk(p.Root, fn)
}

func walk(n *Node, fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// Context describes where the analyzed file lives.
//
// Like Program it is read-only once handed to the orchestrator.
type Context struct {
	// File is the path reported in violations.
	File string `json:"file"`

	// ProjectRoot is the root of the analyzed project.
	ProjectRoot string `json:"project_root"`

	// Domain is true when the project belongs to the target domain
	// (a TrinityCore-derived codebase). Domain-specific rules get a
	// confidence bonus on such projects.
	Domain bool `json:"domain"`

	// Dialect is the compiler dialect, e.g. "c++17".
	Dialect string `json:"dialect"`
}
