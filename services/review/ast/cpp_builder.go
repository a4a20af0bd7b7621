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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

const (
	// DefaultMaxFileSize is the largest file the builder accepts (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize triggers a warning log for large inputs (1MB).
	WarnFileSize = 1024 * 1024
)

// Builder turns source text into a Program.
//
// This is the boundary to the parser collaborator. The orchestrator only
// consumes Programs and never calls a Builder itself.
type Builder interface {
	// Build parses content and returns the Program for file.
	Build(ctx context.Context, content []byte, file string) (*Program, error)

	// Extensions returns the file extensions this builder handles.
	Extensions() []string
}

// CPPBuilderOption configures a CPPBuilder.
type CPPBuilderOption func(*CPPBuilder)

// WithMaxFileSize sets the maximum accepted content size in bytes.
func WithMaxFileSize(bytes int64) CPPBuilderOption {
	return func(b *CPPBuilder) {
		if bytes > 0 {
			b.maxFileSize = bytes
		}
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) CPPBuilderOption {
	return func(b *CPPBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// CPPBuilder builds Programs from C++ source using tree-sitter.
//
// Description:
//
//	The tree-sitter tree is copied into plain Nodes (named nodes only) so
//	the C tree can be released before Build returns. During the copy the
//	builder fills the symbol table, include list, a coarse per-function
//	control-flow graph and identifier definition/use facts.
//
// Limitations:
//
//   - No preprocessing: macros are seen as written.
//   - Out-of-line definitions `A::f` are reported as methods of A without
//     checking that A is a class.
//   - Tree-sitter cannot be interrupted mid-parse; ctx is checked around it.
//
// Thread Safety: Safe for concurrent use. A new tree-sitter parser is
// created per call.
type CPPBuilder struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewCPPBuilder creates a C++ builder.
func NewCPPBuilder(opts ...CPPBuilderOption) *CPPBuilder {
	b := &CPPBuilder{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Extensions returns the C++ source and header extensions.
func (b *CPPBuilder) Extensions() []string {
	return []string{".cpp", ".cc", ".cxx", ".h", ".hpp", ".hh", ".hxx"}
}

// Supports reports whether file has one of the builder's extensions.
func (b *CPPBuilder) Supports(file string) bool {
	lower := strings.ToLower(file)
	for _, ext := range b.Extensions() {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Build parses C++ content into a Program.
//
// Inputs:
//
//	ctx - Checked before and after tree-sitter runs.
//	content - Source bytes. Must be valid UTF-8. Empty content is valid.
//	file - Path used in spans and logs.
//
// Outputs:
//
//	*Program - Never nil on success. Syntax errors do not fail the build;
//	           tree-sitter produces ERROR nodes which are kept in the tree.
//	error - ErrContextCanceled, ErrFileTooLarge, ErrInvalidContent or
//	        ErrParseFailed.
func (b *CPPBuilder) Build(ctx context.Context, content []byte, file string) (*Program, error) {
	ctx, span := startBuildSpan(ctx, file, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrContextCanceled, err)
	}
	if content == nil {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is nil", ErrInvalidContent)
	}
	if int64(len(content)) > b.maxFileSize {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), b.maxFileSize)
	}
	if len(content) > WarnFileSize {
		b.logger.Warn("building large file",
			slog.String("file", file),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrContextCanceled, err)
	}

	root := tree.RootNode()
	if root == nil {
		recordBuildMetrics(ctx, "cpp", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: tree-sitter returned nil root node", ErrParseFailed)
	}
	if root.HasError() {
		b.logger.Debug("source contains syntax errors", slog.String("file", file))
	}

	prog := &Program{
		Source:   string(content),
		Includes: make([]Include, 0),
		CFG:      &ControlFlowGraph{},
		DataFlow: &DataFlowFacts{},
	}
	s := &buildState{
		content: content,
		prog:    prog,
		defs:    make(map[uint32]bool),
	}
	prog.Root = s.convert(root, "", "")

	prog.Metadata = Metadata{
		ParseTime:   time.Since(start),
		NodeCount:   s.nodes,
		LinesOfCode: countLines(content),
	}

	symbolCount := len(prog.Symbols.Classes) + len(prog.Symbols.Methods) +
		len(prog.Symbols.Functions) + len(prog.Symbols.Variables)
	setBuildSpanResult(span, prog.Metadata, symbolCount)
	recordBuildMetrics(ctx, "cpp", prog.Metadata.ParseTime, prog.Metadata.NodeCount, true)

	return prog, nil
}

// buildState carries per-call state while copying the tree.
type buildState struct {
	content []byte
	prog    *Program
	nodes   int

	// defs holds start bytes of identifiers already recorded as definitions
	// so they are not also recorded as uses.
	defs map[uint32]bool
}

// convert copies n and its named descendants, extracting facts on the way.
//
// scope is the enclosing class name; fn is the enclosing function name.
func (s *buildState) convert(n *sitter.Node, scope, fn string) *Node {
	out := &Node{
		Type:        n.Type(),
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		StartLine:   int(n.StartPoint().Row) + 1,
		StartColumn: int(n.StartPoint().Column) + 1,
		EndLine:     int(n.EndPoint().Row) + 1,
		EndColumn:   int(n.EndPoint().Column) + 1,
	}
	s.nodes++

	childScope, childFn := scope, fn

	switch n.Type() {
	case "class_specifier", "struct_specifier":
		name := n.ChildByFieldName("name")
		if name != nil && n.ChildByFieldName("body") != nil {
			className := s.text(name)
			s.prog.Symbols.Classes = append(s.prog.Symbols.Classes, Symbol{
				Name:    className,
				Kind:    SymbolClass,
				Scope:   scope,
				Line:    out.StartLine,
				EndLine: out.EndLine,
				Node:    out,
			})
			childScope = className
		}

	case "function_definition":
		name, qualifier := s.functionName(n)
		if name != "" {
			sym := Symbol{
				Name:    name,
				Kind:    SymbolFunction,
				Scope:   scope,
				Line:    out.StartLine,
				EndLine: out.EndLine,
				Node:    out,
			}
			switch {
			case qualifier != "":
				sym.Kind = SymbolMethod
				sym.Scope = qualifier
			case scope != "":
				sym.Kind = SymbolMethod
			}
			if sym.Kind == SymbolMethod {
				s.prog.Symbols.Methods = append(s.prog.Symbols.Methods, sym)
			} else {
				s.prog.Symbols.Functions = append(s.prog.Symbols.Functions, sym)
			}
			childFn = name
			if body := n.ChildByFieldName("body"); body != nil {
				s.addBlocks(body, name)
			}
		}

	case "declaration":
		s.addVariables(n, scope, fn, out.StartLine, out.EndLine)

	case "field_declaration":
		s.addVariables(n, scope, fn, out.StartLine, out.EndLine)

	case "assignment_expression":
		if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" && fn != "" {
			s.defs[left.StartByte()] = true
			s.prog.DataFlow.Definitions = append(s.prog.DataFlow.Definitions, DataFlowFact{
				Name:     s.text(left),
				Function: fn,
				Line:     int(left.StartPoint().Row) + 1,
			})
		}

	case "preproc_include":
		if path := n.ChildByFieldName("path"); path != nil {
			raw := s.text(path)
			s.prog.Includes = append(s.prog.Includes, Include{
				Path:   strings.Trim(raw, `<>"`),
				System: path.Type() == "system_lib_string",
				Line:   out.StartLine,
			})
		}

	case "identifier":
		if fn != "" && !s.defs[n.StartByte()] {
			s.prog.DataFlow.Uses = append(s.prog.DataFlow.Uses, DataFlowFact{
				Name:     s.text(n),
				Function: fn,
				Line:     out.StartLine,
			})
		}
	}

	count := int(n.NamedChildCount())
	if count > 0 {
		out.Children = make([]*Node, 0, count)
	}
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		out.Children = append(out.Children, s.convert(child, childScope, childFn))
	}
	return out
}

// functionName resolves the declared name of a function_definition and the
// class qualifier of an out-of-line definition (`Foo::bar` -> "bar", "Foo").
func (s *buildState) functionName(n *sitter.Node) (name, qualifier string) {
	d := n.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "qualified_identifier":
			if sc := d.ChildByFieldName("scope"); sc != nil {
				qualifier = s.text(sc)
			}
			next := d.ChildByFieldName("name")
			if next == nil {
				return s.text(d), qualifier
			}
			d = next
		case "identifier", "field_identifier", "destructor_name", "operator_name", "type_identifier":
			return s.text(d), qualifier
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return "", qualifier
}

// declaratorKinds are the node types that declare a variable name.
var declaratorKinds = map[string]bool{
	"init_declarator":      true,
	"identifier":           true,
	"field_identifier":     true,
	"pointer_declarator":   true,
	"reference_declarator": true,
	"array_declarator":     true,
}

// addVariables records the variables declared by a declaration or
// field_declaration. Function prototypes are ignored.
func (s *buildState) addVariables(n *sitter.Node, scope, fn string, line, endLine int) {
	typeNode := n.ChildByFieldName("type")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || !declaratorKinds[child.Type()] {
			continue
		}
		if typeNode != nil && child.StartByte() == typeNode.StartByte() && child.EndByte() == typeNode.EndByte() {
			continue
		}
		id := s.declaredIdentifier(child)
		if id == nil {
			continue
		}
		owner := scope
		if fn != "" {
			owner = fn
		}
		s.prog.Symbols.Variables = append(s.prog.Symbols.Variables, Symbol{
			Name:    s.text(id),
			Kind:    SymbolVariable,
			Scope:   owner,
			Line:    line,
			EndLine: endLine,
		})
		if fn != "" {
			s.defs[id.StartByte()] = true
			s.prog.DataFlow.Definitions = append(s.prog.DataFlow.Definitions, DataFlowFact{
				Name:     s.text(id),
				Function: fn,
				Line:     int(id.StartPoint().Row) + 1,
			})
		}
	}
}

// declaredIdentifier unwraps pointer/reference/array/init declarators down
// to the identifier. Returns nil for function declarators.
func (s *buildState) declaredIdentifier(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier":
			return d
		case "function_declarator":
			return nil
		case "reference_declarator":
			// reference_declarator has no declarator field; its child is positional.
			var next *sitter.Node
			for i := 0; i < int(d.NamedChildCount()); i++ {
				next = d.NamedChild(i)
			}
			d = next
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return nil
}

// addBlocks appends one basic block per top-level statement of body, with
// fall-through edges between consecutive blocks and a back edge on loops.
func (s *buildState) addBlocks(body *sitter.Node, fn string) {
	cfg := s.prog.CFG
	prev := -1
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt == nil || stmt.Type() == "comment" {
			continue
		}
		id := len(cfg.Blocks)
		kind := blockKind(stmt.Type())
		cfg.Blocks = append(cfg.Blocks, BasicBlock{
			ID:        id,
			Function:  fn,
			StartLine: int(stmt.StartPoint().Row) + 1,
			EndLine:   int(stmt.EndPoint().Row) + 1,
			Kind:      kind,
		})
		if prev >= 0 && cfg.Blocks[prev].Kind != "return" {
			cfg.Edges = append(cfg.Edges, Edge{From: prev, To: id})
		}
		if kind == "loop" {
			cfg.Edges = append(cfg.Edges, Edge{From: id, To: id})
		}
		prev = id
	}
}

func blockKind(stmtType string) string {
	switch stmtType {
	case "if_statement", "switch_statement":
		return "branch"
	case "for_statement", "for_range_loop", "while_statement", "do_statement":
		return "loop"
	case "return_statement", "throw_statement":
		return "return"
	default:
		return "statement"
	}
}

func (s *buildState) text(n *sitter.Node) string {
	return n.Content(s.content)
}

// countLines counts source lines; a trailing newline does not open a new line.
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	lines := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		lines++
	}
	return lines
}
