// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"fmt"

	"github.com/AleutianAI/codereview/services/review/ast"
)

// =============================================================================
// Enumerations
// =============================================================================

// Category groups rules by the kind of defect they detect.
type Category string

const (
	CategoryNullSafety   Category = "null_safety"
	CategoryMemory       Category = "memory"
	CategoryConcurrency  Category = "concurrency"
	CategoryConvention   Category = "convention"
	CategorySecurity     Category = "security"
	CategoryPerformance  Category = "performance"
	CategoryArchitecture Category = "architecture"
)

// Categories lists every category in reporting order.
var Categories = []Category{
	CategoryNullSafety,
	CategoryMemory,
	CategoryConcurrency,
	CategoryConvention,
	CategorySecurity,
	CategoryPerformance,
	CategoryArchitecture,
}

// Valid reports whether c is one of the seven categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity is the impact level of a rule's violations.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityMajor,
	SeverityMinor,
	SeverityInfo,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}
	return false
}

// =============================================================================
// Detector
// =============================================================================

// Detector implements one rule's violation detection.
//
// Description:
//
//	Detect inspects the shared Program and Context and returns the sites it
//	considers violations. Detectors must be deterministic and must not
//	mutate prog or actx; they run concurrently against the same values.
//
//	ctx is cancelled when the executor stops waiting for the result
//	(timeout or caller cancellation). Honouring it is optional: the
//	executor never forcibly stops a detector, so a detector that ignores
//	ctx keeps running in the background after a timeout.
//
//	A returned error or a panic marks the rule as failed for this run
//	without affecting any other rule.
type Detector interface {
	Detect(ctx context.Context, prog *ast.Program, actx ast.Context) ([]RawViolation, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(ctx context.Context, prog *ast.Program, actx ast.Context) ([]RawViolation, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, prog *ast.Program, actx ast.Context) ([]RawViolation, error) {
	return f(ctx, prog, actx)
}

// =============================================================================
// Rule
// =============================================================================

// Rule is one entry of the rule database.
//
// Rules are values: the registry copies them at construction and never
// hands out pointers into its storage.
type Rule struct {
	// ID is unique across the registry (e.g. "MEM-001").
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is a short human-readable title.
	Name string `json:"name" yaml:"name"`

	// Description explains what the rule looks for.
	Description string `json:"description,omitempty" yaml:"description"`

	Category Category `json:"category" yaml:"category" validate:"rulecategory"`
	Severity Severity `json:"severity" yaml:"severity" validate:"ruleseverity"`

	// Priority orders execution and ranking, 0-100, higher first.
	Priority int `json:"priority" yaml:"priority" validate:"gte=0,lte=100"`

	// BaseConfidence seeds violations whose detector supplies no confidence.
	BaseConfidence float64 `json:"base_confidence" yaml:"base_confidence" validate:"gte=0,lte=1"`

	Enabled bool `json:"enabled" yaml:"enabled"`

	// DomainSpecific marks rules that only make sense for TrinityCore-style
	// projects. They earn a confidence bonus on such projects.
	DomainSpecific bool `json:"domain_specific" yaml:"domain_specific"`

	// Detector is checked by Validate directly, not through struct tags.
	Detector Detector `json:"-" yaml:"-" validate:"-"`
}

// =============================================================================
// Violations
// =============================================================================

// Location is a position in an analyzed file. Line and Column are 1-based.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// SuggestedFix is an optional remediation attached to a violation.
type SuggestedFix struct {
	Description string `json:"description"`
	Diff        string `json:"diff,omitempty"`
}

// RawViolation is what a detector reports for one matched site.
type RawViolation struct {
	Location    Location      `json:"location"`
	Message     string        `json:"message"`
	Explanation string        `json:"explanation,omitempty"`
	Snippet     string        `json:"snippet,omitempty"`
	Fix         *SuggestedFix `json:"fix,omitempty"`

	// Confidence is the detector's seed in [0,1]. Zero means "use the
	// rule's base confidence".
	Confidence float64 `json:"detector_confidence"`
}

// SourceDetector is the Metadata.Source of violations produced by a detector run.
const SourceDetector = "detector"

// Metadata describes where a violation came from.
type Metadata struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Priority int      `json:"priority"`
	Source   string   `json:"source"`
}

// Violation is a RawViolation resolved against its rule.
//
// Confidence starts as the raw seed and is replaced exactly once by the
// orchestrator's adjusted value. Violations are not modified after that.
type Violation struct {
	RawViolation
	RuleID     string   `json:"rule_id"`
	Confidence float64  `json:"confidence"`
	Metadata   Metadata `json:"metadata"`
}

// Seed returns the starting confidence of raw: the detector's value, or
// the rule's BaseConfidence when the detector left it at zero. Zero means
// "unset", so a detector cannot report a literal zero confidence.
func (r Rule) Seed(raw RawViolation) float64 {
	if raw.Confidence == 0 {
		return r.BaseConfidence
	}
	return raw.Confidence
}

// NewViolation tags raw with rule's identity and metadata. Confidence starts
// at rule.Seed(raw).
func NewViolation(rule Rule, raw RawViolation) Violation {
	return Violation{
		RawViolation: raw,
		RuleID:       rule.ID,
		Confidence:   rule.Seed(raw),
		Metadata: Metadata{
			Category: rule.Category,
			Severity: rule.Severity,
			Priority: rule.Priority,
			Source:   SourceDetector,
		},
	}
}

// =============================================================================
// Rule-scoped errors
// =============================================================================

// RuleExecutionError records one rule's failure during a run.
//
// It is data in the result, never a reason to abort the run.
type RuleExecutionError struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`

	// Timeout is true when the executor stopped waiting for the rule.
	Timeout bool `json:"timeout,omitempty"`
}

// Error implements error.
func (e RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Message)
}
