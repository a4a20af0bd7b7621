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

import "github.com/AleutianAI/codereview/services/review/rules"

// CatalogueVersion tracks the built-in rule set version.
const CatalogueVersion = "2026.10"

// Builtin returns the built-in rule catalogue.
//
// Description:
//
//	Returns a fresh slice on every call so callers may apply overrides
//	without affecting each other. Every rule is enabled.
//
// Outputs:
//
//	[]rules.Rule - Rules in catalogue order, grouped by category.
func Builtin() []rules.Rule {
	return []rules.Rule{
		// Null safety
		{
			ID:             "NULL-001",
			Name:           "unchecked-pointer-parameter",
			Description:    "Pointer parameter dereferenced before it is tested for null.",
			Category:       rules.CategoryNullSafety,
			Severity:       rules.SeverityCritical,
			Priority:       90,
			BaseConfidence: 0.7,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectUncheckedPointerParam),
		},
		{
			ID:             "NULL-002",
			Name:           "unchecked-allocation",
			Description:    "Result of new used without a null check.",
			Category:       rules.CategoryNullSafety,
			Severity:       rules.SeverityMinor,
			Priority:       35,
			BaseConfidence: 0.6,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectUncheckedAllocation),
		},

		// Memory
		{
			ID:             "MEM-001",
			Name:           "leaked-allocation",
			Description:    "Raw allocation never deleted, returned or handed off.",
			Category:       rules.CategoryMemory,
			Severity:       rules.SeverityCritical,
			Priority:       85,
			BaseConfidence: 0.75,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectLeakedAllocation),
		},
		{
			ID:             "MEM-002",
			Name:           "double-delete",
			Description:    "Pointer deleted twice without reassignment.",
			Category:       rules.CategoryMemory,
			Severity:       rules.SeverityCritical,
			Priority:       95,
			BaseConfidence: 0.85,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectDoubleDelete),
		},

		// Concurrency
		{
			ID:             "CONC-001",
			Name:           "unsynchronized-member-write",
			Description:    "Member state modified in a class that owns no mutex.",
			Category:       rules.CategoryConcurrency,
			Severity:       rules.SeverityMajor,
			Priority:       60,
			BaseConfidence: 0.55,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectUnsynchronizedMember),
		},
		{
			ID:             "CONC-002",
			Name:           "write-without-lock",
			Description:    "Member state modified without taking the class mutex.",
			Category:       rules.CategoryConcurrency,
			Severity:       rules.SeverityMajor,
			Priority:       70,
			BaseConfidence: 0.7,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectUnlockedWrite),
		},

		// Convention
		{
			ID:             "CONV-001",
			Name:           "class-pascal-case",
			Description:    "Class and struct names use PascalCase.",
			Category:       rules.CategoryConvention,
			Severity:       rules.SeverityMinor,
			Priority:       40,
			BaseConfidence: 0.8,
			Enabled:        true,
			DomainSpecific: true,
			Detector:       rules.DetectorFunc(detectClassNaming),
		},
		{
			ID:             "CONV-002",
			Name:           "method-pascal-case",
			Description:    "Method names use PascalCase.",
			Category:       rules.CategoryConvention,
			Severity:       rules.SeverityMinor,
			Priority:       30,
			BaseConfidence: 0.7,
			Enabled:        true,
			DomainSpecific: true,
			Detector:       rules.DetectorFunc(detectMethodNaming),
		},

		// Security
		{
			ID:             "SEC-001",
			Name:           "sql-concatenation",
			Description:    "SQL built by concatenating values into query text.",
			Category:       rules.CategorySecurity,
			Severity:       rules.SeverityCritical,
			Priority:       95,
			BaseConfidence: 0.85,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectSQLConcatenation),
		},
		{
			ID:             "SEC-002",
			Name:           "unsafe-c-string",
			Description:    "Unbounded C string function.",
			Category:       rules.CategorySecurity,
			Severity:       rules.SeverityMajor,
			Priority:       80,
			BaseConfidence: 0.8,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectUnsafeCString),
		},
		{
			ID:             "SEC-003",
			Name:           "formatted-query",
			Description:    "printf-style database call with a %s argument.",
			Category:       rules.CategorySecurity,
			Severity:       rules.SeverityMajor,
			Priority:       75,
			BaseConfidence: 0.7,
			Enabled:        true,
			DomainSpecific: true,
			Detector:       rules.DetectorFunc(detectFormattedQuery),
		},

		// Performance
		{
			ID:             "PERF-001",
			Name:           "string-concat-in-loop",
			Description:    "std::string appended with += inside a loop.",
			Category:       rules.CategoryPerformance,
			Severity:       rules.SeverityMinor,
			Priority:       50,
			BaseConfidence: 0.65,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectStringConcatInLoop),
		},
		{
			ID:             "PERF-002",
			Name:           "pass-by-value",
			Description:    "Class or container parameter taken by value.",
			Category:       rules.CategoryPerformance,
			Severity:       rules.SeverityMinor,
			Priority:       55,
			BaseConfidence: 0.6,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectPassByValue),
		},

		// Architecture
		{
			ID:             "ARCH-001",
			Name:           "god-class",
			Description:    "Class with too many methods.",
			Category:       rules.CategoryArchitecture,
			Severity:       rules.SeverityInfo,
			Priority:       45,
			BaseConfidence: 0.6,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectGodClass),
		},
		{
			ID:             "ARCH-002",
			Name:           "using-namespace-in-header",
			Description:    "using namespace directive in a header file.",
			Category:       rules.CategoryArchitecture,
			Severity:       rules.SeverityMinor,
			Priority:       50,
			BaseConfidence: 0.9,
			Enabled:        true,
			Detector:       rules.DetectorFunc(detectUsingNamespaceInHeader),
		},
	}
}
