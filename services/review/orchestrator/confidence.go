// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

const (
	// DomainMatchFactor rewards a domain-specific rule run on a domain project.
	DomainMatchFactor = 1.1

	// LowPriorityFactor penalizes rules below LowPriorityThreshold.
	LowPriorityFactor = 0.9

	// LowPriorityThreshold is the priority under which LowPriorityFactor applies.
	LowPriorityThreshold = 50
)

// AdjustConfidence computes the final confidence of one violation.
//
// Description:
//
//	Starts from rule.Seed(raw), multiplies by DomainMatchFactor when the
//	rule is domain-specific and actx.Domain is set, then by
//	LowPriorityFactor when the rule's priority is under
//	LowPriorityThreshold, and clamps to [0,1].
//	A heuristic, not a calibrated model.
//
// Examples:
//
//	seed 0.6, priority 10            -> 0.54
//	seed 0.9, priority 90            -> 0.9
//	seed 0.95, domain match, prio 80 -> 1.0 (clamped)
func AdjustConfidence(raw rules.RawViolation, rule rules.Rule, actx ast.Context) float64 {
	c := rule.Seed(raw)
	if rule.DomainSpecific && actx.Domain {
		c *= DomainMatchFactor
	}
	if rule.Priority < LowPriorityThreshold {
		c *= LowPriorityFactor
	}
	return clamp(c)
}

func clamp(c float64) float64 {
	switch {
	case c > 1:
		return 1
	case c < 0:
		return 0
	default:
		return c
	}
}
