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
	"time"

	"github.com/AleutianAI/codereview/services/review/rules"
)

// ExecutionResult is the report of one Execute call. Consumers treat it as
// read-only.
type ExecutionResult struct {
	// RunID identifies the call in logs and traces.
	RunID string `json:"run_id"`

	// File is the analyzed file from the context.
	File string `json:"file"`

	// Violations passed the confidence floor.
	Violations []rules.Violation `json:"violations"`

	// ExecutedRules counts rules whose detector was started.
	ExecutedRules int `json:"executed_rules"`

	// SkippedRules counts the rest of the registry.
	// ExecutedRules + SkippedRules always equals the registry size.
	SkippedRules int `json:"skipped_rules"`

	// Failures has one entry per rule that errored, panicked or timed out.
	Failures []rules.RuleExecutionError `json:"failures"`

	// CacheHit is true when Violations came from the cache.
	CacheHit bool `json:"cache_hit"`

	// CacheKey is the resolved key, empty when caching was off.
	CacheKey string `json:"cache_key,omitempty"`

	// Partial is true when ctx ended before every selected rule started.
	// Partial results are not cached.
	Partial bool `json:"partial,omitempty"`

	TotalTime   time.Duration      `json:"total_time_ns"`
	Performance PerformanceSummary `json:"performance"`
	StartedAt   time.Time          `json:"started_at"`
}

// HasFailures reports whether any rule failed.
func (r *ExecutionResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// BySeverity groups the violations by their rule's severity.
func (r *ExecutionResult) BySeverity() map[rules.Severity][]rules.Violation {
	out := make(map[rules.Severity][]rules.Violation)
	for _, v := range r.Violations {
		out[v.Metadata.Severity] = append(out[v.Metadata.Severity], v)
	}
	return out
}
