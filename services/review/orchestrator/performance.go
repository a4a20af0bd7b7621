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
	"sort"
	"time"
)

// RuleTiming is one rule's wall-clock time.
type RuleTiming struct {
	RuleID   string        `json:"rule_id"`
	Duration time.Duration `json:"duration_ns"`
}

// PerformanceSummary aggregates per-rule timings of a run.
type PerformanceSummary struct {
	Average time.Duration `json:"average_ns"`
	Slowest RuleTiming    `json:"slowest"`
	Fastest RuleTiming    `json:"fastest"`
}

// Summarize computes the average, slowest and fastest rule.
//
// An empty map yields the zero summary. Ties go to the smaller rule ID so
// the result does not depend on map order.
func Summarize(timings map[string]time.Duration) PerformanceSummary {
	if len(timings) == 0 {
		return PerformanceSummary{}
	}

	ids := make([]string, 0, len(timings))
	for id := range timings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var total time.Duration
	slowest := RuleTiming{RuleID: ids[0], Duration: timings[ids[0]]}
	fastest := slowest
	for _, id := range ids {
		d := timings[id]
		total += d
		if d > slowest.Duration {
			slowest = RuleTiming{RuleID: id, Duration: d}
		}
		if d < fastest.Duration {
			fastest = RuleTiming{RuleID: id, Duration: d}
		}
	}

	return PerformanceSummary{
		Average: total / time.Duration(len(ids)),
		Slowest: slowest,
		Fastest: fastest,
	}
}
