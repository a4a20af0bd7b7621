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

// Statistics summarizes the registry contents.
type Statistics struct {
	TotalRules          int              `json:"total_rules"`
	EnabledRules        int              `json:"enabled_rules"`
	DisabledRules       int              `json:"disabled_rules"`
	ByCategory          map[Category]int `json:"by_category"`
	BySeverity          map[Severity]int `json:"by_severity"`
	DomainSpecificCount int              `json:"domain_specific_count"`
}

// Statistics computes the distribution of the registry's rules.
//
// Computed on every call; the registry keeps no counters. Every known
// category and severity has an entry, zero when unused.
func (r *Registry) Statistics() Statistics {
	stats := Statistics{
		TotalRules: len(r.rules),
		ByCategory: make(map[Category]int, len(Categories)),
		BySeverity: make(map[Severity]int, len(Severities)),
	}
	for _, c := range Categories {
		stats.ByCategory[c] = 0
	}
	for _, s := range Severities {
		stats.BySeverity[s] = 0
	}

	for _, rule := range r.rules {
		if rule.Enabled {
			stats.EnabledRules++
		} else {
			stats.DisabledRules++
		}
		stats.ByCategory[rule.Category]++
		stats.BySeverity[rule.Severity]++
		if rule.DomainSpecific {
			stats.DomainSpecificCount++
		}
	}

	return stats
}
