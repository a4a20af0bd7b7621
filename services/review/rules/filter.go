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

import "sort"

// FilterOptions selects a subset of rules. The zero value selects every
// enabled rule.
type FilterOptions struct {
	// Categories restricts to these categories. Empty means all.
	Categories []Category

	// Severities restricts to these severities. Empty means all; a single
	// element behaves as a scalar filter.
	Severities []Severity

	// DomainSpecificOnly keeps only domain-specific rules.
	DomainSpecificOnly bool

	// IncludeDisabled turns off the enabled-only filter.
	IncludeDisabled bool
}

// Select returns the rules to execute, highest priority first.
//
// Description:
//
//	Applies, in order: the enabled-only filter (unless IncludeDisabled),
//	category inclusion, severity inclusion, the domain-specific filter,
//	then a stable sort by descending priority. Ties keep input order.
//
//	Filters that match nothing yield an empty slice, never an error.
//
// Inputs:
//
//	rules - Candidate rules, normally Registry.All(). Not modified.
//	opts - Filter options.
//
// Outputs:
//
//	[]Rule - Newly allocated, ordered selection.
func Select(rules []Rule, opts FilterOptions) []Rule {
	categories := make(map[Category]struct{}, len(opts.Categories))
	for _, c := range opts.Categories {
		categories[c] = struct{}{}
	}
	severities := make(map[Severity]struct{}, len(opts.Severities))
	for _, s := range opts.Severities {
		severities[s] = struct{}{}
	}

	selected := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if !opts.IncludeDisabled && !rule.Enabled {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[rule.Category]; !ok {
				continue
			}
		}
		if len(severities) > 0 {
			if _, ok := severities[rule.Severity]; !ok {
				continue
			}
		}
		if opts.DomainSpecificOnly && !rule.DomainSpecific {
			continue
		}
		selected = append(selected, rule)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Priority > selected[j].Priority
	})

	return selected
}
