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

// Overrides adjusts rule definitions before a registry is built.
type Overrides struct {
	// Disabled lists rule IDs to disable.
	Disabled []string `yaml:"disabled" json:"disabled,omitempty"`

	// Enabled lists rule IDs to enable. Applied after Disabled.
	Enabled []string `yaml:"enabled" json:"enabled,omitempty"`

	// Priorities replaces the priority of the named rules.
	Priorities map[string]int `yaml:"priority_overrides" json:"priority_overrides,omitempty" validate:"dive,gte=0,lte=100"`
}

// IsZero reports whether o changes nothing.
func (o Overrides) IsZero() bool {
	return len(o.Disabled) == 0 && len(o.Enabled) == 0 && len(o.Priorities) == 0
}

// ApplyOverrides returns a copy of rules with o applied.
//
// Description:
//
//	IDs that match no rule are returned in unknown so the caller can warn
//	about stale configuration. The input slice is not modified.
//
// Outputs:
//
//	[]Rule - Adjusted copy, same order as the input.
//	[]string - Override IDs that matched no rule, in first-seen order.
func ApplyOverrides(rules []Rule, o Overrides) ([]Rule, []string) {
	out := make([]Rule, len(rules))
	copy(out, rules)

	index := make(map[string]int, len(out))
	for i, rule := range out {
		index[rule.ID] = i
	}

	var unknown []string
	seen := make(map[string]bool)
	miss := func(id string) {
		if !seen[id] {
			seen[id] = true
			unknown = append(unknown, id)
		}
	}

	for _, id := range o.Disabled {
		if i, ok := index[id]; ok {
			out[i].Enabled = false
		} else {
			miss(id)
		}
	}
	for _, id := range o.Enabled {
		if i, ok := index[id]; ok {
			out[i].Enabled = true
		} else {
			miss(id)
		}
	}

	// Map iteration order is random; walk the rules instead so unknown
	// stays deterministic.
	matched := make(map[string]bool, len(o.Priorities))
	for i := range out {
		if p, ok := o.Priorities[out[i].ID]; ok {
			out[i].Priority = p
			matched[out[i].ID] = true
		}
	}
	var extra []string
	for id := range o.Priorities {
		if !matched[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		miss(id)
	}

	return out, unknown
}
