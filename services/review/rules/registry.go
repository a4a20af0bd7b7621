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

import "fmt"

// Registry is the immutable catalogue of rules.
//
// Description:
//
//	Rules are fixed at NewRegistry time. Every accessor returns a fresh
//	slice copy so callers cannot mutate registry storage.
//
// Thread Safety:
//
//	Safe for concurrent use. Nothing is written after construction.
type Registry struct {
	rules      []Rule
	byID       map[string]int
	byCategory map[Category][]int
	bySeverity map[Severity][]int
}

// NewRegistry builds a registry from rule definitions.
//
// Description:
//
//	Validates every rule and indexes it by ID, category and severity.
//	Registration order is preserved and is the tie-break order used by
//	Select.
//
// Inputs:
//
//	rules - Rule definitions. May be empty.
//
// Outputs:
//
//	*Registry - The registry.
//	error - ErrInvalidRule or ErrDuplicateRule (wrapped) on the first bad rule.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{
		rules:      make([]Rule, 0, len(rules)),
		byID:       make(map[string]int, len(rules)),
		byCategory: make(map[Category][]int),
		bySeverity: make(map[Severity][]int),
	}

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byID[rule.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
		}
		idx := len(r.rules)
		r.rules = append(r.rules, rule)
		r.byID[rule.ID] = idx
		r.byCategory[rule.Category] = append(r.byCategory[rule.Category], idx)
		r.bySeverity[rule.Severity] = append(r.bySeverity[rule.Severity], idx)
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. For static catalogues.
func MustRegistry(rules ...Rule) *Registry {
	r, err := NewRegistry(rules...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every rule in registration order.
func (r *Registry) All() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// ByCategory returns the rules of one category in registration order.
func (r *Registry) ByCategory(c Category) []Rule {
	return r.pick(r.byCategory[c])
}

// BySeverity returns the rules of one severity in registration order.
func (r *Registry) BySeverity(s Severity) []Rule {
	return r.pick(r.bySeverity[s])
}

// ByID looks up a rule. Absence is reported by the boolean, not an error.
func (r *Registry) ByID(id string) (Rule, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return r.rules[idx], true
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

func (r *Registry) pick(indexes []int) []Rule {
	out := make([]Rule, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, r.rules[idx])
	}
	return out
}
