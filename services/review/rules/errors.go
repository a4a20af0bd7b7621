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

import "errors"

var (
	// ErrDuplicateRule is returned when two rules share an ID.
	ErrDuplicateRule = errors.New("duplicate rule id")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrNotFound indicates a rule ID is not in the registry.
	//
	// ByID reports absence with a boolean; this sentinel exists for callers
	// that want to turn absence into an error of their own.
	ErrNotFound = errors.New("rule not found")
)
