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
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// ruleValidate is the validator instance for rule definitions.
var ruleValidate *validator.Validate

func init() {
	ruleValidate = validator.New()

	_ = ruleValidate.RegisterValidation("rulecategory", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = ruleValidate.RegisterValidation("ruleseverity", func(fl validator.FieldLevel) bool {
		return Severity(fl.Field().String()).Valid()
	})
}

// Validate checks a rule definition.
//
// Description:
//
//	Enforces a non-empty ID, a non-nil detector, a known category and
//	severity, priority in 0-100 and base confidence in [0,1].
//
// Outputs:
//
//	error - Wraps ErrInvalidRule with the failing field, nil if valid.
func (r Rule) Validate() error {
	if r.Detector == nil {
		return fmt.Errorf("%w: %q has no detector", ErrInvalidRule, r.ID)
	}
	if err := ruleValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidRule, r.ID, err)
	}
	return nil
}
