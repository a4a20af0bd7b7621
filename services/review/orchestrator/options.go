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
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/codereview/services/review/executor"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// DefaultMinConfidence is the confidence floor when Options.MinConfidence is nil.
const DefaultMinConfidence = 0.5

var optionsValidate = validator.New()

// Options configures one Execute call.
//
// Start from DefaultOptions: the zero value disables caching.
type Options struct {
	// Categories restricts the run to these categories. Empty means all.
	Categories []rules.Category `json:"categories,omitempty"`

	// Severities restricts the run to these severities. Empty means all.
	Severities []rules.Severity `json:"severities,omitempty"`

	// DomainSpecificOnly runs only domain-specific rules.
	DomainSpecificOnly bool `json:"domain_specific_only,omitempty"`

	// IncludeDisabled also runs rules whose Enabled flag is false.
	IncludeDisabled bool `json:"include_disabled,omitempty"`

	// MaxConcurrency is the chunk size; 1 runs sequentially and 0 means
	// one slot per CPU.
	MaxConcurrency int `json:"max_concurrency" validate:"gte=0"`

	// TimeoutPerRule bounds the wait for one detector; 0 means
	// executor.DefaultTimeoutPerRule.
	TimeoutPerRule time.Duration `json:"timeout_per_rule" validate:"gte=0"`

	// MinConfidence drops violations below it. Nil means
	// DefaultMinConfidence; a pointer so that 0 can be asked for.
	MinConfidence *float64 `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`

	// UseCache enables the cache lookup and store.
	UseCache bool `json:"use_cache"`

	// CacheKey overrides the fingerprint when non-empty.
	CacheKey string `json:"cache_key,omitempty"`
}

// DefaultOptions returns enabled-only, all categories, one slot per CPU,
// a five second timeout, a 0.5 floor and caching on.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: runtime.NumCPU(),
		TimeoutPerRule: executor.DefaultTimeoutPerRule,
		UseCache:       true,
	}
}

// Float returns a pointer to f, for Options.MinConfidence.
func Float(f float64) *float64 {
	return &f
}

// Validate checks field bounds and the category and severity names.
func (o Options) Validate() error {
	if err := optionsValidate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	for _, c := range o.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidOptions, c)
		}
	}
	for _, s := range o.Severities {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidOptions, s)
		}
	}
	return nil
}

// minConfidence resolves the floor.
func (o Options) minConfidence() float64 {
	if o.MinConfidence == nil {
		return DefaultMinConfidence
	}
	return *o.MinConfidence
}

func (o Options) filter() rules.FilterOptions {
	return rules.FilterOptions{
		Categories:         o.Categories,
		Severities:         o.Severities,
		DomainSpecificOnly: o.DomainSpecificOnly,
		IncludeDisabled:    o.IncludeDisabled,
	}
}

func (o Options) executorConfig() executor.Config {
	cfg := executor.DefaultConfig()
	if o.MaxConcurrency > 0 {
		cfg.MaxConcurrency = o.MaxConcurrency
	}
	if o.TimeoutPerRule > 0 {
		cfg.TimeoutPerRule = o.TimeoutPerRule
	}
	return cfg
}
