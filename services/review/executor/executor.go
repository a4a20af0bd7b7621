// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs rule detectors under a concurrency bound and a
// per-rule timeout.
//
// Execution modes:
//
//   - MaxConcurrency == 1: rules run one at a time in the given order.
//   - MaxConcurrency > 1: the ordered rules are cut into consecutive chunks
//     of MaxConcurrency. Chunks run strictly one after another; the rules
//     of a chunk run concurrently.
//
// Every rule is isolated: an error, a panic or a timeout becomes a
// rules.RuleExecutionError in the Outcome and never stops other rules.
//
// A timeout stops the executor waiting for the detector. The detector's
// context is cancelled at that moment, but the detector goroutine is not
// killed; one that ignores its context keeps running in the background.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// DefaultTimeoutPerRule bounds how long the executor waits for one detector.
const DefaultTimeoutPerRule = 5 * time.Second

var (
	// ErrInvalidConfig is returned by New for a bad Config.
	ErrInvalidConfig = errors.New("invalid executor config")

	// ErrDetectorPanic wraps a panic recovered from a detector.
	ErrDetectorPanic = errors.New("detector panicked")
)

var configValidate = validator.New()

// Config bounds one execution.
type Config struct {
	// MaxConcurrency is the chunk size. 1 selects sequential mode.
	MaxConcurrency int `validate:"gte=1"`

	// TimeoutPerRule is how long to wait for a single detector.
	TimeoutPerRule time.Duration `validate:"gt=0"`
}

// DefaultConfig returns one chunk slot per CPU and a five second timeout.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: runtime.NumCPU(),
		TimeoutPerRule: DefaultTimeoutPerRule,
	}
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Outcome is the merged result of one execution.
type Outcome struct {
	// Violations from every rule that completed, tagged with rule metadata.
	// Chunk i's violations precede chunk i+1's; within a rule the
	// detector's order is preserved.
	Violations []rules.Violation

	// Failures holds one entry per rule that errored, panicked or timed out.
	Failures []rules.RuleExecutionError

	// Timings has the wall-clock time of every rule that was started,
	// whatever its outcome.
	Timings map[string]time.Duration

	// Executed lists the IDs of rules that were started, in input order.
	Executed []string

	// NotRun lists the IDs of rules never started because ctx was done.
	NotRun []string
}

func newOutcome(n int) *Outcome {
	return &Outcome{
		Violations: []rules.Violation{},
		Failures:   []rules.RuleExecutionError{},
		Timings:    make(map[string]time.Duration, n),
		Executed:   make([]string, 0, n),
	}
}

// ruleResult is what a single rule contributes before merging.
type ruleResult struct {
	ruleID     string
	violations []rules.Violation
	failure    *rules.RuleExecutionError
	duration   time.Duration
}

// merge appends r to the outcome. Only the executor goroutine calls it.
func (o *Outcome) merge(r ruleResult) {
	o.Executed = append(o.Executed, r.ruleID)
	o.Timings[r.ruleID] = r.duration
	o.Violations = append(o.Violations, r.violations...)
	if r.failure != nil {
		o.Failures = append(o.Failures, *r.failure)
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for rule failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Executor runs rules. It is stateless between calls.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Execute call owns its Outcome.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an executor.
//
// Outputs:
//
//	*Executor - The executor.
//	error - ErrInvalidConfig (wrapped) when cfg fails validation.
func New(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the executor's bounds.
func (e *Executor) Config() Config {
	return e.cfg
}

// Execute runs selected against prog and actx.
//
// Description:
//
//	Runs in sequential mode when MaxConcurrency is 1, chunked otherwise.
//	Never returns an error: rule problems are Failures. When ctx is done
//	before a rule (sequential) or a chunk (parallel) starts, that rule or
//	every rule of that chunk and later chunks is listed in NotRun.
//	Rules already running when ctx is done fail with the context error.
//
// Inputs:
//
//	ctx - Cancellation for the whole run.
//	selected - Rules in execution order. Not modified.
//	prog, actx - Shared read-only analysis input.
//
// Outputs:
//
//	*Outcome - Never nil.
func (e *Executor) Execute(ctx context.Context, selected []rules.Rule, prog *ast.Program, actx ast.Context) *Outcome {
	out := newOutcome(len(selected))
	start := time.Now()
	mode := "parallel"
	if e.cfg.MaxConcurrency == 1 {
		mode = "sequential"
	}

	if mode == "sequential" {
		e.runSequential(ctx, selected, prog, actx, out)
	} else {
		e.runChunked(ctx, selected, prog, actx, out)
	}

	executionDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return out
}

func (e *Executor) runSequential(ctx context.Context, selected []rules.Rule, prog *ast.Program, actx ast.Context, out *Outcome) {
	for i, rule := range selected {
		if ctx.Err() != nil {
			out.NotRun = appendIDs(out.NotRun, selected[i:])
			return
		}
		out.merge(e.runRule(ctx, rule, prog, actx))
	}
}

func (e *Executor) runChunked(ctx context.Context, selected []rules.Rule, prog *ast.Program, actx ast.Context, out *Outcome) {
	size := e.cfg.MaxConcurrency
	for lo := 0; lo < len(selected); lo += size {
		if ctx.Err() != nil {
			out.NotRun = appendIDs(out.NotRun, selected[lo:])
			return
		}

		hi := lo + size
		if hi > len(selected) {
			hi = len(selected)
		}
		chunk := selected[lo:hi]
		results := make([]ruleResult, len(chunk))

		var g errgroup.Group
		for i, rule := range chunk {
			i, rule := i, rule
			g.Go(func() error {
				results[i] = e.runRule(ctx, rule, prog, actx)
				return nil
			})
		}
		// runRule never returns an error; failures live in results.
		_ = g.Wait()

		for _, r := range results {
			out.merge(r)
		}
		chunksTotal.Inc()
	}
}

// detection is what the detector goroutine sends back.
type detection struct {
	violations []rules.RawViolation
	err        error
}

// runRule races one detector against the per-rule timeout.
func (e *Executor) runRule(ctx context.Context, rule rules.Rule, prog *ast.Program, actx ast.Context) ruleResult {
	start := time.Now()
	result := ruleResult{ruleID: rule.ID}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.TimeoutPerRule)
	defer cancel()

	// Buffered so an abandoned detector can still finish and exit.
	done := make(chan detection, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- detection{err: fmt.Errorf("%w: %v", ErrDetectorPanic, r)}
			}
		}()
		vs, err := rule.Detector.Detect(rctx, prog, actx)
		done <- detection{violations: vs, err: err}
	}()

	var d detection
	select {
	case d = <-done:
	case <-rctx.Done():
		d.err = rctx.Err()
	}
	result.duration = time.Since(start)

	outcome := "success"
	switch {
	case d.err == nil:
		result.violations = make([]rules.Violation, 0, len(d.violations))
		for _, raw := range d.violations {
			result.violations = append(result.violations, rules.NewViolation(rule, raw))
		}
		violationsTotal.WithLabelValues(string(rule.Category)).Add(float64(len(d.violations)))

	case ctx.Err() == nil && errors.Is(d.err, context.DeadlineExceeded) && rctx.Err() != nil:
		outcome = "timeout"
		result.failure = &rules.RuleExecutionError{
			RuleID:  rule.ID,
			Message: fmt.Sprintf("timed out after %s", e.cfg.TimeoutPerRule),
			Timeout: true,
		}

	case ctx.Err() != nil:
		outcome = "cancelled"
		result.failure = &rules.RuleExecutionError{
			RuleID:  rule.ID,
			Message: fmt.Sprintf("cancelled: %v", ctx.Err()),
		}

	default:
		outcome = "error"
		if errors.Is(d.err, ErrDetectorPanic) {
			outcome = "panic"
		}
		result.failure = &rules.RuleExecutionError{RuleID: rule.ID, Message: d.err.Error()}
	}

	ruleDuration.WithLabelValues(outcome).Observe(result.duration.Seconds())
	if result.failure != nil {
		ruleFailures.WithLabelValues(rule.ID, outcome).Inc()
		e.logger.Warn("rule failed",
			slog.String("rule_id", rule.ID),
			slog.String("outcome", outcome),
			slog.String("error", result.failure.Message),
			slog.Duration("duration", result.duration))
	}
	return result
}

func appendIDs(dst []string, rs []rules.Rule) []string {
	for _, r := range rs {
		dst = append(dst, r.ID)
	}
	return dst
}
