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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/cache"
	"github.com/AleutianAI/codereview/services/review/executor"
	"github.com/AleutianAI/codereview/services/review/rules"
	"github.com/AleutianAI/codereview/services/review/telemetry"
)

var (
	// ErrInvalidOptions is returned by Execute for options that fail Validate.
	ErrInvalidOptions = errors.New("invalid review options")

	// ErrNilProgram is returned by Execute when no program is given.
	ErrNilProgram = errors.New("program is nil")

	// ErrNilRegistry is returned by New without a registry.
	ErrNilRegistry = errors.New("registry is nil")
)

// State is a step of one Execute call.
type State string

const (
	StateIdle                State = "idle"
	StateFiltering           State = "filtering"
	StateCacheCheck          State = "cache_check"
	StateExecuting           State = "executing"
	StateConfidenceFiltering State = "confidence_filtering"
	StateCacheStore          State = "cache_store"
	StateDone                State = "done"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the result cache. The default is an in-process MemoryStore.
func WithStore(store cache.Store) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator decides which rules run for a program, runs them and
// composes the result.
//
// Thread Safety:
//
//	Safe for concurrent use. The registry is immutable and the store is
//	required to be concurrency safe; every Execute call owns its state.
type Orchestrator struct {
	registry *rules.Registry
	store    cache.Store
	logger   *slog.Logger
}

// New creates an orchestrator over registry.
func New(registry *rules.Registry, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	o := &Orchestrator{
		registry: registry,
		store:    cache.NewMemoryStore(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Execute reviews one program.
//
// Description:
//
//	Filters the registry, then checks the cache. A hit returns the stored
//	violations with zero executed rules. A miss runs the selected rules,
//	adjusts every violation's confidence, drops those under the floor and
//	stores the survivors. Rule errors, panics and timeouts are reported in
//	Failures; they never make Execute fail.
//
//	If ctx ends during the run, rules not yet started are skipped, the
//	result is marked Partial and nothing is stored.
//
// Inputs:
//
//	ctx - Cancellation and trace parent.
//	prog - The parsed program. Read only.
//	actx - The analysis context. Read only.
//	opts - Run options, usually derived from DefaultOptions.
//
// Outputs:
//
//	*ExecutionResult - The composed result.
//	error - ErrInvalidOptions or ErrNilProgram; nothing else.
func (o *Orchestrator) Execute(ctx context.Context, prog *ast.Program, actx ast.Context, opts Options) (*ExecutionResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, ErrNilProgram
	}

	start := time.Now()
	runID := uuid.NewString()
	total := o.registry.Len()
	floor := opts.minConfidence()

	ctx, span := startExecuteSpan(ctx, runID, actx.File, total)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, o.logger).With(slog.String("run_id", runID), slog.String("file", actx.File))
	result := &ExecutionResult{
		RunID:      runID,
		File:       actx.File,
		Violations: []rules.Violation{},
		Failures:   []rules.RuleExecutionError{},
		StartedAt:  start,
	}

	o.enter(ctx, logger, StateFiltering)
	selected := rules.Select(o.registry.All(), opts.filter())
	logger.Debug("rules selected", slog.Int("selected", len(selected)), slog.Int("registry", total))

	if opts.UseCache {
		o.enter(ctx, logger, StateCacheCheck)
		result.CacheKey = cache.ResolveKey(opts.CacheKey, prog, actx)
		if cached, ok := o.store.Get(ctx, result.CacheKey); ok {
			var dropped int
			result.Violations, dropped = aboveFloor(cached, floor)
			result.CacheHit = true
			result.SkippedRules = total
			o.finish(ctx, logger, span, result, start, dropped)
			return result, nil
		}
	}

	o.enter(ctx, logger, StateExecuting)
	exec, err := executor.New(opts.executorConfig(), executor.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	outcome := exec.Execute(ctx, selected, prog, actx)

	result.ExecutedRules = len(outcome.Executed)
	result.SkippedRules = total - result.ExecutedRules
	result.Failures = outcome.Failures
	result.Performance = Summarize(outcome.Timings)
	result.Partial = len(outcome.NotRun) > 0 || ctx.Err() != nil

	o.enter(ctx, logger, StateConfidenceFiltering)
	byID := make(map[string]rules.Rule, len(selected))
	for _, r := range selected {
		byID[r.ID] = r
	}
	adjusted := make([]rules.Violation, 0, len(outcome.Violations))
	for _, v := range outcome.Violations {
		v.Confidence = AdjustConfidence(v.RawViolation, byID[v.RuleID], actx)
		adjusted = append(adjusted, v)
	}
	var dropped int
	result.Violations, dropped = aboveFloor(adjusted, floor)

	if opts.UseCache && !result.Partial {
		o.enter(ctx, logger, StateCacheStore)
		if err := o.store.Put(ctx, result.CacheKey, result.Violations); err != nil {
			logger.Warn("failed to store review result",
				slog.String("cache_key", result.CacheKey),
				slog.String("error", err.Error()))
		}
	}

	o.finish(ctx, logger, span, result, start, dropped)
	return result, nil
}

// ClearCache removes every cached result.
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	if err := o.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing review cache: %w", err)
	}
	return nil
}

// CacheSize returns the number of cached results.
func (o *Orchestrator) CacheSize() int {
	return o.store.Size()
}

// Statistics describes the loaded registry.
func (o *Orchestrator) Statistics() rules.Statistics {
	return o.registry.Statistics()
}

// Registry returns the registry the orchestrator runs.
func (o *Orchestrator) Registry() *rules.Registry {
	return o.registry
}

func (o *Orchestrator) enter(ctx context.Context, logger *slog.Logger, s State) {
	trace.SpanFromContext(ctx).AddEvent(string(s))
	logger.Debug("review state", slog.String("state", string(s)))
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, span trace.Span, result *ExecutionResult, start time.Time, dropped int) {
	result.TotalTime = time.Since(start)
	o.enter(ctx, logger, StateDone)

	setExecuteSpanResult(span, result)
	recordRunMetrics(ctx, result, dropped)

	logger.Info("review complete",
		slog.Int("executed", result.ExecutedRules),
		slog.Int("skipped", result.SkippedRules),
		slog.Int("violations", len(result.Violations)),
		slog.Int("below_floor", dropped),
		slog.Int("failures", len(result.Failures)),
		slog.Bool("cache_hit", result.CacheHit),
		slog.Bool("partial", result.Partial),
		slog.Duration("total_time", result.TotalTime))
}

// aboveFloor keeps violations with confidence >= floor, in order.
func aboveFloor(vs []rules.Violation, floor float64) ([]rules.Violation, int) {
	kept := make([]rules.Violation, 0, len(vs))
	for _, v := range vs {
		if v.Confidence >= floor {
			kept = append(kept, v)
		}
	}
	return kept, len(vs) - len(kept)
}
