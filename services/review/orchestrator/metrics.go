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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for review runs.
var (
	tracer = otel.Tracer("codereview.orchestrator")
	meter  = otel.Meter("codereview.orchestrator")
)

var (
	runLatency      metric.Float64Histogram
	runTotal        metric.Int64Counter
	violationsFound metric.Int64Histogram
	ruleFailures    metric.Int64Counter
	droppedByFloor  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"review_run_duration_seconds",
			metric.WithDescription("Duration of review runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"review_runs_total",
			metric.WithDescription("Total number of review runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		violationsFound, err = meter.Int64Histogram(
			"review_violations_reported",
			metric.WithDescription("Violations reported per review run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ruleFailures, err = meter.Int64Counter(
			"review_rule_failures_total",
			metric.WithDescription("Total number of rule failures across runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		droppedByFloor, err = meter.Int64Counter(
			"review_violations_below_floor_total",
			metric.WithDescription("Violations dropped by the confidence floor"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startExecuteSpan creates a span for a review run.
func startExecuteSpan(ctx context.Context, runID, file string, registrySize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.Execute",
		trace.WithAttributes(
			attribute.String("review.run_id", runID),
			attribute.String("review.file", file),
			attribute.Int("review.registry_size", registrySize),
		),
	)
}

// setExecuteSpanResult sets the result attributes on a run span.
func setExecuteSpanResult(span trace.Span, r *ExecutionResult) {
	span.SetAttributes(
		attribute.Int("review.executed_rules", r.ExecutedRules),
		attribute.Int("review.skipped_rules", r.SkippedRules),
		attribute.Int("review.violations", len(r.Violations)),
		attribute.Int("review.failures", len(r.Failures)),
		attribute.Bool("review.cache_hit", r.CacheHit),
		attribute.Bool("review.partial", r.Partial),
	)
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, r *ExecutionResult, dropped int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("cache_hit", r.CacheHit))
	runLatency.Record(ctx, r.TotalTime.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	violationsFound.Record(ctx, int64(len(r.Violations)), attrs)

	for _, f := range r.Failures {
		ruleFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("rule_id", f.RuleID),
			attribute.Bool("timeout", f.Timeout),
		))
	}
	if dropped > 0 {
		droppedByFloor.Add(ctx, int64(dropped))
	}
}
