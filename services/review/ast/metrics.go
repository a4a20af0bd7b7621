// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for program building.
var (
	tracer = otel.Tracer("codereview.ast")
	meter  = otel.Meter("codereview.ast")
)

var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	nodesBuilt   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"ast_build_duration_seconds",
			metric.WithDescription("Duration of program builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"ast_build_total",
			metric.WithDescription("Total number of program builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesBuilt, err = meter.Int64Histogram(
			"ast_build_nodes",
			metric.WithDescription("Number of syntax nodes per built program"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records one build outcome.
func recordBuildMetrics(ctx context.Context, dialect string, duration time.Duration, nodeCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", dialect),
		attribute.Bool("success", success),
	)

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	if success {
		nodesBuilt.Record(ctx, int64(nodeCount), metric.WithAttributes(attribute.String("language", dialect)))
	}
}

// startBuildSpan creates a span for a build. Caller must End it.
func startBuildSpan(ctx context.Context, filePath string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "CPPBuilder.Build",
		trace.WithAttributes(
			attribute.String("ast.file", filePath),
			attribute.Int("ast.content_size", contentSize),
		),
	)
}

func setBuildSpanResult(span trace.Span, meta Metadata, symbolCount int) {
	span.SetAttributes(
		attribute.Int("ast.node_count", meta.NodeCount),
		attribute.Int("ast.lines_of_code", meta.LinesOfCode),
		attribute.Int("ast.symbol_count", symbolCount),
	)
}
