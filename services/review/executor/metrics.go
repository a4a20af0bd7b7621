// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	ruleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "review_executor_rule_duration_seconds",
		Help:    "Wall-clock time of single rule executions by outcome",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"outcome"})

	ruleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_executor_rule_failures_total",
		Help: "Rule failures by rule and kind (error, panic, timeout, cancelled)",
	}, []string{"rule", "outcome"})

	violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_executor_raw_violations_total",
		Help: "Raw violations reported by detectors, before confidence filtering",
	}, []string{"category"})

	chunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "review_executor_chunks_total",
		Help: "Chunks executed in parallel mode",
	})

	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "review_executor_duration_seconds",
		Help:    "Duration of whole rule set executions by mode",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"mode"})
)
