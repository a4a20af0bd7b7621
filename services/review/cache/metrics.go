// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("codereview.cache")

var (
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	cachePuts       metric.Int64Counter
	cacheCleared    metric.Int64Counter
	cacheGetLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"review_cache_hits_total",
			metric.WithDescription("Total number of review cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"review_cache_misses_total",
			metric.WithDescription("Total number of review cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cachePuts, err = meter.Int64Counter(
			"review_cache_puts_total",
			metric.WithDescription("Total number of review cache writes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheCleared, err = meter.Int64Counter(
			"review_cache_cleared_entries_total",
			metric.WithDescription("Total number of entries removed by Clear"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheGetLatency, err = meter.Float64Histogram(
			"review_cache_get_duration_seconds",
			metric.WithDescription("Duration of review cache lookups"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordGet(ctx context.Context, backend string, duration time.Duration, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	if hit {
		cacheHits.Add(ctx, 1, attrs)
	} else {
		cacheMisses.Add(ctx, 1, attrs)
	}
	cacheGetLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("backend", backend), attribute.Bool("hit", hit)),
	)
}

func recordPut(ctx context.Context, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	cachePuts.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

func recordClear(ctx context.Context, backend string, entries int) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheCleared.Add(ctx, int64(entries), metric.WithAttributes(attribute.String("backend", backend)))
}
