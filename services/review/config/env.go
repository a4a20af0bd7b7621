// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CODEREVIEW_"

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overlays CODEREVIEW_* variables onto cfg.
//
// Recognized variables:
//
//	CODEREVIEW_MAX_CONCURRENCY     int
//	CODEREVIEW_TIMEOUT_PER_RULE    duration, e.g. 2s
//	CODEREVIEW_MIN_CONFIDENCE      float
//	CODEREVIEW_USE_CACHE           bool
//	CODEREVIEW_DOMAIN              bool
//	CODEREVIEW_CACHE_BACKEND       memory|badger
//	CODEREVIEW_CACHE_PATH          path
//	CODEREVIEW_DISABLED_RULES      comma separated rule IDs, appended
//	CODEREVIEW_LOG_LEVEL           debug|info|warn|error
//	CODEREVIEW_LOG_JSON            bool
//	CODEREVIEW_LOG_DIR             path
//	CODEREVIEW_TRACE_EXPORTER      otlp|stdout|none
//	CODEREVIEW_METRIC_EXPORTER     prometheus|stdout|none
//	CODEREVIEW_OTLP_ENDPOINT       host:port
//	CODEREVIEW_METRICS_ADDR        listen address
//	CODEREVIEW_WATCH_DEBOUNCE      duration
//
// A value that does not parse is an error rather than silently ignored.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []string
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	fail := func(name, v string, err error) {
		errs = append(errs, fmt.Sprintf("%s%s=%q: %v", EnvPrefix, name, v, err))
	}

	intVar := func(name string, dst *int) {
		if v, ok := get(name); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = i
		}
	}
	floatVar := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = f
		}
	}
	boolVar := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = b
		}
	}
	durationVar := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = d
		}
	}
	stringVar := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	// Execution
	intVar("MAX_CONCURRENCY", &cfg.Execution.MaxConcurrency)
	durationVar("TIMEOUT_PER_RULE", &cfg.Execution.TimeoutPerRule)
	floatVar("MIN_CONFIDENCE", &cfg.Execution.MinConfidence)
	boolVar("USE_CACHE", &cfg.Execution.UseCache)
	boolVar("DOMAIN", &cfg.Project.Domain)

	// Cache
	stringVar("CACHE_BACKEND", &cfg.Cache.Backend)
	stringVar("CACHE_PATH", &cfg.Cache.Path)

	// Rules
	if v, ok := get("DISABLED_RULES"); ok {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Rules.Disabled = append(cfg.Rules.Disabled, id)
			}
		}
	}

	// Logging
	stringVar("LOG_LEVEL", &cfg.Logging.Level)
	boolVar("LOG_JSON", &cfg.Logging.JSON)
	stringVar("LOG_DIR", &cfg.Logging.Dir)

	// Telemetry
	stringVar("TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)
	stringVar("METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)
	stringVar("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	stringVar("METRICS_ADDR", &cfg.Telemetry.MetricsAddr)

	// Watch
	durationVar("WATCH_DEBOUNCE", &cfg.Watch.Debounce)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
