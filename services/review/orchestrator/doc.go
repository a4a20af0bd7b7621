// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator is the entry point of a review run.
//
// One Execute call moves through these states:
//
//	Idle -> Filtering -> CacheCheck -> Done                    (cache hit)
//	                                -> Executing
//	                                   -> ConfidenceFiltering
//	                                   -> CacheStore -> Done   (cache miss)
//
// CacheCheck and CacheStore are passed over when caching is off. Every
// call ends in Done; rule failures are data in the result.
//
// Counting: ExecutedRules + SkippedRules equals the registry size. A cache
// hit executes nothing, so every registry rule counts as skipped.
//
// Confidence: AdjustConfidence multiplies the detector seed by 1.1 for a
// domain-specific rule on a domain project and by 0.9 for a rule with
// priority under 50, then clamps to [0,1]. Violations under
// Options.MinConfidence are dropped before the result is cached.
package orchestrator
