// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/codereview/services/review/orchestrator"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// ANSI escape sequences.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
)

// renderer prints execution results as text or JSON.
type renderer struct {
	out   io.Writer
	json  bool
	color bool
}

// newRenderer colors text output only when out is a terminal and neither
// --no-color nor NO_COLOR is set.
func newRenderer(out io.Writer, jsonOut, noColor bool) *renderer {
	r := &renderer{out: out, json: jsonOut}
	if jsonOut || noColor || os.Getenv("NO_COLOR") != "" {
		return r
	}
	if f, ok := out.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return r
}

func (r *renderer) render(results []*orchestrator.ExecutionResult) error {
	if r.json {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		if results == nil {
			results = []*orchestrator.ExecutionResult{}
		}
		return enc.Encode(results)
	}
	for _, res := range results {
		r.text(res)
	}
	return nil
}

func (r *renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func severityColor(s rules.Severity) string {
	switch s {
	case rules.SeverityCritical:
		return ansiRed + ansiBold
	case rules.SeverityMajor:
		return ansiRed
	case rules.SeverityMinor:
		return ansiYellow
	default:
		return ansiBlue
	}
}

func (r *renderer) text(res *orchestrator.ExecutionResult) {
	fmt.Fprintln(r.out, r.paint(ansiBold, res.File))

	for _, v := range res.Violations {
		loc := fmt.Sprintf("%d:%d", v.Location.Line, v.Location.Column)
		fmt.Fprintf(r.out, "  %s %s %s %s %s\n",
			r.paint(ansiDim, loc),
			r.paint(severityColor(v.Metadata.Severity), fmt.Sprintf("%-8s", v.Metadata.Severity)),
			r.paint(ansiCyan, v.RuleID),
			v.Message,
			r.paint(ansiDim, fmt.Sprintf("(%.2f)", v.Confidence)))
		if v.Snippet != "" {
			fmt.Fprintf(r.out, "      %s\n", strings.TrimSpace(v.Snippet))
		}
		if v.Fix != nil && v.Fix.Description != "" {
			fmt.Fprintf(r.out, "      fix: %s\n", v.Fix.Description)
		}
	}

	for _, f := range res.Failures {
		kind := "failed"
		if f.Timeout {
			kind = "timed out"
		}
		fmt.Fprintf(r.out, "  %s %s: %s\n", r.paint(ansiYellow, "rule "+kind), f.RuleID, f.Message)
	}

	cache := "miss"
	if res.CacheHit {
		cache = "hit"
	}
	summary := fmt.Sprintf("  %d violation(s), %d rule(s) executed, %d skipped, %d failed, %s, cache %s",
		len(res.Violations), res.ExecutedRules, res.SkippedRules, len(res.Failures),
		res.TotalTime.Round(time.Microsecond), cache)
	if res.Partial {
		summary += ", partial"
	}
	fmt.Fprintln(r.out, r.paint(ansiDim, summary))
	if slow := res.Performance.Slowest; slow.RuleID != "" {
		fmt.Fprintln(r.out, r.paint(ansiDim, fmt.Sprintf("  slowest rule %s (%s)", slow.RuleID, slow.Duration)))
	}
}
