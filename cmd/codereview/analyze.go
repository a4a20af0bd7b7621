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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codereview/services/review/orchestrator"
	"github.com/AleutianAI/codereview/services/review/rules"
	"github.com/AleutianAI/codereview/services/review/watch"
)

// errViolationsFound is returned when --fail-on matched a violation.
var errViolationsFound = errors.New("violations at or above the fail-on severity")

type analyzeFlags struct {
	categories      []string
	severities      []string
	domainOnly      bool
	includeDisabled bool
	concurrency     int
	timeout         time.Duration
	minConfidence   float64
	noCache         bool
	cacheKey        string
	domain          bool
	projectRoot     string
	jsonOut         bool
	noColor         bool
	watch           bool
	failOn          string
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Review C++ files against the rule catalogue",
		Long: `Parses each file, runs the selected rules and prints the violations.

Flags override the matching keys of the config file for this run only.
With --watch the files (or directories) are re-reviewed whenever they change.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&f.categories, "category", nil, "only run rules in these categories")
	flags.StringSliceVar(&f.severities, "severity", nil, "only run rules with these severities")
	flags.BoolVar(&f.domainOnly, "domain-only", false, "only run domain-specific rules")
	flags.BoolVar(&f.includeDisabled, "include-disabled", false, "also run disabled rules")
	flags.IntVarP(&f.concurrency, "concurrency", "j", 0, "rules run at once (0 = number of CPUs)")
	flags.DurationVar(&f.timeout, "timeout", 0, "time budget per rule")
	flags.Float64Var(&f.minConfidence, "min-confidence", 0, "drop violations below this confidence")
	flags.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")
	flags.StringVar(&f.cacheKey, "cache-key", "", "explicit cache key instead of the content fingerprint")
	flags.BoolVar(&f.domain, "domain", true, "treat the project as TrinityCore-style")
	flags.StringVar(&f.projectRoot, "project-root", "", "project root recorded in the analysis context")
	flags.BoolVar(&f.jsonOut, "json", false, "print results as JSON")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&f.watch, "watch", "w", false, "re-run when the files change")
	flags.StringVar(&f.failOn, "fail-on", "", "exit with status 2 if a violation has this severity or worse")
	return cmd
}

// options merges the changed flags over the configured defaults.
func (f *analyzeFlags) options(cmd *cobra.Command, base orchestrator.Options) orchestrator.Options {
	flags := cmd.Flags()
	if flags.Changed("category") {
		base.Categories = make([]rules.Category, 0, len(f.categories))
		for _, c := range f.categories {
			base.Categories = append(base.Categories, rules.Category(c))
		}
	}
	if flags.Changed("severity") {
		base.Severities = make([]rules.Severity, 0, len(f.severities))
		for _, s := range f.severities {
			base.Severities = append(base.Severities, rules.Severity(s))
		}
	}
	if flags.Changed("domain-only") {
		base.DomainSpecificOnly = f.domainOnly
	}
	if flags.Changed("include-disabled") {
		base.IncludeDisabled = f.includeDisabled
	}
	if flags.Changed("concurrency") {
		base.MaxConcurrency = f.concurrency
	}
	if flags.Changed("timeout") {
		base.TimeoutPerRule = f.timeout
	}
	if flags.Changed("min-confidence") {
		base.MinConfidence = orchestrator.Float(f.minConfidence)
	}
	if flags.Changed("no-cache") {
		base.UseCache = !f.noCache
	}
	if flags.Changed("cache-key") {
		base.CacheKey = f.cacheKey
	}
	return base
}

func runAnalyze(cmd *cobra.Command, g *globalFlags, f *analyzeFlags, paths []string) error {
	ctx := cmd.Context()

	var failOn rules.Severity
	if f.failOn != "" {
		failOn = rules.Severity(f.failOn)
		if !failOn.Valid() {
			return fmt.Errorf("--fail-on: unknown severity %q", f.failOn)
		}
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("domain") {
		a.cfg.Project.Domain = f.domain
	}
	opts := f.options(cmd, a.cfg.Options())
	if err := opts.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := newRenderer(out, f.jsonOut, f.noColor)

	if f.watch {
		return watchAndAnalyze(ctx, a, f, opts, r, paths)
	}

	var results []*orchestrator.ExecutionResult
	var errs []error
	for _, path := range paths {
		res, err := a.analyzeFile(ctx, path, f.projectRoot, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	if err := r.render(results); err != nil {
		return err
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if failOn != "" && exceeds(results, failOn) {
		return errViolationsFound
	}
	return nil
}

// watchAndAnalyze reviews paths once and then again on every change until
// ctx is cancelled. Directory arguments are only reviewed on change.
func watchAndAnalyze(ctx context.Context, a *app, f *analyzeFlags, opts orchestrator.Options, r *renderer, paths []string) error {
	review := func(ctx context.Context, path string) {
		res, err := a.analyzeFile(ctx, path, f.projectRoot, opts)
		if err != nil {
			a.logger.Warn("review failed", slog.String("file", path), slog.String("error", err.Error()))
			return
		}
		if err := r.render([]*orchestrator.ExecutionResult{res}); err != nil {
			a.logger.Warn("rendering failed", slog.String("error", err.Error()))
		}
	}

	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			review(ctx, path)
		}
	}

	wopts := watch.DefaultOptions()
	wopts.Debounce = a.cfg.Watch.Debounce
	wopts.Extensions = a.cfg.Watch.Extensions
	wopts.Logger = a.logger

	w, err := watch.New(paths, func(ctx context.Context, changes []watch.Change) {
		for _, c := range changes {
			if c.Op == watch.OpRemove || c.Op == watch.OpRename {
				continue
			}
			review(ctx, c.Path)
		}
	}, wopts)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	a.logger.Info("watching for changes", slog.Int("paths", len(paths)))
	<-ctx.Done()
	return nil
}

// exceeds reports whether any violation is at least as severe as floor.
func exceeds(results []*orchestrator.ExecutionResult, floor rules.Severity) bool {
	limit := severityRank(floor)
	for _, res := range results {
		for _, v := range res.Violations {
			if severityRank(v.Metadata.Severity) <= limit {
				return true
			}
		}
	}
	return false
}

// severityRank is 0 for critical and grows toward info.
func severityRank(s rules.Severity) int {
	for i, known := range rules.Severities {
		if s == known {
			return i
		}
	}
	return len(rules.Severities)
}
