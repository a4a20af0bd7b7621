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
	"path/filepath"

	"github.com/AleutianAI/codereview/pkg/logging"
	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/cache"
	"github.com/AleutianAI/codereview/services/review/config"
	"github.com/AleutianAI/codereview/services/review/detectors"
	"github.com/AleutianAI/codereview/services/review/orchestrator"
	"github.com/AleutianAI/codereview/services/review/rules"
	storage "github.com/AleutianAI/codereview/services/review/storage/badger"
	"github.com/AleutianAI/codereview/services/review/telemetry"
)

const serviceName = "codereview"

// app holds everything a subcommand needs. Close releases it.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	logger  *slog.Logger
	orch    *orchestrator.Orchestrator
	builder *ast.CPPBuilder
	closers []func() error
}

// newApp loads configuration and wires logging, telemetry, the cache
// store and the orchestrator.
func newApp(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}

	a := &app{cfg: cfg}
	a.log = logging.New(cfg.LoggingConfig(serviceName))
	a.logger = a.log.Slog()
	a.builder = ast.NewCPPBuilder(ast.WithLogger(a.logger))
	a.closers = append(a.closers, a.log.Close)

	tcfg := cfg.Telemetry
	tcfg.ServiceVersion = version
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })
	if err := telemetry.Serve(ctx, tcfg.MetricsAddr, a.logger); err != nil {
		_ = a.Close()
		return nil, err
	}

	store, err := a.openStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	registry, err := buildRegistry(cfg.Rules, a.logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.orch, err = orchestrator.New(registry,
		orchestrator.WithStore(store),
		orchestrator.WithLogger(a.logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore() (cache.Store, error) {
	if a.cfg.Cache.Backend != "badger" {
		return cache.NewMemoryStore(), nil
	}

	path := a.cfg.CachePath()
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	dbCfg := storage.DefaultConfig(path)
	dbCfg.Logger = a.logger
	dbCfg.GCInterval = a.cfg.Cache.GCInterval

	db, err := storage.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	return cache.NewBadgerStore(db, cache.WithLogger(a.logger))
}

// Close runs the closers in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildRegistry applies configured overrides to the built-in catalogue.
func buildRegistry(o rules.Overrides, logger *slog.Logger) (*rules.Registry, error) {
	defs, unknown := rules.ApplyOverrides(detectors.Builtin(), o)
	for _, id := range unknown {
		logger.Warn("rule override names an unknown rule", slog.String("rule_id", id))
	}
	registry, err := rules.NewRegistry(defs...)
	if err != nil {
		return nil, fmt.Errorf("building rule registry: %w", err)
	}
	return registry, nil
}

// analyzeFile parses path and reviews it.
func (a *app) analyzeFile(ctx context.Context, path, projectRoot string, opts orchestrator.Options) (*orchestrator.ExecutionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	prog, err := a.builder.Build(ctx, content, filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return a.orch.Execute(ctx, prog, a.cfg.AnalysisContext(filepath.ToSlash(path), projectRoot), opts)
}

func catalogueVersion() string {
	return detectors.CatalogueVersion
}
