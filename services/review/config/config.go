// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the codereview configuration.
//
// Priority: CODEREVIEW_* environment variables > user file > embedded
// default.yaml. The merged result is validated before it is returned.
//
// Thread Safety:
//
//	A loaded Config is a plain value; share it read-only.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/codereview/pkg/logging"
	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/orchestrator"
	"github.com/AleutianAI/codereview/services/review/rules"
	"github.com/AleutianAI/codereview/services/review/telemetry"
)

// MaxConfigFileSize bounds a user config file (1MB).
const MaxConfigFileSize = 1024 * 1024

//go:embed default.yaml
var defaultYAML []byte

var (
	// ErrInvalidConfig wraps parse and validation failures.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrConfigTooLarge is returned for files over MaxConfigFileSize.
	ErrConfigTooLarge = errors.New("config file too large")
)

var configValidate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the full configuration.
type Config struct {
	Execution ExecutionConfig  `yaml:"execution"`
	Project   ProjectConfig    `yaml:"project"`
	Cache     CacheConfig      `yaml:"cache"`
	Rules     rules.Overrides  `yaml:"rules"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Watch     WatchConfig      `yaml:"watch"`
}

// ExecutionConfig holds the defaults for orchestrator.Options.
type ExecutionConfig struct {
	MaxConcurrency     int              `yaml:"max_concurrency" validate:"gte=0"`
	TimeoutPerRule     time.Duration    `yaml:"timeout_per_rule" validate:"gt=0"`
	MinConfidence      float64          `yaml:"min_confidence" validate:"gte=0,lte=1"`
	UseCache           bool             `yaml:"use_cache"`
	IncludeDisabled    bool             `yaml:"include_disabled"`
	DomainSpecificOnly bool             `yaml:"domain_specific_only"`
	Categories         []rules.Category `yaml:"categories" validate:"dive,oneof=null_safety memory concurrency convention security performance architecture"`
	Severities         []rules.Severity `yaml:"severities" validate:"dive,oneof=critical major minor info"`
}

// ProjectConfig describes the analyzed project.
type ProjectConfig struct {
	Domain  bool   `yaml:"domain"`
	Dialect string `yaml:"dialect"`
}

// CacheConfig selects the result store.
type CacheConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=memory badger"`
	Path       string        `yaml:"path" validate:"required_if=Backend badger"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce   time.Duration `yaml:"debounce" validate:"gt=0"`
	Extensions []string      `yaml:"extensions" validate:"dive,startswith=."`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("%w: embedded default: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays the YAML file at path when
//	path is non-empty, applies CODEREVIEW_* environment variables and
//	validates the result. Keys missing from the file keep their defaults.
//
// Inputs:
//
//	path - User config file. Empty skips the file.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - File read errors, ErrConfigTooLarge, or ErrInvalidConfig (wrapped).
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	path = ExpandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrConfigTooLarge, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return data, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// =============================================================================
// Conversions
// =============================================================================

// Options returns the orchestrator options for one run.
func (c *Config) Options() orchestrator.Options {
	e := c.Execution
	return orchestrator.Options{
		Categories:         append([]rules.Category(nil), e.Categories...),
		Severities:         append([]rules.Severity(nil), e.Severities...),
		DomainSpecificOnly: e.DomainSpecificOnly,
		IncludeDisabled:    e.IncludeDisabled,
		MaxConcurrency:     e.MaxConcurrency,
		TimeoutPerRule:     e.TimeoutPerRule,
		MinConfidence:      orchestrator.Float(e.MinConfidence),
		UseCache:           e.UseCache,
	}
}

// AnalysisContext describes file as part of the configured project.
func (c *Config) AnalysisContext(file, projectRoot string) ast.Context {
	return ast.Context{
		File:        file,
		ProjectRoot: projectRoot,
		Domain:      c.Project.Domain,
		Dialect:     c.Project.Dialect,
	}
}

// LoggingConfig returns the logger configuration for service.
func (c *Config) LoggingConfig(service string) logging.Config {
	return logging.Config{
		Level:   logging.ParseLevel(c.Logging.Level),
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}

// CachePath returns the badger directory with ~ expanded.
func (c *Config) CachePath() string {
	return ExpandHome(c.Cache.Path)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
