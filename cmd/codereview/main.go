// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codereview reviews C++ sources against the built-in rule catalogue.
//
// Usage:
//
//	codereview analyze src/server/game/Entities/Unit/Unit.cpp
//	codereview analyze --json --min-confidence 0.7 src/*.cpp
//	codereview analyze --watch src/server/game
//	codereview rules
//	codereview cache clear
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errViolationsFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "codereview",
		Short: "Rule-based C++ code review for TrinityCore-style projects",
		Long: `codereview parses C++ sources, runs the rule catalogue against them
under a concurrency and timeout budget, and reports violations with
confidence scores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("CODEREVIEW_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newAnalyzeCmd(g),
		newRulesCmd(g),
		newCacheCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and rule catalogue version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codereview %s (catalogue %s)\n", version, catalogueVersion())
		},
	}
}
