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
	"fmt"

	"github.com/spf13/cobra"
)

// newCacheCmd manages the persistent result cache. With the memory
// backend every process starts empty, so these are mostly useful with
// cache.backend: badger.
func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}

	size := &cobra.Command{
		Use:   "size",
		Short: "Print the number of cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%d cached result(s) (%s backend)\n", a.orch.CacheSize(), a.cfg.Cache.Backend)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()
			n := a.orch.CacheSize()
			if err := a.orch.ClearCache(cmd.Context()); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached result(s)\n", n)
			return nil
		},
	}

	cmd.AddCommand(size, clearCmd)
	return cmd
}

// newConfigCmd prints the effective configuration after file and
// environment overrides.
func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
