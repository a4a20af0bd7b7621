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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codereview/services/review/rules"
)

func newRulesCmd(g *globalFlags) *cobra.Command {
	var (
		categories []string
		severities []string
		all        bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules that would run, highest priority first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := rules.FilterOptions{IncludeDisabled: all}
			for _, c := range categories {
				opts.Categories = append(opts.Categories, rules.Category(c))
			}
			for _, s := range severities {
				opts.Severities = append(opts.Severities, rules.Severity(s))
			}
			selected := rules.Select(a.orch.Registry().All(), opts)

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), selected)
			}
			return writeRuleTable(cmd.OutOrStdout(), selected)
		},
	}
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only list these categories")
	cmd.Flags().StringSliceVar(&severities, "severity", nil, "only list these severities")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled rules")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")

	cmd.AddCommand(newRulesStatsCmd(g), newRulesShowCmd(g))
	return cmd
}

func newRulesStatsCmd(g *globalFlags) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the rule distribution by category and severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			stats := a.orch.Statistics()
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, stats)
			}

			fmt.Fprintf(out, "Rules:           %d (%d enabled, %d disabled)\n",
				stats.TotalRules, stats.EnabledRules, stats.DisabledRules)
			fmt.Fprintf(out, "Domain-specific: %d\n", stats.DomainSpecificCount)
			fmt.Fprintf(out, "Catalogue:       %s\n\n", catalogueVersion())

			fmt.Fprintf(out, "%-14s  %s\n", "CATEGORY", "RULES")
			for _, c := range rules.Categories {
				fmt.Fprintf(out, "%-14s  %d\n", c, stats.ByCategory[c])
			}
			fmt.Fprintf(out, "\n%-14s  %s\n", "SEVERITY", "RULES")
			for _, s := range rules.Severities {
				fmt.Fprintf(out, "%-14s  %d\n", s, stats.BySeverity[s])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	return cmd
}

func newRulesShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Describe one rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			rule, ok := a.orch.Registry().ByID(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", rules.ErrNotFound, args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", rule.ID, rule.Name)
			fmt.Fprintf(out, "  category:        %s\n", rule.Category)
			fmt.Fprintf(out, "  severity:        %s\n", rule.Severity)
			fmt.Fprintf(out, "  priority:        %d\n", rule.Priority)
			fmt.Fprintf(out, "  base confidence: %.2f\n", rule.BaseConfidence)
			fmt.Fprintf(out, "  enabled:         %t\n", rule.Enabled)
			fmt.Fprintf(out, "  domain-specific: %t\n", rule.DomainSpecific)
			if rule.Description != "" {
				fmt.Fprintf(out, "\n%s\n", rule.Description)
			}
			return nil
		},
	}
}

func writeRuleTable(out io.Writer, list []rules.Rule) error {
	if _, err := fmt.Fprintf(out, "%-10s  %-8s  %-8s  %-12s  %-7s  %s\n",
		"ID", "PRIORITY", "SEVERITY", "CATEGORY", "ENABLED", "NAME"); err != nil {
		return err
	}
	for _, r := range list {
		if _, err := fmt.Fprintf(out, "%-10s  %-8d  %-8s  %-12s  %-7t  %s\n",
			r.ID, r.Priority, r.Severity, r.Category, r.Enabled, r.Name); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
