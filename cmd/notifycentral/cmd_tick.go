/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var tickJSON bool

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one live evaluation pass",
	Long: `Fetch every notification definition, decide which are due in the current
quarter-hour, and set their trigger flag. Exits non-zero only when the
definitions cannot be fetched; individual write-back failures are reported
in the summary.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd, false)
	},
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Run one evaluation pass without writing anything",
	Long: `Same as tick, but due definitions are only logged. Nothing is written to
the store and no rate-limit tokens are spent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{tickCmd, dryRunCmd} {
		c.Flags().BoolVar(&tickJSON, "json", false, "Print the pass summary as JSON")
		rootCmd.AddCommand(c)
	}
}

func runTick(cmd *cobra.Command, dryRun bool) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx := context.Background()
	shutdownTracing, err := initTracing(ctx)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.service.Tick(ctx, dryRun)
	if err != nil {
		return err
	}

	if tickJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "coordinate %s: %d considered, %d triggered, %d failed\n",
		summary.Coordinate, summary.Considered, summary.Triggered, summary.Failed)
	return nil
}
