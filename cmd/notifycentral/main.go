/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/notification_central/internal/config"
	"github.com/friendsincode/notification_central/internal/logging"
	"github.com/friendsincode/notification_central/internal/telemetry"
	"github.com/friendsincode/notification_central/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "notifycentral",
	Short: "Notification Central - quarter-hour notification trigger",
	Long: `Notification Central reads notification definitions from Notion or a SQL
database, decides which are due in the current quarter-hour, and sets their
trigger flag so downstream automation can deliver them.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up logging (called by commands that need it).
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment, cfg.LogLevel)
	return nil
}

// initTracing installs the tracer provider; the returned func flushes it.
func initTracing(ctx context.Context) (func(), error) {
	shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:    cfg.TracingEnabled,
		Endpoint:   cfg.OTLPEndpoint,
		SampleRate: cfg.TracingSampleRate,
		Service:    "notifycentral",
		Version:    version.Version,
		InstanceID: cfg.InstanceID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}, nil
}
