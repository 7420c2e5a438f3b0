/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/friendsincode/notification_central/internal/leadership"
	"github.com/friendsincode/notification_central/internal/logbuffer"
	"github.com/friendsincode/notification_central/internal/logging"
	"github.com/friendsincode/notification_central/internal/scheduler"
	"github.com/friendsincode/notification_central/internal/scheduler/state"
	"github.com/friendsincode/notification_central/internal/server"
)

var (
	serveDryRun     bool
	serveNoHTTP     bool
	serveManualRate time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ticks on a schedule and serve the ops API",
	Long: `Run an evaluation pass on every quarter-hour (NC_TICK_CRON, evaluated in
NC_TIMEZONE) and serve /healthz, /metrics and /api/v1/ticks. With
NC_LEADER_ELECTION_ENABLED only the replica holding the Redis lease ticks.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "Scheduled ticks only log what they would trigger")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "Do not start the ops HTTP server")
	serveCmd.Flags().DurationVar(&serveManualRate, "manual-tick-interval", time.Minute, "Minimum spacing of manual ticks via the API")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logs := logbuffer.New(2000)
	logger = logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, logbuffer.NewWriter(logs, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	history := state.NewStore(64)
	a.service.SetStateStore(history)

	runner, err := scheduler.NewRunner(a.service, cfg.TickCron, cfg.Location(), serveDryRun, logger)
	if err != nil {
		return err
	}

	var (
		tickLoop scheduler.Runnable = runner
		leader   server.LeaderReporter
	)
	if cfg.LeaderElectionEnabled {
		election, err := leadership.NewElection(leadership.ElectionConfig{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			InstanceID:    cfg.InstanceID,
		}, logger)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		la := scheduler.NewLeaderAware(runner, election, logger)
		tickLoop = la
		leader = la
	}

	logger.Info().Str("cron", cfg.TickCron).Bool("dry_run", serveDryRun).Msg("Notification Central starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := tickLoop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if !serveNoHTTP {
		srv := server.New(server.Options{
			Addr:      cfg.HTTPAddr(),
			Ticker:    a.service,
			History:   history,
			Logs:      logs,
			Leader:    leader,
			TickRate:  rate.Every(serveManualRate),
			TickBurst: 1,
		}, logger)

		g.Go(srv.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info().Msg("Notification Central stopped")
	return err
}
