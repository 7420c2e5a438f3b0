/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Ticker runs one evaluation pass.
type Ticker interface {
	Tick(ctx context.Context, dryRun bool) (Summary, error)
}

// Runner fires a Ticker on a cron schedule evaluated in the tick timezone.
type Runner struct {
	ticker Ticker
	spec   string
	loc    *time.Location
	dryRun bool
	logger zerolog.Logger
}

// NewRunner validates the cron spec and builds a runner.
func NewRunner(ticker Ticker, spec string, loc *time.Location, dryRun bool, logger zerolog.Logger) (*Runner, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid tick schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		ticker: ticker,
		spec:   spec,
		loc:    loc,
		dryRun: dryRun,
		logger: logger.With().Str("component", "runner").Logger(),
	}, nil
}

// Run schedules ticks until the context is cancelled. A tick that overruns
// its slot causes the next fire to be skipped rather than overlapped.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.logger})),
	)
	if _, err := c.AddFunc(r.spec, func() { r.fire(ctx) }); err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	c.Start()

	next := time.Time{}
	if entries := c.Entries(); len(entries) > 0 {
		next = entries[0].Next
	}
	r.logger.Info().
		Str("schedule", r.spec).
		Str("timezone", r.loc.String()).
		Bool("dry_run", r.dryRun).
		Time("next", next).
		Msg("tick runner started")

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info().Msg("tick runner stopped")
	return ctx.Err()
}

func (r *Runner) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := r.ticker.Tick(ctx, r.dryRun)
	switch {
	case err == nil:
	case errors.Is(err, ErrTickInProgress):
		r.logger.Warn().Msg("scheduled tick skipped, a manual tick is running")
	default:
		r.logger.Error().Err(err).Msg("tick failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
