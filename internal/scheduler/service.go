/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/notification_central/internal/notifications"
	"github.com/friendsincode/notification_central/internal/ratelimit"
	"github.com/friendsincode/notification_central/internal/scheduler/state"
	"github.com/friendsincode/notification_central/internal/telemetry"
	"github.com/friendsincode/notification_central/internal/tempo"
)

// ErrTickInProgress is returned when a pass is requested while another one
// is still running on the same Service.
var ErrTickInProgress = errors.New("tick already in progress")

// Options tune a Service.
type Options struct {
	// Location is the civil timezone schedules are written in.
	Location *time.Location
	// WriteConcurrency bounds parallel write-backs. Values below 1 mean sequential.
	WriteConcurrency int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service runs evaluation passes over the notification definitions.
type Service struct {
	store       notifications.Store
	decider     *notifications.Decider
	bucket      ratelimit.Acquirer
	loc         *time.Location
	concurrency int
	now         func() time.Time
	history     *state.Store
	logger      zerolog.Logger

	// running serializes passes so two of them never read the same
	// snapshot and write back the same definition.
	running sync.Mutex
}

// New constructs the tick service.
func New(store notifications.Store, decider *notifications.Decider, bucket ratelimit.Acquirer, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WriteConcurrency < 1 {
		opts.WriteConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:       store,
		decider:     decider,
		bucket:      bucket,
		loc:         opts.Location,
		concurrency: opts.WriteConcurrency,
		now:         opts.Now,
		logger:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetStateStore enables recording of recent ticks for the ops API.
func (s *Service) SetStateStore(st *state.Store) {
	s.history = st
}

// Failure records one definition whose write-back was rejected.
type Failure struct {
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"`
	Error        string `json:"error"`
}

// Summary is the observability record of one pass.
type Summary struct {
	RunID      string        `json:"run_id"`
	DryRun     bool          `json:"dry_run"`
	Coordinate string        `json:"coordinate"`
	Considered int           `json:"considered"`
	Active     int           `json:"active"`
	Inactive   int           `json:"inactive"`
	Eligible   int           `json:"eligible"`
	Due        int           `json:"due"`
	Triggered  int           `json:"triggered"`
	Failed     int           `json:"failed"`
	Failures   []Failure     `json:"failures,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "live"
}

// Tick runs one pass: fetch every definition, judge all of them against a
// single coordinate, then write back the ones that are due. Only a fetch
// failure aborts the pass; write-back failures are counted per item.
// A call made while another pass is running returns ErrTickInProgress.
func (s *Service) Tick(ctx context.Context, dryRun bool) (Summary, error) {
	mode := modeLabel(dryRun)
	if !s.running.TryLock() {
		telemetry.TicksTotal.WithLabelValues(mode, "overlap").Inc()
		s.logger.Warn().Str("mode", mode).Msg("notification tick skipped, previous tick still running")
		return Summary{DryRun: dryRun}, ErrTickInProgress
	}
	defer s.running.Unlock()

	started := s.now()
	summary := Summary{RunID: uuid.NewString(), DryRun: dryRun}

	ctx, span := telemetry.StartSpan(ctx, "scheduler.Tick",
		attribute.String("run_id", summary.RunID),
		attribute.Bool("dry_run", dryRun),
	)
	defer span.End()

	logger := s.logger.With().Str("run_id", summary.RunID).Str("mode", mode).Logger()
	logger.Info().
		Time("started_at", started).
		Str("timezone", s.loc.String()).
		Msg("notification tick start")

	defs, err := s.store.FetchAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.TicksTotal.WithLabelValues(mode, "fetch_failed").Inc()
		logger.Error().Err(err).Msg("failed to fetch notification definitions")
		s.record(started, summary, err)
		return summary, fmt.Errorf("fetch definitions: %w", err)
	}

	coord := tempo.CurrentCoordinate(s.loc, started, s.decider.Shape())
	summary.Coordinate = coord.String()

	var due []notifications.Definition
	for _, def := range defs {
		summary.Considered++
		if def.Active {
			summary.Active++
			telemetry.DefinitionsConsidered.WithLabelValues("active").Inc()
		} else {
			summary.Inactive++
			telemetry.DefinitionsConsidered.WithLabelValues("inactive").Inc()
		}

		decision := s.decider.Decide(def, coord)
		if decision.Fire || decision.Reason == notifications.ReasonNotDue {
			summary.Eligible++
		}
		if !decision.Fire {
			telemetry.DefinitionsSkipped.WithLabelValues(string(decision.Reason)).Inc()
			continue
		}
		due = append(due, def)
	}
	summary.Due = len(due)

	if dryRun {
		for _, def := range due {
			logger.Info().
				Str("definition_id", def.ID).
				Str("definition", def.Label()).
				Msg("[DRY RUN] would set trigger")
		}
		summary.Triggered = len(due)
	} else {
		s.writeBack(ctx, logger, due, &summary)
	}

	summary.Duration = s.now().Sub(started)
	telemetry.TriggersTotal.WithLabelValues(mode).Add(float64(summary.Triggered))
	telemetry.TickDuration.WithLabelValues(mode).Observe(summary.Duration.Seconds())
	telemetry.TicksTotal.WithLabelValues(mode, "ok").Inc()
	span.SetAttributes(
		attribute.String("coordinate", summary.Coordinate),
		attribute.Int("considered", summary.Considered),
		attribute.Int("triggered", summary.Triggered),
		attribute.Int("failed", summary.Failed),
	)

	logger.Info().
		Str("coordinate", summary.Coordinate).
		Int("total", summary.Considered).
		Int("active", summary.Active).
		Int("inactive", summary.Inactive).
		Int("eligible", summary.Eligible).
		Int("due", summary.Due).
		Int("triggered", summary.Triggered).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("notification tick end")

	s.record(started, summary, nil)
	return summary, nil
}

func (s *Service) record(started time.Time, summary Summary, err error) {
	if s.history == nil {
		return
	}
	tick := state.RecentTick{
		RunID:      summary.RunID,
		StartedAt:  started,
		DryRun:     summary.DryRun,
		Coordinate: summary.Coordinate,
		Considered: summary.Considered,
		Triggered:  summary.Triggered,
		Failed:     summary.Failed,
	}
	if err != nil {
		tick.Error = err.Error()
	}
	s.history.Add(tick)
}

// writeBack admits and writes each due definition. The bucket serializes its
// own refill-and-deduct section, so workers only share the summary under mu.
func (s *Service) writeBack(ctx context.Context, logger zerolog.Logger, due []notifications.Definition, summary *Summary) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, def := range due {
		def := def
		g.Go(func() error {
			err := s.writeOne(ctx, def)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{
					DefinitionID: def.ID,
					Name:         def.Label(),
					Error:        err.Error(),
				})
				telemetry.WriteBackFailures.Inc()
				logger.Error().
					Err(err).
					Str("definition_id", def.ID).
					Str("definition", def.Label()).
					Msg("failed to set trigger")
				return nil
			}
			summary.Triggered++
			logger.Info().
				Str("definition_id", def.ID).
				Str("definition", def.Label()).
				Msg("trigger set")
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) writeOne(ctx context.Context, def notifications.Definition) error {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.WriteTrigger", attribute.String("definition_id", def.ID))
	defer span.End()

	if s.bucket != nil {
		s.bucket.Acquire()
	}
	if err := s.store.WriteTrigger(ctx, def.ID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}
