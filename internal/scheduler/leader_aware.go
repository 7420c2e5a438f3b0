/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Leadership is the view of a leader election the wrapper needs.
type Leadership interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// Runnable is anything that runs until its context is cancelled.
type Runnable interface {
	Run(ctx context.Context) error
}

// LeaderAware runs the tick runner only while this replica holds leadership.
type LeaderAware struct {
	runner   Runnable
	election Leadership
	logger   zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewLeaderAware wraps runner with election.
func NewLeaderAware(runner Runnable, election Leadership, logger zerolog.Logger) *LeaderAware {
	return &LeaderAware{
		runner:   runner,
		election: election,
		logger:   logger.With().Str("component", "leader_aware_runner").Logger(),
	}
}

// Run campaigns for leadership and starts or stops the runner on each
// transition. It blocks until ctx is cancelled.
func (la *LeaderAware) Run(ctx context.Context) error {
	la.mu.Lock()
	la.ctx = ctx
	la.mu.Unlock()

	la.logger.Info().Msg("starting leader-aware runner")
	if err := la.election.Start(ctx); err != nil {
		return err
	}

	if la.election.IsLeader() {
		la.startRunner()
	}

	leaderCh := la.election.LeaderCh()
	for {
		select {
		case <-ctx.Done():
			la.stopRunner()
			if err := la.election.Stop(); err != nil {
				la.logger.Warn().Err(err).Msg("election stop failed")
			}
			return ctx.Err()
		case isLeader := <-leaderCh:
			if isLeader {
				la.logger.Info().Msg("became leader, starting runner")
				la.startRunner()
			} else {
				la.logger.Warn().Msg("lost leadership, stopping runner")
				la.stopRunner()
			}
		}
	}
}

// IsLeader returns whether this instance is the leader.
func (la *LeaderAware) IsLeader() bool {
	return la.election.IsLeader()
}

// Running reports whether the wrapped runner is active.
func (la *LeaderAware) Running() bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.cancel != nil
}

func (la *LeaderAware) startRunner() {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.cancel != nil {
		la.logger.Debug().Msg("runner already running")
		return
	}

	ctx, cancel := context.WithCancel(la.ctx)
	done := make(chan struct{})
	la.cancel = cancel
	la.stopped = done

	go func() {
		defer close(done)
		if err := la.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			la.logger.Error().Err(err).Msg("runner error")
		}
	}()
}

func (la *LeaderAware) stopRunner() {
	la.mu.Lock()
	cancel, done := la.cancel, la.stopped
	la.cancel, la.stopped = nil, nil
	la.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
