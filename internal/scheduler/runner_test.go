package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	if _, err := NewRunner(nil, "every quarter", time.UTC, false, zerolog.Nop()); err == nil {
		t.Fatal("expected invalid cron spec to be rejected")
	}
	r, err := NewRunner(nil, "0,15,30,45 * * * *", nil, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if r.loc != time.UTC || !r.dryRun {
		t.Fatalf("unexpected runner: loc=%v dryRun=%v", r.loc, r.dryRun)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r, err := NewRunner(nil, "@every 1h", time.UTC, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

type fakeElection struct {
	leader atomic.Bool
	ch     chan bool
	stops  atomic.Int32
}

func newFakeElection() *fakeElection {
	return &fakeElection{ch: make(chan bool, 1)}
}

func (f *fakeElection) Start(context.Context) error { return nil }
func (f *fakeElection) Stop() error                 { f.stops.Add(1); return nil }
func (f *fakeElection) IsLeader() bool              { return f.leader.Load() }
func (f *fakeElection) LeaderCh() <-chan bool       { return f.ch }

func (f *fakeElection) set(v bool) {
	f.leader.Store(v)
	f.ch <- v
}

type blockingRunner struct {
	running atomic.Int32
}

func (b *blockingRunner) Run(ctx context.Context) error {
	b.running.Add(1)
	defer b.running.Add(-1)
	<-ctx.Done()
	return ctx.Err()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestLeaderAwareFollowsLeadership(t *testing.T) {
	election := newFakeElection()
	runner := &blockingRunner{}
	la := NewLeaderAware(runner, election, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- la.Run(ctx) }()

	election.set(true)
	waitFor(t, func() bool { return runner.running.Load() == 1 && la.Running() })

	election.set(false)
	waitFor(t, func() bool { return runner.running.Load() == 0 && !la.Running() })

	election.set(true)
	waitFor(t, func() bool { return runner.running.Load() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("leader-aware runner did not stop")
	}
	if runner.running.Load() != 0 {
		t.Fatal("runner still running after shutdown")
	}
	if election.stops.Load() != 1 {
		t.Fatalf("election stopped %d times, want 1", election.stops.Load())
	}
}
