package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/friendsincode/notification_central/internal/logbuffer"
	"github.com/friendsincode/notification_central/internal/scheduler"
	"github.com/friendsincode/notification_central/internal/scheduler/state"
)

type fakeTicker struct {
	mu     sync.Mutex
	calls  []bool
	err    error
	result scheduler.Summary
}

func (f *fakeTicker) Tick(_ context.Context, dryRun bool) (scheduler.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dryRun)
	if f.err != nil {
		return scheduler.Summary{}, f.err
	}
	s := f.result
	s.DryRun = dryRun
	return s, nil
}

type staticLeader bool

func (l staticLeader) IsLeader() bool { return bool(l) }

func newTestServer(t *testing.T, ticker scheduler.Ticker, burst int) (*Server, *state.Store) {
	t.Helper()
	history := state.NewStore(8)
	srv := New(Options{
		Addr:      "127.0.0.1:0",
		Ticker:    ticker,
		History:   history,
		Leader:    staticLeader(true),
		TickRate:  rate.Every(24 * time.Hour),
		TickBurst: burst,
	}, zerolog.Nop())
	return srv, history
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzReportsLeaderAndLastTick(t *testing.T) {
	srv, history := newTestServer(t, &fakeTicker{}, 1)
	history.Add(state.RecentTick{RunID: "run-1", Triggered: 2})

	rr := do(t, srv.Handler(), http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Status   string           `json:"status"`
		Leader   bool             `json:"leader"`
		LastTick state.RecentTick `json:"last_tick"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || !body.Leader || body.LastTick.RunID != "run-1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRunTickReturnsSummary(t *testing.T) {
	ticker := &fakeTicker{result: scheduler.Summary{RunID: "abc", Considered: 3, Triggered: 1, Coordinate: "9.1"}}
	srv, _ := newTestServer(t, ticker, 2)

	rr := do(t, srv.Handler(), http.MethodPost, "/api/v1/ticks?dry_run=true")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var summary scheduler.Summary
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.RunID != "abc" || !summary.DryRun || summary.Triggered != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(ticker.calls) != 1 || !ticker.calls[0] {
		t.Fatalf("ticker calls = %v, want one dry run", ticker.calls)
	}
}

func TestRunTickIsRateLimited(t *testing.T) {
	ticker := &fakeTicker{}
	srv, _ := newTestServer(t, ticker, 1)

	if rr := do(t, srv.Handler(), http.MethodPost, "/api/v1/ticks"); rr.Code != http.StatusOK {
		t.Fatalf("first tick status = %d", rr.Code)
	}
	rr := do(t, srv.Handler(), http.MethodPost, "/api/v1/ticks")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second tick status = %d, want 429", rr.Code)
	}
	if len(ticker.calls) != 1 {
		t.Fatalf("ticker ran %d times, want 1", len(ticker.calls))
	}
}

func TestRunTickErrors(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTicker{err: errors.New("notion down")}, 5)

	if rr := do(t, srv.Handler(), http.MethodPost, "/api/v1/ticks?dry_run=maybe"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad dry_run status = %d, want 400", rr.Code)
	}
	rr := do(t, srv.Handler(), http.MethodPost, "/api/v1/ticks")
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), "tick_failed") {
		t.Fatalf("failed tick status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRecentTicks(t *testing.T) {
	srv, history := newTestServer(t, &fakeTicker{}, 1)
	history.Add(state.RecentTick{RunID: "one"})
	history.Add(state.RecentTick{RunID: "two"})

	rr := do(t, srv.Handler(), http.MethodGet, "/api/v1/ticks")
	var body struct {
		Ticks []state.RecentTick `json:"ticks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Ticks) != 2 || body.Ticks[1].RunID != "two" {
		t.Fatalf("ticks = %+v", body.Ticks)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTicker{}, 1)
	rr := do(t, srv.Handler(), http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	logs := logbuffer.New(10)
	logs.Add(logbuffer.LogEntry{Level: "info", Message: "notification tick start", RunID: "r1"})
	logs.Add(logbuffer.LogEntry{Level: "error", Message: "failed to set trigger", RunID: "r1"})
	logs.Add(logbuffer.LogEntry{Level: "info", Message: "notification tick start", RunID: "r2"})

	srv := New(Options{Ticker: &fakeTicker{}, Logs: logs}, zerolog.Nop())

	rr := do(t, srv.Handler(), http.MethodGet, "/api/v1/logs?run_id=r1")
	var body struct {
		Entries []logbuffer.LogEntry `json:"entries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Entries) != 2 || body.Entries[0].Message != "failed to set trigger" {
		t.Fatalf("entries = %+v, want newest first for r1", body.Entries)
	}

	if rr := do(t, srv.Handler(), http.MethodGet, "/api/v1/logs?limit=zero"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rr.Code)
	}

	bare := New(Options{}, zerolog.Nop())
	if rr := do(t, bare.Handler(), http.MethodGet, "/api/v1/logs"); rr.Code != http.StatusNotFound {
		t.Fatalf("logs without buffer status = %d, want 404", rr.Code)
	}
}

func TestRunTickRejectsOverlapAndFollowers(t *testing.T) {
	busy := &fakeTicker{err: scheduler.ErrTickInProgress}
	srv, _ := newTestServer(t, busy, 5)
	rr := do(t, srv.Handler(), http.MethodPost, "/api/v1/ticks")
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), "tick_in_progress") {
		t.Fatalf("overlapping tick status = %d body=%s", rr.Code, rr.Body.String())
	}

	ticker := &fakeTicker{}
	follower := New(Options{
		Ticker:    ticker,
		Leader:    staticLeader(false),
		TickRate:  rate.Every(24 * time.Hour),
		TickBurst: 5,
	}, zerolog.Nop())

	rr = do(t, follower.Handler(), http.MethodPost, "/api/v1/ticks")
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), "not_leader") {
		t.Fatalf("live tick on follower status = %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, follower.Handler(), http.MethodPost, "/api/v1/ticks?dry_run=true"); rr.Code != http.StatusOK {
		t.Fatalf("dry run on follower status = %d", rr.Code)
	}
	if len(ticker.calls) != 1 || !ticker.calls[0] {
		t.Fatalf("follower ticker calls = %v, want one dry run", ticker.calls)
	}
}
