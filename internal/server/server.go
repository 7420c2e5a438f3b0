/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/friendsincode/notification_central/internal/logbuffer"
	"github.com/friendsincode/notification_central/internal/scheduler"
	"github.com/friendsincode/notification_central/internal/scheduler/state"
	"github.com/friendsincode/notification_central/internal/telemetry"
)

// LeaderReporter exposes the leadership status shown on /healthz.
type LeaderReporter interface {
	IsLeader() bool
}

// Options wires the ops server.
type Options struct {
	Addr    string
	Ticker  scheduler.Ticker
	History *state.Store
	// Logs is optional; when set /api/v1/logs serves recent log lines.
	Logs *logbuffer.Buffer
	// Leader is optional; when set /healthz reports it and live manual ticks
	// are accepted only on the leader.
	Leader LeaderReporter
	// TickRate and TickBurst throttle manual ticks. Zero rate means one per minute.
	TickRate  rate.Limit
	TickBurst int
	// TickTimeout bounds a manual tick. Zero means two minutes.
	TickTimeout time.Duration
}

// Server is the operations HTTP surface: health, metrics and manual ticks.
type Server struct {
	logger      zerolog.Logger
	router      chi.Router
	httpServer  *http.Server
	ticker      scheduler.Ticker
	history     *state.Store
	logs        *logbuffer.Buffer
	leader      LeaderReporter
	limiter     *rate.Limiter
	tickTimeout time.Duration
}

// New constructs the server and its routes.
func New(opts Options, logger zerolog.Logger) *Server {
	if opts.TickRate == 0 {
		opts.TickRate = rate.Every(time.Minute)
	}
	if opts.TickBurst <= 0 {
		opts.TickBurst = 1
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = 2 * time.Minute
	}

	logger = logger.With().Str("component", "http").Logger()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(telemetry.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(otelhttp.NewMiddleware("notifycentral-ops"))
	router.Use(telemetry.MetricsMiddleware)

	s := &Server{
		logger:      logger,
		router:      router,
		ticker:      opts.Ticker,
		history:     opts.History,
		logs:        opts.Logs,
		leader:      opts.Leader,
		limiter:     rate.NewLimiter(opts.TickRate, opts.TickBurst),
		tickTimeout: opts.TickTimeout,
	}
	s.configureRoutes()

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      opts.TickTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("ops server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/ticks", s.handleRecentTicks)
		r.Post("/ticks", s.handleRunTick)
		r.Get("/logs", s.handleLogs)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.leader != nil {
		resp["leader"] = s.leader.IsLeader()
	}
	if s.history != nil {
		if last, ok := s.history.Last(); ok {
			resp["last_tick"] = last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecentTicks(w http.ResponseWriter, r *http.Request) {
	ticks := []state.RecentTick{}
	if s.history != nil {
		ticks = s.history.Recent()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticks": ticks})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusNotFound, "logs_disabled")
		return
	}
	q := r.URL.Query()
	limit := 200
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	entries := s.logs.Query(logbuffer.QueryParams{
		Level:  q.Get("level"),
		RunID:  q.Get("run_id"),
		Search: q.Get("q"),
		Limit:  limit,
		Newest: true,
	})
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleRunTick(w http.ResponseWriter, r *http.Request) {
	if s.ticker == nil {
		writeError(w, http.StatusServiceUnavailable, "tick_unavailable")
		return
	}

	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_dry_run")
			return
		}
		dryRun = v
	}

	if !dryRun && s.leader != nil && !s.leader.IsLeader() {
		writeError(w, http.StatusConflict, "not_leader")
		return
	}

	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "tick_rate_limited")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.tickTimeout)
	defer cancel()

	summary, err := s.ticker.Tick(ctx, dryRun)
	if errors.Is(err, scheduler.ErrTickInProgress) {
		writeError(w, http.StatusConflict, "tick_in_progress")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("manual tick failed")
		writeError(w, http.StatusBadGateway, "tick_failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
