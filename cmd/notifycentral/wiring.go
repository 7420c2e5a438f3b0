/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/notification_central/internal/config"
	"github.com/friendsincode/notification_central/internal/db"
	"github.com/friendsincode/notification_central/internal/notifications"
	"github.com/friendsincode/notification_central/internal/notion"
	"github.com/friendsincode/notification_central/internal/ratelimit"
	"github.com/friendsincode/notification_central/internal/scheduler"
	"github.com/friendsincode/notification_central/internal/sqlstore"
	"github.com/friendsincode/notification_central/internal/telemetry"
)

// app is the wired tick pipeline shared by every command.
type app struct {
	service *scheduler.Service
	store   notifications.Store
	db      *gorm.DB
}

func (a *app) Close() {
	if a.db != nil {
		closeDatabase(a.db)
	}
}

func closeDatabase(database *gorm.DB) {
	if err := db.Close(database); err != nil {
		logger.Warn().Err(err).Msg("database close failed")
	}
}

// newBucket builds the process-wide admission bucket shared by reads and writes.
func newBucket() *ratelimit.TokenBucket {
	return ratelimit.NewTokenBucket(cfg.RateLimitBurst, cfg.RateLimitRPS,
		ratelimit.WithObserver(func(wait time.Duration) {
			telemetry.AdmissionWaitSeconds.Observe(wait.Seconds())
			logger.Debug().Dur("wait", wait).Msg("waiting for store admission")
		}),
	)
}

// openDatabase connects and migrates the SQL backend.
func openDatabase() (*gorm.DB, error) {
	if !cfg.StoreBackend.IsSQL() {
		return nil, fmt.Errorf("store backend %q is not a SQL backend", cfg.StoreBackend)
	}
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

func buildApp() (*app, error) {
	bucket := newBucket()
	a := &app{}

	switch {
	case cfg.StoreBackend == config.StoreNotion:
		client, err := notion.NewClient(notion.ClientConfig{
			APIKey:  cfg.NotionAPIKey,
			BaseURL: cfg.NotionBaseURL,
			Version: cfg.NotionVersion,
		}, bucket)
		if err != nil {
			return nil, err
		}
		a.store = notion.NewStore(client, cfg.NotionDatabaseID, notion.PropertyNames(cfg.Properties), cfg.TriggerKey, logger)
	case cfg.StoreBackend.IsSQL():
		database, err := openDatabase()
		if err != nil {
			return nil, err
		}
		a.db = database
		a.store = sqlstore.New(database, string(cfg.StoreBackend), cfg.TriggerKey, logger)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	decider := notifications.NewDecider(cfg.TriggerMode, cfg.ScheduleShape, logger)
	a.service = scheduler.New(a.store, decider, bucket, scheduler.Options{
		Location:         cfg.Location(),
		WriteConcurrency: cfg.WriteConcurrency,
	}, logger)

	logger.Info().
		Str("store", string(cfg.StoreBackend)).
		Str("timezone", cfg.Location().String()).
		Str("shape", string(cfg.ScheduleShape)).
		Str("mode", string(decider.Mode())).
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("tick pipeline ready")
	return a, nil
}
