/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sqlstore serves notification definitions from a relational
// database through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/notification_central/internal/models"
	"github.com/friendsincode/notification_central/internal/notifications"
	"github.com/friendsincode/notification_central/internal/telemetry"
)

// ErrNotFound is returned when no definition has the given id.
var ErrNotFound = errors.New("notification definition not found")

// Store implements notifications.Store over gorm.
type Store struct {
	db         *gorm.DB
	backend    string
	triggerKey string
	now        func() time.Time
	logger     zerolog.Logger
}

// New builds a store. backend labels metrics ("postgres", "mysql", "sqlite").
func New(db *gorm.DB, backend, triggerKey string, logger zerolog.Logger) *Store {
	return &Store{
		db:         db,
		backend:    backend,
		triggerKey: triggerKey,
		now:        time.Now,
		logger:     logger.With().Str("component", "sql_store").Logger(),
	}
}

// FetchAll returns every definition ordered by name.
func (s *Store) FetchAll(ctx context.Context) ([]notifications.Definition, error) {
	var rows []models.NotificationDefinition
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		s.count("query", err)
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	s.count("query", nil)

	defs := make([]notifications.Definition, 0, len(rows))
	for _, row := range rows {
		defs = append(defs, row.Definition())
	}
	s.logger.Info().Int("definitions", len(defs)).Msg("fetched notification definitions")
	return defs, nil
}

// WriteTrigger sets the trigger flag, the trigger key and the trigger time.
func (s *Store) WriteTrigger(ctx context.Context, id string) error {
	now := s.now().UTC()
	err := s.update(ctx, id, map[string]any{
		"trigger_toggle": true,
		"trigger_key":    s.triggerKey,
		"triggered_at":   now,
	})
	s.count("update", err)
	return err
}

// Reset clears the trigger flag so the definition can fire again. It plays
// the part of the external automation that re-arms definitions.
func (s *Store) Reset(ctx context.Context, id string) error {
	err := s.update(ctx, id, map[string]any{
		"trigger_toggle": false,
		"triggered_at":   nil,
	})
	s.count("reset", err)
	return err
}

// Get returns one definition row.
func (s *Store) Get(ctx context.Context, id string) (models.NotificationDefinition, error) {
	var row models.NotificationDefinition
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, ErrNotFound
	}
	return row, err
}

func (s *Store) update(ctx context.Context, id string, values map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.NotificationDefinition{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update definition %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) count(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.StoreRequestsTotal.WithLabelValues(s.backend, operation, outcome).Inc()
}
