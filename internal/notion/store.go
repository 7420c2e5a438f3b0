/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/notification_central/internal/notifications"
)

// PropertyNames maps definition fields onto database column names.
type PropertyNames struct {
	Title         string
	Active        string
	Tempo         string
	Primed        string
	TriggerKey    string
	TriggerToggle string
}

// Store reads notification definitions from a Notion database.
type Store struct {
	client     *Client
	databaseID string
	props      PropertyNames
	triggerKey string
	logger     zerolog.Logger
}

// NewStore builds a store over one database.
func NewStore(client *Client, databaseID string, props PropertyNames, triggerKey string, logger zerolog.Logger) *Store {
	return &Store{
		client:     client,
		databaseID: databaseID,
		props:      props,
		triggerKey: triggerKey,
		logger:     logger.With().Str("component", "notion_store").Logger(),
	}
}

// FetchAll pages through the database until has_more is false.
func (s *Store) FetchAll(ctx context.Context) ([]notifications.Definition, error) {
	var (
		defs   []notifications.Definition
		cursor string
		pages  int
	)
	for {
		res, err := s.client.QueryDatabase(ctx, s.databaseID, cursor)
		if err != nil {
			return nil, err
		}
		pages++
		for _, page := range res.Results {
			if page.Object != "page" {
				continue
			}
			defs = append(defs, s.decode(page))
		}
		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			break
		}
		cursor = *res.NextCursor
	}

	s.logger.Info().
		Int("definitions", len(defs)).
		Int("pages", pages).
		Msg("fetched notification definitions from notion")
	return defs, nil
}

func (s *Store) decode(page Page) notifications.Definition {
	name := plainText(page.Properties, s.props.Title)
	if name == "" {
		name = page.ID
	}
	active := checkbox(page.Properties, s.props.Active)

	def := notifications.Definition{
		ID:            page.ID,
		Name:          name,
		Active:        active != nil && *active,
		Tempo:         plainText(page.Properties, s.props.Tempo),
		TriggerToggle: checkbox(page.Properties, s.props.TriggerToggle),
	}
	if s.props.Primed != "" {
		def.Primed = flag(page.Properties, s.props.Primed)
	}
	return def
}

// WriteTrigger stamps the trigger key and sets the trigger toggle on a page.
func (s *Store) WriteTrigger(ctx context.Context, id string) error {
	s.logger.Debug().Str("definition_id", id).Msg("setting trigger")

	props := map[string]any{
		s.props.TriggerKey: map[string]any{
			"rich_text": []any{
				map[string]any{"text": map[string]any{"content": s.triggerKey}},
			},
		},
		s.props.TriggerToggle: map[string]any{"checkbox": true},
	}
	if err := s.client.UpdatePage(ctx, id, props); err != nil {
		return fmt.Errorf("set trigger: %w", err)
	}
	return nil
}
