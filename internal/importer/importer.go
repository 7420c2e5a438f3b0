/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package importer loads notification definitions from YAML into the SQL store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/notification_central/internal/models"
	"github.com/friendsincode/notification_central/internal/tempo"
)

// Entry is one definition in the import file.
type Entry struct {
	ID     string `yaml:"id,omitempty"`
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`
	Tempo  string `yaml:"tempo,omitempty"`
	Primed *bool  `yaml:"primed,omitempty"`
}

// File is the import document.
type File struct {
	Definitions []Entry `yaml:"definitions"`
}

// Issue reports an imported definition whose tempo will never fire.
type Issue struct {
	Name  string `json:"name"`
	Tempo string `json:"tempo"`
	Error string `json:"error"`
}

// Result summarises an import.
type Result struct {
	Imported int     `json:"imported"`
	Invalid  []Issue `json:"invalid,omitempty"`
}

// Parse decodes and checks an import document. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, errors.New("import file is empty")
		}
		return f, fmt.Errorf("decode yaml: %w", err)
	}

	seen := make(map[string]bool, len(f.Definitions))
	for i := range f.Definitions {
		e := &f.Definitions[i]
		e.Name = strings.TrimSpace(e.Name)
		e.Tempo = strings.TrimSpace(e.Tempo)
		if e.Name == "" {
			return f, fmt.Errorf("definition %d: name is required", i+1)
		}
		if seen[e.Name] {
			return f, fmt.Errorf("definition %d: duplicate name %q", i+1, e.Name)
		}
		seen[e.Name] = true
	}
	return f, nil
}

// Importer upserts definitions keyed by name.
type Importer struct {
	db     *gorm.DB
	shape  tempo.Shape
	logger zerolog.Logger
}

// New builds an importer validating tempos against shape.
func New(db *gorm.DB, shape tempo.Shape, logger zerolog.Logger) *Importer {
	return &Importer{
		db:     db,
		shape:  shape,
		logger: logger.With().Str("component", "importer").Logger(),
	}
}

// ImportFile reads path and imports it.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open import file: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return im.Import(ctx, f)
}

// Import upserts every entry. Invalid tempos are stored as written and
// reported, since the tick treats them as "no schedule" and skips the row.
// Trigger state is never touched by an import.
func (im *Importer) Import(ctx context.Context, f File) (Result, error) {
	var res Result
	if len(f.Definitions) == 0 {
		return res, nil
	}

	rows := make([]models.NotificationDefinition, 0, len(f.Definitions))
	for _, e := range f.Definitions {
		if e.Tempo != "" {
			if _, err := tempo.Parse(e.Tempo, im.shape); err != nil {
				res.Invalid = append(res.Invalid, Issue{Name: e.Name, Tempo: e.Tempo, Error: err.Error()})
				im.logger.Warn().Err(err).Str("definition", e.Name).Str("tempo", e.Tempo).Msg("imported definition has an unusable tempo")
			}
		}
		rows = append(rows, models.NotificationDefinition{
			ID:       e.ID,
			Name:     e.Name,
			IsActive: e.Active,
			Tempo:    e.Tempo,
			Primed:   e.Primed,
		})
	}

	err := im.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "tempo", "primed", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return res, fmt.Errorf("upsert definitions: %w", err)
	}

	res.Imported = len(rows)
	im.logger.Info().
		Int("imported", res.Imported).
		Int("invalid_tempo", len(res.Invalid)).
		Msg("notification definitions imported")
	return res, nil
}
