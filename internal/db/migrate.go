/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/notification_central/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.NotificationDefinition{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	return applyPostgresTriggerKeyIndex(database)
}

// applyPostgresTriggerKeyIndex adds a partial index used when auditing which
// definitions fired under a given trigger key.
func applyPostgresTriggerKeyIndex(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}
	stmt := `CREATE INDEX IF NOT EXISTS idx_notification_definitions_triggered
ON notification_definitions (trigger_key)
WHERE trigger_toggle IS TRUE`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres trigger key index: %w", err)
	}
	return nil
}
