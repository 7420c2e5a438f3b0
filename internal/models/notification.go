/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/notification_central/internal/notifications"
)

// NotificationDefinition is the SQL-backed form of a notification definition.
type NotificationDefinition struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	IsActive bool   `gorm:"not null;default:false" json:"is_active"`
	Tempo    string `gorm:"type:varchar(512)" json:"tempo"`

	// Primed and TriggerToggle are nullable so "unknown" survives a round trip.
	Primed        *bool `json:"primed,omitempty"`
	TriggerToggle *bool `json:"trigger_toggle,omitempty"`

	TriggerKey  string     `gorm:"type:varchar(64)" json:"trigger_key,omitempty"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (NotificationDefinition) TableName() string {
	return "notification_definitions"
}

// BeforeCreate assigns an id when none was given.
func (n *NotificationDefinition) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// Definition converts the row into the store-neutral record.
func (n NotificationDefinition) Definition() notifications.Definition {
	return notifications.Definition{
		ID:            n.ID,
		Name:          n.Name,
		Active:        n.IsActive,
		Tempo:         n.Tempo,
		Primed:        n.Primed,
		TriggerToggle: n.TriggerToggle,
	}
}
