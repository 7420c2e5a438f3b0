/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package notifications holds the notification definition record, the store
// contract the tick depends on, and the trigger decision rules.
package notifications

import "context"

// Definition is a notification definition as read from the external store.
// Stores decode their own wire format into this shape before returning it.
type Definition struct {
	ID     string
	Name   string
	Active bool

	// Tempo is the raw schedule string; empty when the store has none.
	Tempo string

	// Primed is the externally computed readiness flag used in primed mode.
	// Nil means the store did not provide it.
	Primed *bool

	// TriggerToggle is the persisted "already fired" flag. Nil means unknown.
	TriggerToggle *bool
}

// Label returns the name, or the id when the definition is unnamed.
func (d Definition) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Store is the capability the tick needs from the definition store.
type Store interface {
	// FetchAll returns every definition, paging through the backend as needed.
	FetchAll(ctx context.Context) ([]Definition, error)

	// WriteTrigger sets the definition's trigger flag and stamps the trigger key.
	WriteTrigger(ctx context.Context, id string) error
}

// Bool returns a pointer to v. Handy for building definitions.
func Bool(v bool) *bool {
	return &v
}
