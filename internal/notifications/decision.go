/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/notification_central/internal/tempo"
)

// Mode selects how readiness is established for a deployment.
type Mode string

const (
	// ModeTempo parses each definition's tempo and matches the current slot.
	ModeTempo Mode = "tempo"
	// ModePrimed trusts the store's precomputed primed flag.
	ModePrimed Mode = "primed"
)

// ParseMode validates a configured trigger mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeTempo, "":
		return ModeTempo, nil
	case ModePrimed:
		return ModePrimed, nil
	default:
		return "", fmt.Errorf("unsupported trigger mode %q", raw)
	}
}

// Reason explains a verdict.
type Reason string

const (
	ReasonEligible         Reason = "eligible"
	ReasonInactive         Reason = "inactive"
	ReasonNoSchedule       Reason = "no_schedule"
	ReasonAlreadyTriggered Reason = "already_triggered"
	ReasonNotDue           Reason = "not_due"
)

// ShouldFire reports whether a definition is eligible to fire at all. The
// checks run in order: activation, schedule presence, then the persisted
// trigger flag. A nil schedule means the tempo failed to parse.
//
// Eligibility is not the same as being due; in tempo mode the caller still has
// to match the current coordinate with tempo.IsDue.
func ShouldFire(def Definition, schedule *tempo.Schedule) (bool, Reason) {
	return shouldFire(def, schedule != nil)
}

// ShouldFirePrimed is the primed-mode variant: readiness is present only when
// the primed flag is exactly true.
func ShouldFirePrimed(def Definition) (bool, Reason) {
	return shouldFire(def, def.Primed != nil && *def.Primed)
}

func shouldFire(def Definition, ready bool) (bool, Reason) {
	if !def.Active {
		return false, ReasonInactive
	}
	if !ready {
		return false, ReasonNoSchedule
	}
	if def.TriggerToggle != nil && *def.TriggerToggle {
		return false, ReasonAlreadyTriggered
	}
	return true, ReasonEligible
}

// Decision is the verdict for one definition at one coordinate.
type Decision struct {
	Fire     bool
	Reason   Reason
	Schedule *tempo.Schedule
}

// Decider applies the deployment's trigger mode to definitions.
type Decider struct {
	mode   Mode
	shape  tempo.Shape
	logger zerolog.Logger
}

// NewDecider constructs a decider for the given mode and coordinate shape.
func NewDecider(mode Mode, shape tempo.Shape, logger zerolog.Logger) *Decider {
	if mode == "" {
		mode = ModeTempo
	}
	if shape == "" {
		shape = tempo.ShapeHourQuarter
	}
	return &Decider{
		mode:   mode,
		shape:  shape,
		logger: logger.With().Str("component", "decider").Logger(),
	}
}

// Mode returns the configured trigger mode.
func (d *Decider) Mode() Mode { return d.mode }

// Shape returns the configured coordinate shape.
func (d *Decider) Shape() tempo.Shape { return d.shape }

// Decide evaluates def against the coordinate. It has no side effects beyond
// debug logging, so repeated calls with the same inputs agree.
func (d *Decider) Decide(def Definition, now tempo.Coordinate) Decision {
	if d.mode == ModePrimed {
		fire, reason := ShouldFirePrimed(def)
		d.logSkip(def, fire, reason, nil)
		return Decision{Fire: fire, Reason: reason}
	}

	var schedule *tempo.Schedule
	var parseErr error
	if def.Active {
		s, err := tempo.Parse(def.Tempo, d.shape)
		if err == nil {
			schedule = &s
		}
		parseErr = err
	}

	fire, reason := ShouldFire(def, schedule)
	if fire && !tempo.IsDue(*schedule, now) {
		fire, reason = false, ReasonNotDue
	}
	d.logSkip(def, fire, reason, parseErr)
	return Decision{Fire: fire, Reason: reason, Schedule: schedule}
}

func (d *Decider) logSkip(def Definition, fire bool, reason Reason, parseErr error) {
	if fire || reason == ReasonInactive || reason == ReasonNotDue {
		return
	}
	ev := d.logger.Debug().
		Str("definition_id", def.ID).
		Str("definition", def.Label()).
		Str("reason", string(reason))
	if parseErr != nil {
		ev = ev.Err(parseErr).Str("tempo", def.Tempo)
	}
	ev.Msg("skipping notification")
}
