/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tempo parses compact recurring schedules and matches them against
// the current position on a quarter-hour grid.
//
// A tempo string is a comma separated list of entries. Depending on the
// configured Shape each entry is either "hour.quarter" (e.g. "9.1, 14.3") or
// "weekday.hour.quarter" (e.g. "1.11.2"), where weekday is 1=Monday..7=Sunday,
// hour is 0-23 and quarter is 1-4. A schedule is valid as a whole or not at all.
package tempo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Shape selects the coordinate layout used by a deployment.
type Shape string

const (
	ShapeHourQuarter        Shape = "hour_quarter"
	ShapeWeekdayHourQuarter Shape = "weekday_hour_quarter"
)

var (
	// ErrEmpty is returned when the raw string holds no entries.
	ErrEmpty = errors.New("tempo is empty")
	// ErrMalformed is returned when an entry does not match the entry grammar.
	ErrMalformed = errors.New("tempo entry is malformed")
	// ErrOutOfRange is returned when a field is outside its allowed range.
	ErrOutOfRange = errors.New("tempo field out of range")
)

var (
	reHourQuarter        = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})$`)
	reWeekdayHourQuarter = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{1,2})$`)
)

// ParseShape validates a configured shape name.
func ParseShape(raw string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(raw))) {
	case ShapeHourQuarter, "":
		return ShapeHourQuarter, nil
	case ShapeWeekdayHourQuarter:
		return ShapeWeekdayHourQuarter, nil
	default:
		return "", fmt.Errorf("unsupported schedule shape %q", raw)
	}
}

// Fields returns how many dot separated fields an entry carries.
func (s Shape) Fields() int {
	if s == ShapeWeekdayHourQuarter {
		return 3
	}
	return 2
}

// Coordinate is one slot on the recurring grid. Weekday is zero for the
// hour-quarter shape.
type Coordinate struct {
	Weekday int
	Hour    int
	Quarter int
}

// String renders the coordinate in tempo notation.
func (c Coordinate) String() string {
	if c.Weekday > 0 {
		return fmt.Sprintf("%d.%d.%d", c.Weekday, c.Hour, c.Quarter)
	}
	return fmt.Sprintf("%d.%d", c.Hour, c.Quarter)
}

// Schedule is a parsed tempo. Duplicate coordinates are kept and harmless.
type Schedule struct {
	Shape       Shape
	Coordinates []Coordinate
}

// String renders the schedule back into normalized tempo notation.
func (s Schedule) String() string {
	parts := make([]string, len(s.Coordinates))
	for i, c := range s.Coordinates {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// Contains reports whether c is one of the schedule's coordinates.
func (s Schedule) Contains(c Coordinate) bool {
	for _, sc := range s.Coordinates {
		if sc == c {
			return true
		}
	}
	return false
}

// Parse turns a raw tempo into a Schedule. Any malformed or out-of-range entry
// rejects the whole input so that a typo disables the definition instead of
// silently scheduling the remaining entries.
func Parse(raw string, shape Shape) (Schedule, error) {
	re := reHourQuarter
	if shape == ShapeWeekdayHourQuarter {
		re = reWeekdayHourQuarter
	}

	var entries []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			entries = append(entries, part)
		}
	}
	if len(entries) == 0 {
		return Schedule{}, ErrEmpty
	}

	out := Schedule{Shape: shape, Coordinates: make([]Coordinate, 0, len(entries))}
	for _, entry := range entries {
		m := re.FindStringSubmatch(entry)
		if m == nil {
			return Schedule{}, fmt.Errorf("%w: %q", ErrMalformed, entry)
		}
		fields := make([]int, 0, 3)
		for _, f := range m[1:] {
			// the regexp guarantees one or two ASCII digits
			n, _ := strconv.Atoi(f)
			fields = append(fields, n)
		}

		var c Coordinate
		if shape == ShapeWeekdayHourQuarter {
			c = Coordinate{Weekday: fields[0], Hour: fields[1], Quarter: fields[2]}
		} else {
			c = Coordinate{Hour: fields[0], Quarter: fields[1]}
		}
		if err := validate(c, shape); err != nil {
			return Schedule{}, fmt.Errorf("%w: %q", err, entry)
		}
		out.Coordinates = append(out.Coordinates, c)
	}
	return out, nil
}

func validate(c Coordinate, shape Shape) error {
	if shape == ShapeWeekdayHourQuarter && (c.Weekday < 1 || c.Weekday > 7) {
		return ErrOutOfRange
	}
	if c.Hour < 0 || c.Hour > 23 {
		return ErrOutOfRange
	}
	if c.Quarter < 1 || c.Quarter > 4 {
		return ErrOutOfRange
	}
	return nil
}

// CurrentCoordinate converts now into civil time in loc and returns the slot
// it falls in. It does not snap to quarter boundaries.
func CurrentCoordinate(loc *time.Location, now time.Time, shape Shape) Coordinate {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	c := Coordinate{
		Hour:    local.Hour(),
		Quarter: local.Minute()/15 + 1,
	}
	if shape == ShapeWeekdayHourQuarter {
		c.Weekday = isoWeekday(local.Weekday())
	}
	return c
}

// isoWeekday maps time.Weekday (Sunday=0) onto 1=Monday..7=Sunday.
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// IsDue reports whether the schedule contains the coordinate exactly.
func IsDue(s Schedule, c Coordinate) bool {
	return s.Contains(c)
}
