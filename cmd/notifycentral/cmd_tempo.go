/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/notification_central/internal/tempo"
)

var (
	tempoShape    string
	tempoTimezone string
)

var tempoCmd = &cobra.Command{
	Use:   "tempo <raw>",
	Short: "Parse a tempo and show the current coordinate",
	Long: `Check a tempo string offline. Prints the parsed coordinates, the current
coordinate in the given timezone, and whether the tempo is due right now.
Needs no credentials.`,
	Args: cobra.ExactArgs(1),
	RunE: runTempo,
}

func init() {
	tempoCmd.Flags().StringVar(&tempoShape, "shape", string(tempo.ShapeHourQuarter), "Coordinate shape: hour_quarter or weekday_hour_quarter")
	tempoCmd.Flags().StringVar(&tempoTimezone, "timezone", "America/Los_Angeles", "IANA timezone schedules are written in")
	rootCmd.AddCommand(tempoCmd)
}

func runTempo(cmd *cobra.Command, args []string) error {
	shape, err := tempo.ParseShape(tempoShape)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(tempoTimezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tempoTimezone, err)
	}

	out := cmd.OutOrStdout()
	now := tempo.CurrentCoordinate(loc, time.Now(), shape)

	schedule, err := tempo.Parse(args[0], shape)
	if err != nil {
		fmt.Fprintf(out, "tempo %q never fires: %v\n", args[0], err)
		fmt.Fprintf(out, "current coordinate (%s): %s\n", loc, now)
		return nil
	}

	fmt.Fprintf(out, "schedule: %s (%d coordinate(s))\n", schedule, len(schedule.Coordinates))
	fmt.Fprintf(out, "current coordinate (%s): %s\n", loc, now)
	fmt.Fprintf(out, "due now: %t\n", tempo.IsDue(schedule, now))
	return nil
}
