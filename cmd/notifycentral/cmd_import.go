/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/notification_central/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import notification definitions from YAML into the SQL store",
	Long: `Upsert notification definitions keyed by name. Tempos are checked against
NC_SCHEDULE_SHAPE; invalid ones are stored as written and listed so they can
be fixed. Trigger state is left untouched.

Example file:
  definitions:
    - name: standup
      active: true
      tempo: "9.1, 13.3"
`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDatabase(database)

	res, err := importer.New(database, cfg.ScheduleShape, logger).ImportFile(context.Background(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "imported %d definition(s)\n", res.Imported)
	for _, issue := range res.Invalid {
		fmt.Fprintf(out, "  warning: %q has unusable tempo %q: %s\n", issue.Name, issue.Tempo, issue.Error)
	}
	return nil
}
