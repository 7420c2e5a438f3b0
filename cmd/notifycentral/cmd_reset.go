/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/notification_central/internal/sqlstore"
)

var resetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Clear a definition's trigger flag in the SQL store",
	Long: `Re-arm a notification definition after delivery so it can fire on its next
scheduled quarter-hour. With the Notion backend the reset is done by the
Notion automation instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDatabase(database)

	store := sqlstore.New(database, string(cfg.StoreBackend), cfg.TriggerKey, logger)
	if err := store.Reset(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
	return nil
}
