package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkhub/internal/app"
	"github.com/MrSnakeDoc/linkhub/internal/config"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

var printSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Migrate creates the profiles table for the sqlite and postgres backends
and flushes the Redis profile cache when one is configured.

With --print the DDL is written to stdout instead, e.g. to paste into the
Supabase SQL editor.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "print the schema instead of applying it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if printSchema {
		ddl, err := app.Schema(cfg.Backend)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ddl)
		return nil
	}

	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()
	return app.Migrate(cmd.Context(), cfg, log)
}
