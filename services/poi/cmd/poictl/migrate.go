package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/PoiCatalog/pkg/database"
	"github.com/utafrali/PoiCatalog/services/poi/migrations"
)

var migrateList bool

// migrateCmd applies the embedded schema migrations.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateList {
			names, err := database.PendingMigrations(migrations.FS)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "print the embedded migrations in apply order and exit")
	rootCmd.AddCommand(migrateCmd)
}
