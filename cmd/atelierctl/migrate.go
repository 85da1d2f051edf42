package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/forgo/atelier/internal/database"
)

var migrateOpts struct {
	dir    string
	dryRun bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SurrealQL schema migrations",
	Long: `Applies every .surql file in the migrations directory in name order.
Statements are written with OVERWRITE / IF NOT EXISTS, so running the
command again is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrateOpts.dir
		if dir == "" {
			found, err := database.FindMigrationsDir()
			if err != nil {
				return err
			}
			dir = found
		}

		migrations, err := database.LoadMigrations(dir)
		if err != nil {
			return err
		}
		if len(migrations) == 0 {
			return fmt.Errorf("no migrations found in %s", dir)
		}

		if migrateOpts.dryRun {
			for _, m := range migrations {
				fmt.Fprintln(cmd.OutOrStdout(), m.Name)
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		_, db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := database.ApplyMigrations(ctx, db, migrations); err != nil {
			return err
		}
		slog.Info("migrations applied", slog.String("dir", dir), slog.Int("count", len(migrations)))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateOpts.dir, "dir", "", "Migrations directory (searched upwards when empty)")
	migrateCmd.Flags().BoolVar(&migrateOpts.dryRun, "dry-run", false, "List the migrations without applying them")
}
