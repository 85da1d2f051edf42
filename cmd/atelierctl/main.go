// Command atelierctl is the operator tool for an atelier deployment: it
// applies migrations, seeds the catalog, generates signing keys and mints
// admin tokens.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/forgo/atelier/internal/config"
	"github.com/forgo/atelier/internal/database"
)

var (
	verbose bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "atelierctl",
	Short: "Operate an atelier deployment",
	Long: `atelierctl manages an atelier deployment.

Configuration is read from the environment (and .env) exactly like the
server, so DB_* and JWT_* variables apply here too.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall operation timeout")

	rootCmd.AddCommand(tokenCmd, keysCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect loads the configuration and opens the database it names
func connect(ctx context.Context) (*config.Config, *database.SurrealDB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
		TLS:       cfg.Database.TLS,
		SlowQuery: cfg.Database.SlowQuery,
	})
	if err := db.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to %s:%s: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	slog.Debug("connected to database",
		slog.String("namespace", cfg.Database.Namespace),
		slog.String("database", cfg.Database.Database),
	)
	return cfg, db, nil
}
