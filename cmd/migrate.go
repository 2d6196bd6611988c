package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/breviobot/breviobot-service/app/database"
	"github.com/breviobot/breviobot-service/config"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, cfg, err := openDatabaseForCommands(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err = database.Migrate(cmd.Context(), db, cfg.Database.Driver); err != nil {
			return err
		}
		return printVersion(cmd.Context(), db, cfg)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, cfg, err := openDatabaseForCommands(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err = database.Rollback(cmd.Context(), db, cfg.Database.Driver); err != nil {
			return err
		}
		return printVersion(cmd.Context(), db, cfg)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, cfg, err := openDatabaseForCommands(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		return printVersion(cmd.Context(), db, cfg)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func printVersion(ctx context.Context, db *sql.DB, cfg *config.Config) error {
	version, err := database.Version(ctx, db, cfg.Database.Driver)
	if err != nil {
		return err
	}
	fmt.Printf("driver: %s\n", cfg.Database.Driver)
	fmt.Printf("schema_version: %d\n", version)
	return nil
}

func openDatabaseForCommands(ctx context.Context) (*sql.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err = configureLogging(cfg); err != nil {
		return nil, nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
