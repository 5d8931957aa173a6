package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/store"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Applies or rolls back the embedded schema migrations.

The ingest stage applies pending migrations on its own; this command is for
setting up or repairing a database by hand.

Example:
  go run ./cmd/stockgame migrate up
  go run ./cmd/stockgame migrate down --steps 1`,
}

var (
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := migrateSetup()
			if err != nil {
				return err
			}
			if err := store.Migrate(cfg.Database.URL, log); err != nil {
				return contracts.NewPersistenceError("failed to initialize database", err)
			}
			fmt.Println("✅ Schema is up to date")
			return nil
		},
	}

	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := migrateSetup()
			if err != nil {
				return err
			}
			if err := store.MigrateDown(cfg.Database.URL, migrateSteps, log); err != nil {
				return contracts.NewPersistenceError("failed to roll back database", err)
			}
			fmt.Printf("✅ Rolled back %d migration(s)\n", migrateSteps)
			return nil
		},
	}

	migrateSteps int
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
}

func migrateSetup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig(config.KeyDatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg), nil
}
