package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockgame",
	Short: "Analyst rating pipeline for the stock game",
	Long: `stockgame Unified CLI

Ingests analyst rating changes, classifies companies into sectors with a
language model and simulates weekly price snapshots.

Usage:
  go run ./cmd/stockgame [command]

Examples:
  go run ./cmd/stockgame run
  go run ./cmd/stockgame ingest
  go run ./cmd/stockgame api
  go run ./cmd/stockgame scheduler start
  go run ./cmd/stockgame migrate up`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
