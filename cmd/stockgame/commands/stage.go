package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/pipeline"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

var (
	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Fetch analyst ratings and store first week snapshots",
		Long: `Walks the rating feed page by page and stores every new stock with its
first week snapshot. The schema is migrated before the first page.

Requires: DB_URL, API_URL, API_TOKEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.Context(), string(contracts.StageIngest), config.IngestKeys, wiring{feed: true})
		},
	}

	classifyCmd = &cobra.Command{
		Use:   "classify",
		Short: "Assign a sector to unclassified stocks",
		Long: `Sends company names to the language model in batches and stores the
returned sector for every stock still marked Unclassified.

Requires: DB_URL, OPENROUTER_API_KEY, OPENROUTER_MODEL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.Context(), string(contracts.StageClassify), config.LLMKeys, wiring{model: true})
		},
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Simulate weeks 2 to 5 for every stock",
		Long: `Asks the language model for a four week sentiment forecast per stock
and writes the simulated snapshots for weeks 2 to 5.

Requires: DB_URL, OPENROUTER_API_KEY, OPENROUTER_MODEL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.Context(), string(contracts.StageSimulate), config.LLMKeys, wiring{model: true})
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run ingest, classify and simulate in order",
		Long: `Runs the full pipeline. A stage failure stops the run.

Requires: DB_URL, API_URL, API_TOKEN, OPENROUTER_API_KEY, OPENROUTER_MODEL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.Context(), pipeline.StageAll, config.AllKeys, wiring{feed: true, model: true})
		},
	}
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(runCmd)
}

// runStage runs one stage (or all) in the foreground. Ctrl+C cancels it.
func runStage(parent context.Context, stage string, keys []string, w wiring) error {
	cfg, err := loadConfig(keys...)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.progress = printProgress(os.Stdout)
	a, err := newApp(ctx, cfg, logger.New(cfg), w)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.orch.Run(ctx, stage)
	printResults(os.Stdout, results)
	if err != nil {
		a.logger.WithError(err).WithField("stage", stage).Error("Pipeline run failed")
		return err
	}

	a.logger.WithField("stage", stage).Info("Pipeline run completed")
	return nil
}
