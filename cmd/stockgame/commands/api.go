package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockgame/internal/api"
	"github.com/wonny/stockgame/internal/api/handlers"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
	"github.com/wonny/stockgame/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Stocks are always served. Pipeline triggers work for the stages whose
environment variables are set; the others answer with a configuration error.

Endpoints:
  GET  /health                 - Health check
  GET  /api/stocks             - Stocks with their snapshots (?category=&page=&limit=)
  GET  /api/stocks/{ticker}    - One stock
  GET  /api/categories         - Categories with stock counts
  GET  /api/pipeline/status    - Running stage and last result
  POST /api/pipeline/{stage}   - Trigger ingest, classify, simulate or all
  GET  /ws/progress            - Pipeline progress (websocket)

Example:
  go run ./cmd/stockgame api
  go run ./cmd/stockgame api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT or 8080)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockgame API Server ===")

	cfg, err := loadConfig(config.KeyDatabaseURL)
	if err != nil {
		return err
	}

	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)

	hub := handlers.NewProgressHub(log)
	defer hub.Close()

	a, err := newApp(cmd.Context(), cfg, log, wiring{
		feed:     cfg.Require(config.IngestKeys...) == nil,
		model:    cfg.Require(config.LLMKeys...) == nil,
		progress: hub.Publish,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	log.WithFields(map[string]interface{}{
		"port":  cfg.Port,
		"env":   cfg.Env,
		"redis": a.redis.Enabled(),
	}).Info("Initializing API server")

	// Background pipeline runs stop with the server
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	cache := redis.NewCache(a.redis, "stockgame")
	pipelineHandler := handlers.NewPipelineHandler(runCtx, a.orch, cache, log)

	router := api.NewRouter(api.Handlers{
		Stocks:   handlers.NewStockHandler(a.repo, cache, log),
		Pipeline: pipelineHandler,
		Progress: hub,
		Health:   a.db,
	}, log)

	server := api.New(cfg, log, router)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		cancelRuns()
		pipelineHandler.Wait()
		return err
	case <-quit:
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	cancelRuns()
	pipelineHandler.Wait()

	log.Info("Server stopped")
	return nil
}
