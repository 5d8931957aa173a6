package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/database"
	"github.com/wonny/stockgame/pkg/redis"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and connectivity",
	Long: `Reports which stages are configured, then tests the database and Redis.

This command:
- lists missing environment variables per stage
- connects to the database and shows pool statistics
- pings Redis when REDIS_ENABLED is set

Example:
  go run ./cmd/stockgame check
  go run ./cmd/stockgame check --config ./prod.env`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockgame check ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("✅ Config loaded (ENV: %s, LLM: %s)\n\n", cfg.Env, cfg.LLM.Provider)

	fmt.Println("Stages:")
	for _, stage := range []struct {
		name string
		keys []string
	}{
		{string(contracts.StageIngest), config.IngestKeys},
		{string(contracts.StageClassify), config.LLMKeys},
		{string(contracts.StageSimulate), config.LLMKeys},
	} {
		if err := cfg.Require(stage.keys...); err != nil {
			fmt.Printf("   ❌ %-9s %v\n", stage.name, err)
			continue
		}
		fmt.Printf("   ✅ %s\n", stage.name)
	}
	fmt.Println()

	if err := cfg.Require(config.KeyDatabaseURL); err != nil {
		return contracts.NewConfigError(err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	fmt.Printf("Connecting to database %s ...\n", maskPassword(cfg.Database.URL))
	db, err := database.New(ctx, cfg)
	if err != nil {
		return contracts.NewPersistenceError("failed to connect to database", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return contracts.NewPersistenceError("database health check failed", err)
	}
	fmt.Printf("✅ Database healthy (%v)\n", status.ResponseTime)
	fmt.Println("📊 Connection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", status.Stats.MaxConns)
	fmt.Printf("   Total Connections: %d\n", status.Stats.TotalConns)
	fmt.Printf("   Idle Connections: %d\n", status.Stats.IdleConns)
	fmt.Println()

	if !cfg.Redis.Enabled {
		fmt.Println("➖ Redis disabled")
		return nil
	}

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer rc.Close()
	fmt.Printf("✅ Redis reachable at %s:%s\n", cfg.Redis.Host, cfg.Redis.Port)

	return nil
}

// maskPassword hides the password of a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		if i := strings.Index(raw, "@"); i > 0 {
			return "***" + raw[i:]
		}
		return raw
	}
	return u.Redacted()
}
