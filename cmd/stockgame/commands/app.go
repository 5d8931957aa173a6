package commands

import (
	"context"
	"fmt"

	"github.com/wonny/stockgame/internal/classifier"
	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/feed"
	"github.com/wonny/stockgame/internal/llm"
	"github.com/wonny/stockgame/internal/pipeline"
	"github.com/wonny/stockgame/internal/simulator"
	"github.com/wonny/stockgame/internal/store"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/database"
	"github.com/wonny/stockgame/pkg/httputil"
	"github.com/wonny/stockgame/pkg/logger"
	"github.com/wonny/stockgame/pkg/redis"
)

var validEnvs = map[string]bool{"development": true, "staging": true, "production": true, "test": true}

// app holds the shared dependencies of a command
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	redis  *redis.Client
	repo   *store.Repository
	orch   *pipeline.Orchestrator
}

// wiring selects which stages a command builds
type wiring struct {
	feed     bool
	model    bool
	progress contracts.ProgressFunc
}

// loadConfig reads configuration, applies global flags and checks the keys
// the command needs. Failures are configuration errors.
func loadConfig(keys ...string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, contracts.NewConfigError(err)
	}

	if env != "" {
		if !validEnvs[env] {
			return nil, contracts.NewConfigError(fmt.Errorf("unknown environment %q", env))
		}
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Require(keys...); err != nil {
		return nil, contracts.NewConfigError(err)
	}
	return cfg, nil
}

// newApp connects to the database (and Redis when enabled) and builds the
// orchestrator with the requested stages
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, w wiring) (*app, error) {
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, contracts.NewPersistenceError("failed to connect to database", err)
	}

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache and shared rate limit")
		rc = redis.Disabled()
	}

	a := &app{
		cfg:    cfg,
		logger: log,
		db:     db,
		redis:  rc,
		repo:   store.NewRepository(db.Pool),
	}

	deps := pipeline.Deps{
		Ratings:   a.repo,
		PageDelay: cfg.Feed.PageDelay,
		Rand:      simulator.NewRand(cfg.Simulator.Seed),
		Progress:  w.progress,
	}

	if w.feed {
		deps.Feed = feed.NewClient(cfg.Feed, httputil.NewWithTimeout(log, cfg.Feed.Timeout), log)
		deps.Migrate = func() error {
			return store.Migrate(cfg.Database.URL, log)
		}
	}

	if w.model {
		model, err := llm.New(ctx, cfg, redis.NewRateLimiter(rc, "stockgame"), log)
		if err != nil {
			a.Close()
			return nil, contracts.NewConfigError(err)
		}
		deps.Classifier = classifier.New(model, a.repo, cfg.Classifier, log)
		deps.Simulator = simulator.New(model, a.repo, cfg.Simulator, log)
	}

	a.orch = pipeline.New(deps, log)
	return a, nil
}

// Close releases the database pool and the Redis connection
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
