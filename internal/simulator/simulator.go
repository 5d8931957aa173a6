// Package simulator projects weeks 2-5 of every stock from its week-1
// snapshot using model sentiment forecasts and a random price walk.
package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/llm"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

// Store is the persistence the simulator needs
type Store interface {
	ListBaselines(ctx context.Context) ([]contracts.Baseline, error)
	UpsertSnapshot(ctx context.Context, s contracts.StockSnapshot) error
}

// Summary counts the outcome of one Run
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Simulator runs the weekly projection
type Simulator struct {
	model    llm.Completer
	store    Store
	cfg      config.SimulatorConfig
	rng      *rand.Rand
	validate *validator.Validate
	logger   *logger.Logger
}

// New creates a Simulator. A zero cfg.Seed seeds from the clock.
func New(model llm.Completer, store Store, cfg config.SimulatorConfig, log *logger.Logger) *Simulator {
	return &Simulator{
		model:    model,
		store:    store,
		cfg:      cfg,
		rng:      NewRand(cfg.Seed),
		validate: validator.New(),
		logger:   log.Module("simulator"),
	}
}

// NewRand returns a source seeded with seed, or with the clock when seed is 0
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Forecast asks the model for the sentiment of weeks 2-5
func (s *Simulator) Forecast(ctx context.Context, b contracts.Baseline) ([]contracts.WeekForecast, error) {
	raw, err := s.model.Complete(ctx, forecastPrompt(b))
	if err != nil {
		return nil, contracts.NewSimulationError(b.Stock.Ticker, err)
	}

	forecasts, err := ParseForecast(raw, s.validate)
	if err != nil {
		return nil, contracts.NewSimulationError(b.Stock.Ticker, err)
	}
	return forecasts, nil
}

// SimulateStock forecasts and persists weeks 2-5 for one stock, in week
// order, each week written before the next is computed
func (s *Simulator) SimulateStock(ctx context.Context, b contracts.Baseline) ([]contracts.StockSnapshot, error) {
	forecasts, err := s.Forecast(ctx, b)
	if err != nil {
		return nil, err
	}

	w := newWalker(b, s.cfg.CompoundTargets, s.rng)
	written := make([]contracts.StockSnapshot, 0, len(forecasts))

	for _, f := range forecasts {
		snap := w.next(f)
		if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
			return written, contracts.NewSimulationError(b.Stock.Ticker, err)
		}
		written = append(written, snap)

		s.logger.For(ctx).WithTicker(b.Stock.Ticker).WithFields(map[string]interface{}{
			"week":      snap.Week,
			"sentiment": snap.MarketSentiment,
			"signal":    snap.SignalStrength,
			"price":     snap.Price.StringFixed(2),
		}).Debug("Week simulated")
	}

	return written, nil
}

// Run simulates every stock with a week-1 snapshot. A failing stock is
// logged and counted; report (may be nil) is called after each stock.
func (s *Simulator) Run(ctx context.Context, report func(processed, total int)) (*Summary, error) {
	baselines, err := s.store.ListBaselines(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(baselines)}
	log := s.logger.For(ctx)
	log.WithField("stocks", len(baselines)).Info("Simulating stocks")

	for i, b := range baselines {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if _, err := s.SimulateStock(ctx, b); err != nil {
			summary.Failed++
			log.WithTicker(b.Stock.Ticker).WithField("company", b.Stock.Company).
				WithError(err).Warn("Simulation failed for stock")
		} else {
			summary.Succeeded++
		}

		if report != nil {
			report(i+1, len(baselines))
		}
	}

	log.WithFields(map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"total":     summary.Total,
	}).Info("Simulation finished")

	return summary, nil
}
