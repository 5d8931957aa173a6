// Package classifier assigns a sector from the fixed taxonomy to every
// Unclassified stock, one bounded batch of companies per model call.
package classifier

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/llm"
	"github.com/wonny/stockgame/internal/pacer"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

// Store is the persistence the classifier needs
type Store interface {
	ListUnclassified(ctx context.Context, maxAttempts int) ([]contracts.Stock, error)
	UpdateCategories(ctx context.Context, assignments []contracts.CategoryAssignment) error
	MarkClassifyAttempt(ctx context.Context, ids []int64) error
}

// Summary counts the outcome of one Run
type Summary struct {
	Total         int `json:"total"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Updated       int `json:"updated"`
	Skipped       int `json:"skipped"` // includes Failed
	Failed        int `json:"failed"`  // stocks in failed batches
	Invalid       int `json:"invalid"`
}

// Classifier labels companies with the model and stores the result
type Classifier struct {
	model    llm.Completer
	store    Store
	cfg      config.ClassifierConfig
	validate *validator.Validate
	logger   *logger.Logger
}

// New creates a Classifier
func New(model llm.Completer, store Store, cfg config.ClassifierConfig, log *logger.Logger) *Classifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InvalidPolicy == "" {
		cfg.InvalidPolicy = config.InvalidPolicyOthers
	}

	return &Classifier{
		model:    model,
		store:    store,
		cfg:      cfg,
		validate: validator.New(),
		logger:   log.Module("classifier"),
	}
}

// Label asks the model for one batch of company names and returns a tagged
// result per name, in input order
func (c *Classifier) Label(ctx context.Context, names []string) ([]Label, error) {
	if len(names) == 0 {
		return nil, nil
	}

	raw, err := c.model.Complete(ctx, buildPrompt(names))
	if err != nil {
		return nil, contracts.NewClassificationError(err)
	}

	items, err := parseResponse(raw)
	if err != nil {
		return nil, contracts.NewClassificationError(err)
	}

	return tagLabels(names, items, c.validate), nil
}

// Classify maps each company name to a taxonomy label or Others.
// Invalid and missing labels both resolve to Others.
func (c *Classifier) Classify(ctx context.Context, names []string) (map[string]string, error) {
	labels, err := c.Label(ctx, names)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(labels))
	for _, l := range labels {
		out[l.Company] = l.Resolved()
	}
	return out, nil
}

// Run classifies every Unclassified stock under the attempt cap.
// A failing batch is logged and skipped; report (may be nil) is called after
// each batch. Every stock in a batch that reached the model has its attempt
// counter incremented, whatever the outcome.
func (c *Classifier) Run(ctx context.Context, report func(processed, total int)) (*Summary, error) {
	stocks, err := c.store.ListUnclassified(ctx, c.cfg.MaxAttempts)
	if err != nil {
		return nil, err
	}

	log := c.logger.For(ctx)

	summary := &Summary{Total: len(stocks)}
	if len(stocks) == 0 {
		log.Info("No unclassified stocks")
		return summary, nil
	}

	batches := partition(stocks, c.cfg.BatchSize)
	summary.Batches = len(batches)

	log.WithFields(map[string]interface{}{
		"stocks":  len(stocks),
		"batches": len(batches),
	}).Info("Classifying stocks")

	pause := pacer.New(c.cfg.BatchDelay)
	processed := 0

	for i, batch := range batches {
		// BatchDelay is measured from the end of the previous batch
		if i > 0 {
			if err := pause.Wait(ctx); err != nil {
				return summary, err
			}
		}

		if err := c.runBatch(ctx, batch, summary); err != nil {
			summary.FailedBatches++
			summary.Failed += len(batch)
			summary.Skipped += len(batch)

			log.WithFields(map[string]interface{}{
				"batch":   i + 1,
				"tickers": tickers(batch),
			}).WithError(err).Warn("Classification batch failed, skipping")

			c.markAttempt(ctx, ids(batch))
		}

		processed += len(batch)
		if report != nil {
			report(processed, len(stocks))
		}
	}

	log.WithFields(map[string]interface{}{
		"updated":        summary.Updated,
		"skipped":        summary.Skipped,
		"invalid":        summary.Invalid,
		"failed_batches": summary.FailedBatches,
	}).Info("Classification finished")

	return summary, nil
}

func (c *Classifier) runBatch(ctx context.Context, batch []contracts.Stock, summary *Summary) error {
	labels, err := c.Label(ctx, companyNames(batch))
	if err != nil {
		return err
	}

	byCompany := make(map[string]Label, len(labels))
	for _, l := range labels {
		byCompany[l.Company] = l
	}

	var assignments []contracts.CategoryAssignment
	var rejected []int64
	invalid := 0

	for _, stock := range batch {
		l := byCompany[stock.Company]

		if l.Status == LabelInvalid {
			invalid++
			log := c.logger.For(ctx).WithTicker(stock.Ticker).WithFields(map[string]interface{}{
				"company": stock.Company,
				"label":   l.Raw,
			})

			if c.cfg.InvalidPolicy == config.InvalidPolicySkip {
				log.Warn("Model returned a label outside the taxonomy, leaving stock unclassified")
				rejected = append(rejected, stock.ID)
				continue
			}
			log.Warn("Model returned a label outside the taxonomy, using Others")
		}

		assignments = append(assignments, contracts.CategoryAssignment{
			StockID:  stock.ID,
			Category: l.Resolved(),
		})
	}

	if err := c.store.UpdateCategories(ctx, assignments); err != nil {
		return err
	}

	summary.Updated += len(assignments)
	summary.Invalid += invalid
	summary.Skipped += len(rejected)
	c.markAttempt(ctx, ids(batch))

	return nil
}

func (c *Classifier) markAttempt(ctx context.Context, stockIDs []int64) {
	if len(stockIDs) == 0 {
		return
	}
	if err := c.store.MarkClassifyAttempt(ctx, stockIDs); err != nil {
		c.logger.For(ctx).WithError(err).Warn("Failed to record classification attempt")
	}
}

func partition(stocks []contracts.Stock, size int) [][]contracts.Stock {
	batches := make([][]contracts.Stock, 0, (len(stocks)+size-1)/size)
	for start := 0; start < len(stocks); start += size {
		end := min(start+size, len(stocks))
		batches = append(batches, stocks[start:end])
	}
	return batches
}

// companyNames returns the distinct company names of batch in order
func companyNames(batch []contracts.Stock) []string {
	seen := make(map[string]bool, len(batch))
	names := make([]string, 0, len(batch))
	for _, s := range batch {
		if !seen[s.Company] {
			seen[s.Company] = true
			names = append(names, s.Company)
		}
	}
	return names
}

func tickers(batch []contracts.Stock) []string {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = s.Ticker
	}
	return out
}

func ids(batch []contracts.Stock) []int64 {
	out := make([]int64, len(batch))
	for i, s := range batch {
		out[i] = s.ID
	}
	return out
}

// String is used in progress messages
func (s *Summary) String() string {
	return fmt.Sprintf("%d updated, %d skipped, %d invalid labels, %d/%d batches failed",
		s.Updated, s.Skipped, s.Invalid, s.FailedBatches, s.Batches)
}
