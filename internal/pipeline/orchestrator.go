// Package pipeline sequences the ingest, classify and simulate stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/stockgame/internal/classifier"
	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/pacer"
	"github.com/wonny/stockgame/internal/simulator"
	"github.com/wonny/stockgame/internal/store"
	"github.com/wonny/stockgame/pkg/logger"
)

// StageAll runs every stage in order
const StageAll = "all"

// Fetcher reads one feed page
type Fetcher interface {
	Fetch(ctx context.Context, cursor string) (*contracts.Page, error)
}

// RatingStore persists a page of ratings atomically
type RatingStore interface {
	InsertRatings(ctx context.Context, records []contracts.RatingRecord) (*store.InsertResult, error)
}

// Classifier runs the classification stage
type Classifier interface {
	Run(ctx context.Context, report func(processed, total int)) (*classifier.Summary, error)
}

// Simulator runs the simulation stage
type Simulator interface {
	Run(ctx context.Context, report func(processed, total int)) (*simulator.Summary, error)
}

// Deps wires the orchestrator. Nil stages are rejected when run.
type Deps struct {
	Feed       Fetcher
	Ratings    RatingStore
	Classifier Classifier
	Simulator  Simulator

	// Migrate initializes the schema before ingestion. Optional.
	Migrate func() error

	PageDelay time.Duration
	Rand      *rand.Rand
	Progress  contracts.ProgressFunc
}

// Orchestrator runs pipeline stages strictly sequentially. Concurrent
// callers queue until the running stage returns.
// ⭐ SSOT: 파이프라인 단계 순서는 여기서만 결정
type Orchestrator struct {
	deps   Deps
	rng    *rand.Rand
	logger *logger.Logger

	// slot holds one token while a stage runs
	slot    chan struct{}
	mu      sync.Mutex
	running string
}

// New creates an Orchestrator
func New(deps Deps, log *logger.Logger) *Orchestrator {
	rng := deps.Rand
	if rng == nil {
		rng = simulator.NewRand(0)
	}

	return &Orchestrator{
		deps:   deps,
		rng:    rng,
		logger: log.Module("pipeline"),
		slot:   make(chan struct{}, 1),
	}
}

// Running returns the stage currently holding the pipeline, or ""
func (o *Orchestrator) Running() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// acquire waits until no other stage runs, or ctx is done
func (o *Orchestrator) acquire(ctx context.Context, name string) error {
	select {
	case o.slot <- struct{}{}:
	default:
		o.logger.WithFields(map[string]interface{}{
			"stage":   name,
			"running": o.Running(),
		}).Info("Waiting for the running stage to finish")

		select {
		case o.slot <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.mu.Lock()
	o.running = name
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = ""
	o.mu.Unlock()
	<-o.slot
}

func (o *Orchestrator) exclusive(ctx context.Context, stage contracts.Stage, run func(context.Context) (*contracts.StageResult, error)) (*contracts.StageResult, error) {
	if err := o.acquire(ctx, string(stage)); err != nil {
		return nil, err
	}
	defer o.release()
	return run(ctx)
}

// Run executes one stage by name, or every stage for "all"
func (o *Orchestrator) Run(ctx context.Context, name string) ([]*contracts.StageResult, error) {
	if name == StageAll {
		return o.RunAll(ctx)
	}

	var (
		result *contracts.StageResult
		err    error
	)

	switch contracts.Stage(name) {
	case contracts.StageIngest:
		result, err = o.Ingest(ctx)
	case contracts.StageClassify:
		result, err = o.Classify(ctx)
	case contracts.StageSimulate:
		result, err = o.Simulate(ctx)
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}

	if result == nil {
		return nil, err
	}
	return []*contracts.StageResult{result}, err
}

// RunAll runs ingest, classify and simulate, stopping at the first fatal
// error. The pipeline is held for the whole sequence.
func (o *Orchestrator) RunAll(ctx context.Context) ([]*contracts.StageResult, error) {
	if err := o.acquire(ctx, StageAll); err != nil {
		return nil, err
	}
	defer o.release()

	stages := []func(context.Context) (*contracts.StageResult, error){o.ingest, o.classify, o.simulate}

	results := make([]*contracts.StageResult, 0, len(stages))
	for _, run := range stages {
		result, err := run(ctx)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Ingest initializes the schema, then stores every feed page until the
// cursor runs out. A stored page is followed by a full PageDelay pause.
func (o *Orchestrator) Ingest(ctx context.Context) (*contracts.StageResult, error) {
	return o.exclusive(ctx, contracts.StageIngest, o.ingest)
}

func (o *Orchestrator) ingest(ctx context.Context) (*contracts.StageResult, error) {
	r := o.begin(contracts.StageIngest)
	ctx = logger.ContextWithRun(ctx, r.RunID, string(r.Stage))

	if o.deps.Feed == nil || o.deps.Ratings == nil {
		return o.finish(r, contracts.NewConfigError(errors.New("ingest stage is not configured")))
	}

	if o.deps.Migrate != nil {
		if err := o.deps.Migrate(); err != nil {
			return o.finish(r, contracts.NewPersistenceError("failed to initialize database", err))
		}
	}

	pause := pacer.New(o.deps.PageDelay)
	cursor := ""
	pages := 0

	for {
		page, err := o.deps.Feed.Fetch(ctx, cursor)
		if err != nil {
			return o.finish(r, err)
		}
		pages++

		records := o.buildRecords(ctx, page.Items)
		r.Processed += len(page.Items) + page.Dropped
		r.Skipped += page.Dropped + len(page.Items) - len(records)

		if len(records) > 0 {
			if _, err := o.deps.Ratings.InsertRatings(ctx, records); err != nil {
				return o.finish(r, err)
			}
			r.Succeeded += len(records)
		}

		o.logger.For(ctx).WithFields(map[string]interface{}{
			"page":     pages,
			"items":    len(records),
			"total":    r.Succeeded,
			"has_next": page.HasNext(),
		}).Info("Processed rating page")
		o.emit(r, fmt.Sprintf("page %d stored (%d ratings)", pages, len(records)), r.Processed, 0, false)

		if !page.HasNext() {
			break
		}
		cursor = page.Cursor()

		if err := pause.Wait(ctx); err != nil {
			return o.finish(r, err)
		}
	}

	return o.finish(r, nil)
}

// buildRecords derives week-1 snapshots; events without a usable target are
// skipped with a warning
func (o *Orchestrator) buildRecords(ctx context.Context, items []contracts.RatingEvent) []contracts.RatingRecord {
	records := make([]contracts.RatingRecord, 0, len(items))
	for _, item := range items {
		snap, err := simulator.InitialSnapshot(item, o.rng)
		if err != nil {
			o.logger.For(ctx).WithTicker(item.Ticker).WithFields(map[string]interface{}{
				"target_from": item.TargetFrom,
				"target_to":   item.TargetTo,
			}).WithError(err).Warn("Skipping rating without usable target")
			continue
		}

		records = append(records, contracts.RatingRecord{
			Ticker:   item.Ticker,
			Company:  item.Company,
			Snapshot: snap,
		})
	}
	return records
}

// Classify assigns sectors to unclassified stocks
func (o *Orchestrator) Classify(ctx context.Context) (*contracts.StageResult, error) {
	return o.exclusive(ctx, contracts.StageClassify, o.classify)
}

func (o *Orchestrator) classify(ctx context.Context) (*contracts.StageResult, error) {
	r := o.begin(contracts.StageClassify)
	ctx = logger.ContextWithRun(ctx, r.RunID, string(r.Stage))

	if o.deps.Classifier == nil {
		return o.finish(r, contracts.NewConfigError(errors.New("classify stage is not configured")))
	}

	summary, err := o.deps.Classifier.Run(ctx, o.reporter(r))
	if summary != nil {
		r.Processed = summary.Total
		r.Succeeded = summary.Updated
		r.Skipped = summary.Skipped - summary.Failed
		r.Failed = summary.Failed
	}
	if err != nil && contracts.KindOf(err) == "" && !isContextErr(err) {
		err = contracts.NewPersistenceError("failed to load unclassified stocks", err)
	}

	return o.finish(r, err)
}

// Simulate projects weeks 2-5 for every stock with a baseline
func (o *Orchestrator) Simulate(ctx context.Context) (*contracts.StageResult, error) {
	return o.exclusive(ctx, contracts.StageSimulate, o.simulate)
}

func (o *Orchestrator) simulate(ctx context.Context) (*contracts.StageResult, error) {
	r := o.begin(contracts.StageSimulate)
	ctx = logger.ContextWithRun(ctx, r.RunID, string(r.Stage))

	if o.deps.Simulator == nil {
		return o.finish(r, contracts.NewConfigError(errors.New("simulate stage is not configured")))
	}

	summary, err := o.deps.Simulator.Run(ctx, o.reporter(r))
	if summary != nil {
		r.Processed = summary.Total
		r.Succeeded = summary.Succeeded
		r.Failed = summary.Failed
	}
	if err != nil && contracts.KindOf(err) == "" && !isContextErr(err) {
		err = contracts.NewPersistenceError("failed to load week-1 snapshots", err)
	}

	return o.finish(r, err)
}

func (o *Orchestrator) begin(stage contracts.Stage) *contracts.StageResult {
	r := &contracts.StageResult{
		RunID:     uuid.NewString(),
		Stage:     stage,
		StartedAt: time.Now(),
	}

	o.logger.WithRun(r.RunID, string(stage)).Infof("Starting %s", stage.Description())
	o.emit(r, "started", 0, 0, false)

	return r
}

func (o *Orchestrator) finish(r *contracts.StageResult, err error) (*contracts.StageResult, error) {
	r.Duration = time.Since(r.StartedAt).Milliseconds()

	log := o.logger.WithRun(r.RunID, string(r.Stage)).WithFields(map[string]interface{}{
		"processed":   r.Processed,
		"succeeded":   r.Succeeded,
		"skipped":     r.Skipped,
		"failed":      r.Failed,
		"duration_ms": r.Duration,
	})

	if err != nil {
		r.Error = err.Error()
		log.WithError(err).Errorf("%s failed", r.Stage.Description())
		o.emit(r, "failed: "+err.Error(), r.Processed, r.Processed, true)
		return r, err
	}

	log.Infof("%s completed", r.Stage.Description())
	o.emit(r, fmt.Sprintf("completed: %d succeeded, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed), r.Processed, r.Processed, true)
	return r, nil
}

func (o *Orchestrator) reporter(r *contracts.StageResult) func(processed, total int) {
	return func(processed, total int) {
		o.emit(r, fmt.Sprintf("%d/%d", processed, total), processed, total, false)
	}
}

func (o *Orchestrator) emit(r *contracts.StageResult, msg string, processed, total int, done bool) {
	if o.deps.Progress == nil {
		return
	}
	o.deps.Progress(contracts.ProgressEvent{
		RunID:     r.RunID,
		Stage:     r.Stage,
		Message:   msg,
		Processed: processed,
		Total:     total,
		Done:      done,
		Time:      time.Now(),
	})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
