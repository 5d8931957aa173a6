package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/pipeline"
	"github.com/wonny/stockgame/pkg/logger"
	"github.com/wonny/stockgame/pkg/redis"
)

// Runner runs a pipeline stage by name
type Runner interface {
	Run(ctx context.Context, stage string) ([]*contracts.StageResult, error)
}

// PipelineHandler triggers pipeline runs in the background, one at a time
// ⭐ SSOT: API 파이프라인 실행은 이 핸들러에서만
type PipelineHandler struct {
	runner Runner
	cache  *redis.Cache
	logger *logger.Logger

	// base is the parent context of background runs
	base context.Context
	wg   sync.WaitGroup

	mu       sync.Mutex
	running  string
	lastRun  []*contracts.StageResult
	lastErr  string
	lastDone time.Time
}

// NewPipelineHandler creates a new pipeline handler. Runs are cancelled
// when ctx is done.
func NewPipelineHandler(ctx context.Context, runner Runner, cache *redis.Cache, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		runner: runner,
		cache:  cache,
		logger: log,
		base:   ctx,
	}
}

// PipelineStatus is the payload of GET /api/pipeline/status
type PipelineStatus struct {
	Running    string                   `json:"running,omitempty"`
	LastResult []*contracts.StageResult `json:"last_result,omitempty"`
	LastError  string                   `json:"last_error,omitempty"`
	LastDone   *time.Time               `json:"last_done,omitempty"`
}

// Trigger starts a stage (or "all") in the background
// POST /api/pipeline/{stage}
func (h *PipelineHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	stage := mux.Vars(r)["stage"]
	if stage != pipeline.StageAll && !contracts.IsValidStage(stage) {
		respondError(w, http.StatusBadRequest, "Invalid stage (must be ingest, classify, simulate or all)")
		return
	}

	h.mu.Lock()
	if h.running != "" {
		running := h.running
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "Pipeline already running: "+running)
		return
	}
	h.running = stage
	h.mu.Unlock()

	h.wg.Add(1)
	go h.run(stage)

	h.logger.WithField("stage", stage).Info("Pipeline run triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"stage":   stage,
		"message": "pipeline run started",
	})
}

func (h *PipelineHandler) run(stage string) {
	defer h.wg.Done()

	results, err := h.runner.Run(h.base, stage)

	// stock lists and category counts are stale after any stage
	if flushErr := h.cache.Flush(context.Background()); flushErr != nil {
		h.logger.WithError(flushErr).Warn("Failed to flush API cache")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.running = ""
	h.lastRun = results
	h.lastDone = time.Now()
	h.lastErr = ""
	if err != nil {
		h.lastErr = err.Error()
		h.logger.WithError(err).WithField("stage", stage).Error("Pipeline run failed")
	}
}

// Status reports the in-flight run and the last finished one
// GET /api/pipeline/status
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status := PipelineStatus{
		Running:    h.running,
		LastResult: h.lastRun,
		LastError:  h.lastErr,
	}
	if !h.lastDone.IsZero() {
		done := h.lastDone
		status.LastDone = &done
	}
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    status,
	})
}

// Wait blocks until background runs have returned
func (h *PipelineHandler) Wait() {
	h.wg.Wait()
}
