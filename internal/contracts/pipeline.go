package contracts

import "time"

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 진행 이벤트, API 응답에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   ingest → classify → simulate
//   Feed     Sector LLM   Weeks 2-5

// Stage represents a pipeline stage
type Stage string

const (
	// StageIngest: fetch rating pages, upsert stocks and week-1 snapshots
	// 위치: internal/feed/, internal/pipeline/
	StageIngest Stage = "ingest"

	// StageClassify: assign a sector to every Unclassified stock
	// 위치: internal/classifier/
	StageClassify Stage = "classify"

	// StageSimulate: project weeks 2-5 from each week-1 snapshot
	// 위치: internal/simulator/
	StageSimulate Stage = "simulate"
)

func (s Stage) String() string {
	return string(s)
}

// Description returns a human readable label for logs and the API
func (s Stage) Description() string {
	switch s {
	case StageIngest:
		return "rating ingestion"
	case StageClassify:
		return "sector classification"
	case StageSimulate:
		return "snapshot simulation"
	default:
		return "unknown"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{StageIngest, StageClassify, StageSimulate}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult summarizes one stage execution
type StageResult struct {
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`
	Error     string    `json:"error,omitempty"`
}

// ProgressEvent is published while a stage runs
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Done      bool      `json:"done"`
	Time      time.Time `json:"time"`
}

// ProgressFunc receives progress events. Implementations must not block.
type ProgressFunc func(ProgressEvent)
