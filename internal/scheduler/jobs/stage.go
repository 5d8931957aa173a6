package jobs

import (
	"context"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

// Runner runs a pipeline stage by name
type Runner interface {
	Run(ctx context.Context, stage string) ([]*contracts.StageResult, error)
}

// StageJob runs one pipeline stage on a cron schedule
// ⭐ SSOT: 파이프라인 스케줄 Job은 이 타입으로만 생성
type StageJob struct {
	stage    contracts.Stage
	schedule string
	runner   Runner
	logger   *logger.Logger
}

// NewStageJob creates a job for stage
func NewStageJob(stage contracts.Stage, schedule string, runner Runner, log *logger.Logger) *StageJob {
	return &StageJob{
		stage:    stage,
		schedule: schedule,
		runner:   runner,
		logger:   log.WithJob(string(stage)),
	}
}

// Name returns the stage name
func (j *StageJob) Name() string {
	return string(j.stage)
}

// Schedule returns the cron expression (with seconds)
func (j *StageJob) Schedule() string {
	return j.schedule
}

// Run executes the stage
func (j *StageJob) Run(ctx context.Context) error {
	j.logger.Infof("Starting scheduled %s", j.stage.Description())

	results, err := j.runner.Run(ctx, string(j.stage))
	if err != nil {
		return err
	}

	for _, r := range results {
		j.logger.WithRun(r.RunID, string(r.Stage)).WithFields(map[string]interface{}{
			"processed": r.Processed,
			"succeeded": r.Succeeded,
			"skipped":   r.Skipped,
			"failed":    r.Failed,
		}).Info("Scheduled stage finished")
	}
	return nil
}

// All returns the ingest, classify and simulate jobs with the configured schedules
func All(cfg config.ScheduleConfig, runner Runner, log *logger.Logger) []*StageJob {
	return []*StageJob{
		NewStageJob(contracts.StageIngest, cfg.Ingest, runner, log),
		NewStageJob(contracts.StageClassify, cfg.Classify, runner, log),
		NewStageJob(contracts.StageSimulate, cfg.Simulate, runner, log),
	}
}
