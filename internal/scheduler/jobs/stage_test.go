package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

type fakeRunner struct {
	stages []string
	err    error
}

func (r *fakeRunner) Run(_ context.Context, stage string) ([]*contracts.StageResult, error) {
	r.stages = append(r.stages, stage)
	if r.err != nil {
		return nil, r.err
	}
	return []*contracts.StageResult{{RunID: "run-1", Stage: contracts.Stage(stage), Processed: 3, Succeeded: 3}}, nil
}

func TestAll(t *testing.T) {
	cfg := config.ScheduleConfig{Ingest: "0 0 6 * * *", Classify: "0 15 * * * *", Simulate: "0 0 7 * * *"}
	runner := &fakeRunner{}

	jobs := All(cfg, runner, logger.Nop())
	require.Len(t, jobs, 3)

	assert.Equal(t, "ingest", jobs[0].Name())
	assert.Equal(t, "0 0 6 * * *", jobs[0].Schedule())
	assert.Equal(t, "classify", jobs[1].Name())
	assert.Equal(t, "0 15 * * * *", jobs[1].Schedule())
	assert.Equal(t, "simulate", jobs[2].Name())

	for _, job := range jobs {
		require.NoError(t, job.Run(context.Background()))
	}
	assert.Equal(t, []string{"ingest", "classify", "simulate"}, runner.stages)
}

func TestStageJob_PropagatesError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	job := NewStageJob(contracts.StageClassify, "@hourly", runner, logger.Nop())

	assert.ErrorContains(t, job.Run(context.Background()), "boom")
}
