package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/logger"
)

// ErrJobRunning is returned when a job is triggered while it is still running
var ErrJobRunning = errors.New("job is already running")

// Options configures retries
type Options struct {
	MaxRetries int
	RetryDelay time.Duration

	// Serial makes different jobs queue behind each other instead of
	// overlapping. The same job never overlaps itself either way.
	Serial bool
}

// DefaultOptions retries a failed job three times, one minute apart, and
// runs one job at a time
func DefaultOptions() Options {
	return Options{MaxRetries: 3, RetryDelay: time.Minute, Serial: true}
}

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	running map[string]bool
	mu      sync.RWMutex
	opts    Options

	// lane is held by the running attempt when opts.Serial is set
	lane chan struct{}

	// ctx bounds every job run; cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler
func New(log *logger.Logger, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	var lane chan struct{}
	if opts.Serial {
		lane = make(chan struct{}, 1)
	}

	return &Scheduler{
		lane:    lane,
		cron:    cron.New(cron.WithSeconds()),
		logger:  log.Module("scheduler"),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		history: make(map[string]*JobHistory),
		running: make(map[string]bool),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		if err := s.trigger(job); err != nil {
			s.logger.WithJob(jobName).WithError(err).Warn("Skipping scheduled run")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob unschedules a job. Its history is kept.
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[jobName]
	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(id)
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithJob(jobName).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	cronCtx := s.cron.Stop()
	s.cancel()
	<-cronCtx.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a job immediately in the background
func (s *Scheduler) RunJob(jobName string) error {
	job, err := s.lookup(jobName)
	if err != nil {
		return err
	}
	return s.trigger(job)
}

// RunJobSync runs a job immediately and waits for the result
func (s *Scheduler) RunJobSync(ctx context.Context, jobName string) (JobResult, error) {
	job, err := s.lookup(jobName)
	if err != nil {
		return JobResult{}, err
	}
	if !s.acquire(jobName) {
		return JobResult{}, fmt.Errorf("%s: %w", jobName, ErrJobRunning)
	}
	defer s.release(jobName)

	result := s.runJob(ctx, job)
	if !result.Success {
		return result, errors.New(result.Error)
	}
	return result, nil
}

func (s *Scheduler) lookup(jobName string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}
	return job, nil
}

// trigger starts job in a goroutine unless it is already running
func (s *Scheduler) trigger(job Job) error {
	if !s.acquire(job.Name()) {
		return fmt.Errorf("%s: %w", job.Name(), ErrJobRunning)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(job.Name())
		s.runJob(s.ctx, job)
	}()
	return nil
}

func (s *Scheduler) acquire(jobName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[jobName] {
		return false
	}
	s.running[jobName] = true
	return true
}

func (s *Scheduler) release(jobName string) {
	s.mu.Lock()
	delete(s.running, jobName)
	s.mu.Unlock()
}

// runJob executes a job with retry logic. Configuration errors and
// cancellation are not retried.
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	jobName := job.Name()
	startTime := time.Now()

	s.logger.WithJob(jobName).Info("Job started")

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		attempts++

		lastErr = s.attempt(ctx, job)
		if lastErr == nil || !retryable(ctx, lastErr) {
			break
		}

		if attempt == s.opts.MaxRetries {
			break
		}

		s.logger.WithFields(map[string]interface{}{
			"job":     jobName,
			"attempt": attempt + 1,
			"delay":   s.opts.RetryDelay,
			"error":   lastErr.Error(),
		}).Warn("Job execution failed, retrying")

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(s.opts.RetryDelay):
			continue
		}
		break
	}

	endTime := time.Now()
	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	log := s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"duration": result.Duration,
		"attempts": attempts,
	})
	if result.Success {
		log.Info("Job completed successfully")
	} else {
		log.WithError(lastErr).Error("Job failed")
	}

	return result
}

// attempt runs job once, queueing behind any other job when serial
func (s *Scheduler) attempt(ctx context.Context, job Job) error {
	if s.lane == nil {
		return job.Run(ctx)
	}

	select {
	case s.lane <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lane }()

	return job.Run(ctx)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return contracts.KindOf(err) != contracts.KindConfig
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history, nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats returns statistics for all registered jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))

	for jobName, job := range s.jobs {
		history := s.history[jobName]
		failed := history.GetFailedResults()

		stat := JobStats{
			JobName:      jobName,
			Schedule:     job.Schedule(),
			Running:      s.running[jobName],
			TotalRuns:    len(history.Results),
			SuccessCount: len(history.Results) - len(failed),
			FailureCount: len(failed),
			SuccessRate:  history.GetSuccessRate(),
		}

		if latest := history.GetLatestResults(1); len(latest) == 1 {
			last := latest[0].StartTime
			stat.LastRun = &last
		}
		for i := len(history.Results) - 1; i >= 0; i-- {
			r := history.Results[i]
			if r.Success && stat.LastSuccess == nil {
				t := r.StartTime
				stat.LastSuccess = &t
			}
			if !r.Success && stat.LastFailure == nil {
				t := r.StartTime
				stat.LastFailure = &t
			}
		}

		stats[jobName] = stat
	}

	return stats
}

var specParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextRuns returns the next n fire times of a cron expression (with seconds) after from
func NextRuns(spec string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	runs := make([]time.Time, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		runs = append(runs, next)
	}
	return runs, nil
}
