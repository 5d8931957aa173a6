package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockgame/internal/scheduler"
	"github.com/wonny/stockgame/internal/scheduler/jobs"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run pipeline stages on a cron schedule",
	Long: `Starts the scheduler daemon or inspects the scheduled stages.

Subcommands:
  start   - start the scheduler
  list    - list scheduled stages
  run     - run one stage now, with retries
  status  - show the next fire times

Example:
  go run ./cmd/stockgame scheduler start
  go run ./cmd/stockgame scheduler list
  go run ./cmd/stockgame scheduler run classify`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and registers every stage.

Registered jobs (override with SCHEDULE_INGEST, SCHEDULE_CLASSIFY, SCHEDULE_SIMULATE):
- ingest:   every day at 06:00
- classify: every hour at minute 15
- simulate: every day at 07:00

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List scheduled stages",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one stage now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the next fire times",
		RunE:  showStatus,
	}
)

var statusRuns int

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerStatusCmd.Flags().IntVarP(&statusRuns, "count", "n", 3, "fire times to show per job")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Print("=== stockgame scheduler ===\n\n")

	sched, a, err := initScheduler(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sched.Start()

	fmt.Println("✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printStats(sched.GetJobStats())
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Registered jobs:")
	for _, job := range jobs.All(cfg.Schedule, nil, logger.Nop()) {
		fmt.Printf("  - %-9s %s\n", job.Name(), job.Schedule())
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, a, err := initScheduler(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := sched.RunJobSync(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Printf("Job %s finished after %d attempt(s) in %s\n", jobName, result.Attempts, result.Duration.Round(time.Millisecond))
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	fmt.Println("Upcoming runs:")
	fmt.Println()

	for _, job := range jobs.All(cfg.Schedule, nil, logger.Nop()) {
		fmt.Printf("📅 %s (%s)\n", job.Name(), job.Schedule())

		runs, err := scheduler.NextRuns(job.Schedule(), now, statusRuns)
		if err != nil {
			fmt.Printf("   ❌ %v\n\n", err)
			continue
		}
		for _, run := range runs {
			fmt.Printf("   %s\n", run.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}

	return nil
}

func printStats(stats map[string]scheduler.JobStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nJob Statistics:")
	for _, name := range names {
		stat := stats[name]
		fmt.Printf("📊 %s\n", name)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Println()
}

func initScheduler(cmd *cobra.Command) (*scheduler.Scheduler, *app, error) {
	cfg, err := loadConfig(config.AllKeys...)
	if err != nil {
		return nil, nil, err
	}

	a, err := newApp(cmd.Context(), cfg, logger.New(cfg), wiring{feed: true, model: true})
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.logger, scheduler.DefaultOptions())
	for _, job := range jobs.All(cfg.Schedule, a.orch, a.logger) {
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, fmt.Errorf("register job: %w", err)
		}
	}

	return sched, a, nil
}
