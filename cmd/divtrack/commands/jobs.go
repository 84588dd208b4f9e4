package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzurek/divtrack/internal/store"
)

// jobsCmd groups pipeline job subcommands
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run and inspect pipeline jobs",
}

var jobsRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Run a pipeline job immediately",
	Long: `Runs one of the scheduled jobs outside its schedule.

Job names:
  price_refresh           - refresh current prices
  nightly_reconciliation  - full history reconciliation`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		name := args[0]
		if err := a.service.RunJob(cmd.Context(), name); err != nil {
			return err
		}

		// RunJob is asynchronous; poll the history for the outcome
		fmt.Printf("Job %s started\n", name)
		for i := 0; i < 600; i++ {
			time.Sleep(time.Second)
			history, err := a.scheduler.GetJobHistory(name)
			if err != nil {
				return err
			}
			if latest := history.GetLatestResults(1); len(latest) > 0 {
				r := latest[0]
				if r.Success {
					fmt.Printf("Job %s finished in %s\n", name, r.Duration.Round(time.Millisecond))
				} else {
					fmt.Printf("Job %s failed: %s\n", name, r.Error)
				}
				return nil
			}
		}
		fmt.Println("Job still running, check logs")
		return nil
	},
}

var (
	logsJob   string
	logsLevel string
	logsLimit int
)

var jobsLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show persisted job logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		logs, err := a.service.GetJobLogs(cmd.Context(), store.JobLogFilter{
			JobName: logsJob,
			Level:   logsLevel,
			Limit:   logsLimit,
		})
		if err != nil {
			return err
		}

		for _, e := range logs {
			status := "ok"
			if !e.Success {
				status = "FAIL"
			}
			fmt.Printf("%s  %-7s %-4s %-24s %5dms  %s\n",
				e.LoggedAt.Format("2006-01-02 15:04:05"), e.Level, status, e.Action, e.ExecutionTimeMS, e.Details)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsLogsCmd.Flags().StringVar(&logsJob, "job", "", "filter by job name")
	jobsLogsCmd.Flags().StringVar(&logsLevel, "level", "", "filter by level (info|warning|error)")
	jobsLogsCmd.Flags().IntVar(&logsLimit, "limit", 50, "max entries")

	jobsCmd.AddCommand(jobsRunCmd)
	jobsCmd.AddCommand(jobsLogsCmd)
}
