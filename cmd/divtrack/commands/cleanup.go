package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzurek/divtrack/internal/store"
)

// cleanupCmd runs the retention sweep manually. The nightly job does
// the same; this exists for operating on a stopped scheduler.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired daily prices and old job logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		prices := store.NewPriceRepository(a.db.Pool)
		jobLogs := store.NewJobLogRepository(a.db.Pool)

		cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.DailyPricesWindowDays)
		removed, err := prices.DeleteOlderThan(cmd.Context(), store.GranularityDaily, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d expired daily prices\n", removed)

		swept, err := jobLogs.Sweep(cmd.Context(), time.Now().UTC(),
			time.Duration(a.cfg.SystemLogRetentionDays)*24*time.Hour, 30*24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d old job log entries\n", swept)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
