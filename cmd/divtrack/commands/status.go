package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd shows provider quota consumption and DB health
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider quota and database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Println("Provider quota:")
		for _, s := range a.ledger.StatusAll() {
			fmt.Printf("  %s\n", s)
		}

		health, _ := a.db.HealthCheck(cmd.Context())
		state := "healthy"
		if !health.Healthy {
			state = "unhealthy: " + health.Error
		}
		fmt.Printf("Database: %s (%s)\n", state, health.ResponseTime.Round(0))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
