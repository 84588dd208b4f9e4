package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// instrumentCmd groups the instrument subcommands
var instrumentCmd = &cobra.Command{
	Use:   "instrument",
	Short: "Manage tracked instruments",
}

var instrumentAddCmd = &cobra.Command{
	Use:   "add TICKER",
	Short: "Start tracking a ticker and back-fill its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		inst, err := a.service.AddInstrument(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Added %s (%s)\n", inst.Ticker, inst.Name)
		if inst.CurrentPrice != nil {
			fmt.Printf("  price:     %.2f\n", *inst.CurrentPrice)
		}
		fmt.Printf("  frequency: %s\n", inst.PayoutFrequency)
		if inst.InceptionDate != nil {
			fmt.Printf("  inception: %s\n", inst.InceptionDate.Format("2006-01-02"))
		}
		return nil
	},
}

var instrumentRemoveCmd = &cobra.Command{
	Use:   "rm TICKER",
	Short: "Stop tracking a ticker and delete its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.service.DeleteInstrument(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var instrumentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked instruments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		instruments, err := a.service.ListInstruments(cmd.Context())
		if err != nil {
			return err
		}

		if len(instruments) == 0 {
			fmt.Println("No instruments tracked")
			return nil
		}
		for _, inst := range instruments {
			price := "-"
			if inst.CurrentPrice != nil {
				price = fmt.Sprintf("%.2f", *inst.CurrentPrice)
			}
			fmt.Printf("%-10s %-30s %10s  %s\n", inst.Ticker, inst.Name, price, inst.PayoutFrequency)
		}
		return nil
	},
}

var updateForce bool

var instrumentUpdateCmd = &cobra.Command{
	Use:   "update TICKER",
	Short: "Refresh one instrument on demand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.service.UpdateInstrument(cmd.Context(), args[0], updateForce)
		if err != nil {
			return err
		}

		c := report.Completion
		fmt.Printf("Updated %s in %dms\n", report.Ticker, report.DurationMS)
		fmt.Printf("  filled: monthly=%d weekly=%d daily=%d dividends=%d\n",
			c.PricesFilled, c.WeeklyFilled, c.DailyFilled, c.DividendsFilled)
		fmt.Printf("  api calls: %d, new splits: %d\n", c.APICallsUsed, report.SplitsNew)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instrumentCmd)

	instrumentUpdateCmd.Flags().BoolVar(&updateForce, "force", false, "bypass the provider response cache")

	instrumentCmd.AddCommand(instrumentAddCmd)
	instrumentCmd.AddCommand(instrumentRemoveCmd)
	instrumentCmd.AddCommand(instrumentListCmd)
	instrumentCmd.AddCommand(instrumentUpdateCmd)
}
