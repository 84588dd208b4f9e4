package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// taxrateCmd groups withholding tax rate subcommands
var taxrateCmd = &cobra.Command{
	Use:   "taxrate",
	Short: "Show or set the dividend withholding tax rate",
}

var taxrateGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active tax rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rate, err := a.service.GetTaxRate(cmd.Context())
		if err != nil {
			return err
		}
		if rate == nil {
			fmt.Println("No tax rate configured")
			return nil
		}
		fmt.Printf("Active tax rate: %.2f%% (since %s)\n", rate.Percent, rate.CreatedAt.Format("2006-01-02"))
		return nil
	},
}

var taxrateSetCmd = &cobra.Command{
	Use:   "set PERCENT",
	Short: "Activate a new tax rate (0-100)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("percent must be a number: %w", err)
		}

		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rate, err := a.service.SetTaxRate(cmd.Context(), percent)
		if err != nil {
			return err
		}
		fmt.Printf("Tax rate set to %.2f%%\n", rate.Percent)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(taxrateCmd)
	taxrateCmd.AddCommand(taxrateGetCmd)
	taxrateCmd.AddCommand(taxrateSetCmd)
}
