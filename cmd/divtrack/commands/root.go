package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "divtrack",
	Short: "ETF dividend and price tracker",
	Long: `divtrack - ETF dividend and price analytics tracker

Quota-governed multi-provider ingestion, split-aware normalization,
gap-filling history completion and dividend growth analytics.

Examples:
  divtrack serve
  divtrack instrument add SCHD
  divtrack jobs run nightly_reconciliation
  divtrack status`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
