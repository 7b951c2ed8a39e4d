package cli

import (
	"github.com/spf13/cobra"

	"dynamic-pricing/internal/app"
)

var (
	seedCustomers int
	seedDays      int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic spend and transaction data",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SeedOptions{
			Customers: seedCustomers,
			Days:      seedDays,
		}
		return getApp().Seed(cmd.Context(), opts)
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCustomers, "customers", 25, "Number of synthetic customers")
	seedCmd.Flags().IntVar(&seedDays, "days", 7, "Days of marketing spend to generate")
}
