package cli

import (
	"github.com/spf13/cobra"

	"aemo-price-feed/internal/app"
)

var (
	spotRegions []string
)

var spotCmd = &cobra.Command{
	Use:   "spot",
	Short: "Print the current dispatch spot price",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SpotOptions{
			Regions: spotRegions,
		}

		return getApp().Spot(cmd.Context(), opts)
	},
}

func init() {
	spotCmd.Flags().StringSliceVar(&spotRegions, "region", nil, "Region codes to display (defaults to config)")
}
