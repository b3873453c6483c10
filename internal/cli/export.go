package cli

import (
	"github.com/spf13/cobra"

	"cruise-price-tracker/internal/app"
)

var (
	exportWindow  string
	exportLimit   int
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the price chart series as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Window:  exportWindow,
			Limit:   exportLimit,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportWindow, "window", "hours", "Aggregation window: hours, days or months")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Maximum snapshots read before bucketing (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
