package cli

import (
	"github.com/spf13/cobra"

	"cruise-price-tracker/internal/app"
)

var crawlDryRun bool

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Scrape the booking page once and store the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Crawl(cmd.Context(), app.CrawlOptions{DryRun: crawlDryRun})
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlDryRun, "dry-run", false, "Print the scraped snapshot without storing it")
}
