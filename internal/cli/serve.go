package cli

import (
	"github.com/spf13/cobra"

	"cruise-price-tracker/internal/app"
)

var (
	serveAddr        string
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled crawler",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		opts := app.ServeOptions{
			Addr:          serveAddr,
			WithScheduler: a.Config.Scheduler.Enabled && !serveNoScheduler,
		}
		return a.Serve(cmd.Context(), opts)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Serve the API without the background crawl loop")
}
