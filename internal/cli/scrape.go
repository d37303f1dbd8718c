package cli

import (
	"github.com/spf13/cobra"

	"github.com/hectronix2005/Mejor-Inversion/internal/app"
)

var (
	scrapeDryRun  bool
	scrapeJSON    bool
	scrapeVerbose bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a single collection pass over all configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScrapeOptions{
			DryRun:  scrapeDryRun,
			AsJSON:  scrapeJSON,
			Verbose: scrapeVerbose,
		}
		return getApp().Scrape(cmd.Context(), opts)
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "Compute the snapshot without persisting it")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "Print the run report as JSON")
	scrapeCmd.Flags().BoolVarP(&scrapeVerbose, "verbose", "v", false, "Print per-source results and warnings")
}
