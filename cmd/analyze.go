package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/redflag-cli/internal/report"
)

var (
	analyzeMax      int
	analyzeFormat   string
	analyzeSnapshot string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>...",
	Short: "Crawl reviews and report serious recurring complaints",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		format, err := report.ParseFormat(analyzeFormat)
		if err != nil {
			return err
		}

		c, err := initCrawler(cfg, analyzeSnapshot)
		if err != nil {
			return err
		}
		return runReviews(cmd.Context(), cmd.OutOrStdout(), c, initAnalyzer(cfg), args, analyzeMax, format)
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeMax, "max", 0, "maximum reviews per place (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json, yaml or markdown")
	analyzeCmd.Flags().StringVar(&analyzeSnapshot, "snapshot", "", "extract from a saved review page instead of a live browser")
	rootCmd.AddCommand(analyzeCmd)
}
