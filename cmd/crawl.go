package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/report"
)

var (
	crawlMax      int
	crawlFormat   string
	crawlSnapshot string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>...",
	Short: "Extract genuine visitor reviews for one or more listings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("crawl"); err != nil {
			return err
		}
		format, err := report.ParseFormat(crawlFormat)
		if err != nil {
			return err
		}

		c, err := initCrawler(cfg, crawlSnapshot)
		if err != nil {
			return err
		}
		return runReviews(cmd.Context(), cmd.OutOrStdout(), c, nil, args, crawlMax, format)
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMax, "max", 0, "maximum reviews per place (default from config)")
	crawlCmd.Flags().StringVar(&crawlFormat, "format", "json", "output format: json, yaml or markdown")
	crawlCmd.Flags().StringVar(&crawlSnapshot, "snapshot", "", "extract from a saved review page instead of a live browser")
	rootCmd.AddCommand(crawlCmd)
}

// runReviews crawls urls and writes one report per target that succeeded.
// With a non-nil analyzer each non-empty review set is also analyzed; an
// analysis failure is reported in place of the flags and does not fail the
// run.
func runReviews(ctx context.Context, out io.Writer, c reviewCrawler, a flagger, urls []string, max int, format report.Format) error {
	outcomes := c.CrawlAll(ctx, urls, max)

	reports := make([]report.Report, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			zap.L().Error("crawl failed", zap.String("url", o.URL), zap.Error(o.Err))
			continue
		}

		r := report.FromResult(o.Result)
		if o.Result.Empty() {
			zap.L().Warn("no reviews extracted", zap.String("url", o.URL), zap.String("place_id", o.Result.PlaceID.String()))
		}
		if a != nil {
			flags, err := a.Analyze(ctx, o.Result.Reviews)
			if err != nil {
				zap.L().Error("analysis failed", zap.String("url", o.URL), zap.Error(err))
				r.SetAnalysisError(err)
			} else {
				r.SetFlags(flags)
			}
		}
		reports = append(reports, r)
	}

	var err error
	if len(urls) == 1 && len(reports) == 1 {
		err = report.Write(out, format, reports[0])
	} else if len(reports) > 0 {
		err = report.WriteAll(out, format, reports)
	}
	if err != nil {
		return eris.Wrap(err, "write report")
	}

	if failed > 0 {
		return eris.Errorf("%d of %d targets failed", failed, len(urls))
	}
	return nil
}
