package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/redflag-cli/internal/analyze"
	"github.com/sells-group/redflag-cli/internal/browser"
	"github.com/sells-group/redflag-cli/internal/config"
	"github.com/sells-group/redflag-cli/internal/crawl"
	"github.com/sells-group/redflag-cli/internal/model"
	"github.com/sells-group/redflag-cli/internal/placeid"
	"github.com/sells-group/redflag-cli/internal/resilience"
	anthropicpkg "github.com/sells-group/redflag-cli/pkg/anthropic"
)

// reviewCrawler is the crawl surface used by the commands and the server.
type reviewCrawler interface {
	Crawl(ctx context.Context, rawURL string, max int) (*crawl.Result, error)
	CrawlAll(ctx context.Context, urls []string, max int) []crawl.Outcome
}

// flagger produces red flags from reviews.
type flagger interface {
	Analyze(ctx context.Context, reviews []model.Review) ([]model.Flag, error)
}

// crawlConfig maps the crawl section of the configuration.
func crawlConfig(c config.CrawlConfig) crawl.Config {
	cc := crawl.DefaultConfig()
	cc.MaxReviews = c.MaxReviews
	cc.Concurrency = c.Concurrency
	cc.NavTimeout = time.Duration(c.NavTimeoutSecs) * time.Second
	if c.ReviewURLTemplate != "" {
		cc.URLTemplate = c.ReviewURLTemplate
	}
	if len(c.BlockMarkers) > 0 {
		cc.BlockMarkers = c.BlockMarkers
	}
	if c.SmallCap > 0 {
		cc.SmallCap = c.SmallCap
	}
	if c.SmallBudget > 0 {
		cc.SmallBudget = c.SmallBudget
	}
	if c.Budget > 0 {
		cc.Budget = c.Budget
	}
	return cc
}

// initCrawler builds the crawler. A non-empty snapshotPath switches to
// offline mode: the saved HTML stands in for the live page, ids are taken
// from the arguments without network access, and settle pauses are skipped.
func initCrawler(c *config.Config, snapshotPath string) (*crawl.Crawler, error) {
	rng := browser.NewRand(c.Crawl.Seed)
	opts := []crawl.Option{crawl.WithRand(rng)}

	if c.Crawl.SessionsPerMinute > 0 {
		opts = append(opts, crawl.WithLimiter(rate.NewLimiter(rate.Limit(c.Crawl.SessionsPerMinute/60), 1)))
	}

	if snapshotPath != "" {
		html, err := os.ReadFile(snapshotPath)
		if err != nil {
			return nil, eris.Wrapf(err, "read snapshot %s", snapshotPath)
		}
		opts = append(opts, crawl.WithPacer(crawl.NewPacer(rng, func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		})))
		zap.L().Info("offline mode", zap.String("snapshot", snapshotPath))
		return crawl.New(placeid.Offline{}, &browser.SnapshotLauncher{HTML: string(html)}, crawlConfig(c.Crawl), opts...), nil
	}

	resolver := placeid.NewResolver(
		time.Duration(c.Crawl.ResolveTimeoutSecs)*time.Second,
		placeid.WithRand(rng),
	)
	launcher := browser.NewChromeLauncher(browser.ChromeOptions{
		Headless: c.Browser.Headless,
		ExecPath: c.Browser.ExecPath,
		Locale:   c.Browser.Locale,
		Timezone: c.Browser.Timezone,
	})
	return crawl.New(resolver, launcher, crawlConfig(c.Crawl), opts...), nil
}

// initAnalyzer builds the analyzer, or returns nil when no API key is set.
func initAnalyzer(c *config.Config) *analyze.Analyzer {
	if c.Anthropic.Key == "" {
		return nil
	}
	retryCfg, cbCfg := resilience.FromAnalysisConfig(c.Analysis)
	client := anthropicpkg.NewClient(c.Anthropic.Key)
	return analyze.New(client, c.Anthropic.Model, c.Anthropic.MaxTokens,
		analyze.WithRetry(retryCfg),
		analyze.WithBreaker(resilience.NewCircuitBreaker(cbCfg)),
		analyze.WithTimeout(time.Duration(c.Analysis.TimeoutSecs)*time.Second),
	)
}
