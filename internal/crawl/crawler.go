// Package crawl drives a browser session over a place's review page and
// assembles the extracted reviews.
package crawl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/redflag-cli/internal/browser"
	"github.com/sells-group/redflag-cli/internal/classify"
	"github.com/sells-group/redflag-cli/internal/model"
)

// Resolver maps a listing URL to its place id.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (model.PlaceID, error)
}

// Config holds crawl settings.
type Config struct {
	MaxReviews   int
	Concurrency  int
	NavTimeout   time.Duration
	URLTemplate  string
	BlockMarkers []string
	SmallCap     int
	SmallBudget  int
	Budget       int
	Devices      []browser.Device
}

// DefaultConfig returns the settings for the Naver Place mobile review page.
func DefaultConfig() Config {
	return Config{
		MaxReviews:   50,
		Concurrency:  2,
		NavTimeout:   DefaultNavTimeout,
		URLTemplate:  "https://m.place.naver.com/place/%s/review/visitor",
		BlockMarkers: DefaultBlockMarkers,
		SmallCap:     10,
		SmallBudget:  2,
		Budget:       5,
		Devices:      browser.DefaultDevices,
	}
}

// Result is the outcome of one successful crawl.
type Result struct {
	PlaceID model.PlaceID  `json:"place_id" yaml:"place_id"`
	URL     string         `json:"url" yaml:"url"`
	Device  string         `json:"device" yaml:"device"`
	Reviews []model.Review `json:"reviews" yaml:"reviews"`
	Stats   classify.Stats `json:"stats" yaml:"stats"`
}

// Empty reports whether the page yielded no reviews. An empty result is a
// valid outcome, not an error.
func (r *Result) Empty() bool {
	return len(r.Reviews) == 0
}

// Outcome pairs a target URL with its crawl result or error.
type Outcome struct {
	URL    string
	Result *Result
	Err    error
}

// Crawler resolves listing URLs and extracts their reviews.
type Crawler struct {
	resolver Resolver
	launcher browser.Launcher
	cfg      Config
	pipeline *classify.Pipeline
	rng      *browser.Rand
	pacer    *Pacer
	limiter  *rate.Limiter
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLimiter gates session opening on l.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Crawler) { c.limiter = l }
}

// WithRand sets the random source for device choice and pacing.
func WithRand(rng *browser.Rand) Option {
	return func(c *Crawler) { c.rng = rng }
}

// WithPacer overrides the settle pacer.
func WithPacer(p *Pacer) Option {
	return func(c *Crawler) { c.pacer = p }
}

// WithPipeline overrides the text classification pipeline.
func WithPipeline(p *classify.Pipeline) Option {
	return func(c *Crawler) { c.pipeline = p }
}

// New creates a Crawler.
func New(r Resolver, l browser.Launcher, cfg Config, opts ...Option) *Crawler {
	c := &Crawler{
		resolver: r,
		launcher: l,
		cfg:      cfg,
	}
	for _, o := range opts {
		o(c)
	}
	if c.rng == nil {
		c.rng = browser.NewRand(0)
	}
	if c.pacer == nil {
		c.pacer = NewPacer(c.rng, nil)
	}
	if c.pipeline == nil {
		c.pipeline = classify.New()
	}
	if c.cfg.MaxReviews <= 0 {
		c.cfg.MaxReviews = DefaultConfig().MaxReviews
	}
	if c.cfg.Concurrency <= 0 {
		c.cfg.Concurrency = 1
	}
	return c
}

// Crawl resolves rawURL and extracts up to max reviews. max <= 0 uses the
// configured default.
func (c *Crawler) Crawl(ctx context.Context, rawURL string, max int) (*Result, error) {
	id, err := c.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c.CrawlPlace(ctx, id, max)
}

// CrawlPlace extracts up to max reviews for an already resolved place.
func (c *Crawler) CrawlPlace(ctx context.Context, id model.PlaceID, max int) (*Result, error) {
	if max <= 0 {
		max = c.cfg.MaxReviews
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "crawl: wait for session slot")
		}
	}

	start := time.Now()
	sess, err := OpenSession(ctx, c.launcher, c.pacer, c.rng, SessionConfig{
		URLTemplate:  c.cfg.URLTemplate,
		NavTimeout:   c.cfg.NavTimeout,
		BlockMarkers: c.cfg.BlockMarkers,
		Devices:      c.cfg.Devices,
	}, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			zap.L().Warn("crawl: close session", zap.String("place_id", id.String()), zap.Error(err))
		}
	}()

	NewDriver(c.pacer, c.cfg.SmallCap, c.cfg.SmallBudget, c.cfg.Budget).Prepare(ctx, sess.Page, max)

	reviews, stats, err := c.pipeline.Extract(ctx, sess.Page, max)
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: extract reviews for %s", id)
	}

	zap.L().Info("crawl: place complete",
		zap.String("place_id", id.String()),
		zap.String("device", sess.Device.Name),
		zap.Int("reviews", len(reviews)),
		zap.Int("max", max),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		PlaceID: id,
		URL:     sess.URL,
		Device:  sess.Device.Name,
		Reviews: reviews,
		Stats:   stats,
	}, nil
}

// CrawlAll crawls each URL in its own session, at most Concurrency at a
// time. Outcomes are returned in input order; one target's failure does not
// stop the others.
func (c *Crawler) CrawlAll(ctx context.Context, urls []string, max int) []Outcome {
	out := make([]Outcome, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			res, err := c.Crawl(gctx, u, max)
			out[i] = Outcome{URL: u, Result: res, Err: err}
			if err != nil {
				zap.L().Warn("crawl: target failed", zap.String("url", u), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
