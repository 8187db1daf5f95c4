package crawl

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/browser"
)

// heightScript measures the scrollable page height.
const heightScript = `document.body.scrollHeight`

// Labels the driver looks for on the review page.
const (
	labelVisitorTab = "방문자 리뷰"
	labelNewest     = "최신순"
	labelMore       = "더보기"
	labelExpand     = "내용 더보기"
)

// Driver prepares a loaded review page for extraction: it selects the
// visitor-review tab, sorts by newest, loads more reviews and expands
// truncated ones. Every step is best effort.
type Driver struct {
	pacer       *Pacer
	smallCap    int
	smallBudget int
	budget      int
}

// NewDriver creates a Driver. Requests for at most smallCap reviews get
// smallBudget load-more iterations, larger requests get budget.
func NewDriver(p *Pacer, smallCap, smallBudget, budget int) *Driver {
	return &Driver{pacer: p, smallCap: smallCap, smallBudget: smallBudget, budget: budget}
}

// Budget returns the number of load-more iterations for a review cap.
func (d *Driver) Budget(max int) int {
	if max <= d.smallCap {
		return d.smallBudget
	}
	return d.budget
}

// Prepare runs the interaction steps in order. Failures are logged and
// never returned.
func (d *Driver) Prepare(ctx context.Context, page browser.Page, max int) {
	log := zap.L()

	if err := d.openVisitorTab(ctx, page); err != nil {
		log.Warn("crawl: visitor tab step failed", zap.Error(err))
	}
	if err := d.sortNewest(ctx, page); err != nil {
		log.Warn("crawl: sort step failed", zap.Error(err))
	}
	loaded, err := d.loadMore(ctx, page, d.Budget(max))
	if err != nil {
		log.Warn("crawl: load-more step stopped", zap.Int("iterations", loaded), zap.Error(err))
	}
	expanded := d.expandAll(ctx, page)

	log.Debug("crawl: page prepared",
		zap.Int("load_more_iterations", loaded),
		zap.Int("expanded", expanded),
	)
}

func (d *Driver) openVisitorTab(ctx context.Context, page browser.Page) error {
	tab, err := first(ctx, page, "a, span", labelVisitorTab)
	if err != nil || tab == nil {
		return err
	}
	visible, err := tab.Visible(ctx)
	if err != nil {
		return eris.Wrap(err, "crawl: visitor tab visibility")
	}
	if !visible {
		return nil
	}
	if err := tab.Click(ctx); err != nil {
		return eris.Wrap(err, "crawl: click visitor tab")
	}
	return d.pacer.Settle(ctx, SettleTab)
}

func (d *Driver) sortNewest(ctx context.Context, page browser.Page) error {
	btn, err := first(ctx, page, "a, span, button", labelNewest)
	if err != nil || btn == nil {
		return err
	}
	if err := btn.Click(ctx); err != nil {
		return eris.Wrap(err, "crawl: click sort")
	}
	return d.pacer.Settle(ctx, SettleTab)
}

// loadMore clicks the load-more control, or scrolls when it is not visible,
// until the page stops growing or the budget runs out. It returns the number
// of completed iterations.
func (d *Driver) loadMore(ctx context.Context, page browser.Page, budget int) (int, error) {
	for i := 0; i < budget; i++ {
		before, err := page.Metric(ctx, heightScript)
		if err != nil {
			return i, err
		}

		more, err := first(ctx, page, "a", labelMore)
		if err != nil {
			return i, err
		}
		visible := false
		if more != nil {
			if visible, err = more.Visible(ctx); err != nil {
				return i, eris.Wrap(err, "crawl: load-more visibility")
			}
		}

		if visible {
			if err := more.Click(ctx); err != nil {
				return i, eris.Wrap(err, "crawl: click load-more")
			}
			if err := d.pacer.Settle(ctx, SettleMore); err != nil {
				return i, err
			}
		} else {
			if err := page.Scroll(ctx, d.pacer.ScrollDelta()); err != nil {
				return i, err
			}
			if err := d.pacer.Settle(ctx, SettleScroll); err != nil {
				return i, err
			}
		}

		after, err := page.Metric(ctx, heightScript)
		if err != nil {
			return i + 1, err
		}
		if after == before {
			return i + 1, nil
		}
	}
	return budget, nil
}

// expandAll clicks every visible expand control and returns how many were
// clicked. Per-control errors are skipped.
func (d *Driver) expandAll(ctx context.Context, page browser.Page) int {
	btns, err := page.Find(ctx, "span, a", labelExpand)
	if err != nil {
		zap.L().Warn("crawl: expand step failed", zap.Error(err))
		return 0
	}
	clicked := 0
	for _, b := range btns {
		visible, err := b.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if err := b.Click(ctx); err != nil {
			zap.L().Debug("crawl: expand click failed", zap.Error(err))
			continue
		}
		clicked++
		if err := d.pacer.Settle(ctx, SettleExpand); err != nil {
			return clicked
		}
	}
	return clicked
}

// first returns the first element matching selector and text, or nil.
func first(ctx context.Context, page browser.Page, selector, text string) (browser.Node, error) {
	nodes, err := page.Find(ctx, selector, text)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}
