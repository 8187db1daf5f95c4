package classify

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/browser"
	"github.com/sells-group/redflag-cli/internal/model"
)

// TextSelector matches the text-bearing elements considered for reviews.
const TextSelector = "span, div, a"

// Stats summarizes one traversal.
type Stats struct {
	Nodes    int            `json:"nodes" yaml:"nodes"`
	Hidden   int            `json:"hidden" yaml:"hidden"`
	Errors   int            `json:"errors" yaml:"errors"`
	Accepted int            `json:"accepted" yaml:"accepted"`
	Merged   int            `json:"merged" yaml:"merged"`
	Rejected map[string]int `json:"rejected" yaml:"rejected"`
}

func (s *Stats) reject(reason string) {
	if s.Rejected == nil {
		s.Rejected = make(map[string]int)
	}
	s.Rejected[reason]++
}

// Pipeline classifies page text into reviews.
type Pipeline struct {
	selector string
	rules    func() []Rule
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSelector overrides the element selector.
func WithSelector(sel string) Option {
	return func(p *Pipeline) { p.selector = sel }
}

// WithRules overrides the rule chain factory. It is called once per Extract.
func WithRules(fn func() []Rule) Option {
	return func(p *Pipeline) { p.rules = fn }
}

// New creates a Pipeline with the default selector and rules.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		selector: TextSelector,
		rules:    DefaultRules,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Extract walks the page's text nodes in document order and returns at most
// limit reviews ordered by id. Per-node failures are logged and skipped.
func (p *Pipeline) Extract(ctx context.Context, page browser.Page, limit int) ([]model.Review, Stats, error) {
	var stats Stats
	if limit <= 0 {
		return []model.Review{}, stats, nil
	}

	nodes, err := page.Find(ctx, p.selector, "")
	if err != nil {
		return nil, stats, eris.Wrap(err, "classify: enumerate text nodes")
	}

	rules := p.rules()
	var dedup Deduper

	for _, n := range nodes {
		if dedup.Len() >= limit {
			break
		}
		stats.Nodes++

		visible, err := n.Visible(ctx)
		if err != nil {
			stats.Errors++
			zap.L().Debug("classify: visibility check failed", zap.Error(err))
			continue
		}
		if !visible {
			stats.Hidden++
			continue
		}

		raw, err := n.Text(ctx)
		if err != nil {
			stats.Errors++
			zap.L().Debug("classify: read text failed", zap.Error(err))
			continue
		}

		text := Normalize(raw)
		if reason := Classify(rules, text); reason != "" {
			stats.reject(reason)
			continue
		}

		outcome, id := dedup.Offer(text)
		switch outcome {
		case Accepted:
			stats.Accepted++
			zap.L().Debug("classify: review accepted",
				zap.Int("id", id),
				zap.String("preview", preview(text, 30)),
			)
		case Merged:
			stats.Merged++
		default:
			stats.reject(outcome.String())
		}
	}

	zap.L().Info("classify: extraction complete",
		zap.Int("reviews", dedup.Len()),
		zap.Int("nodes", stats.Nodes),
		zap.Int("hidden", stats.Hidden),
		zap.Int("errors", stats.Errors),
		zap.Int("merged", stats.Merged),
		zap.Any("rejected", stats.Rejected),
	)

	return dedup.Reviews(), stats, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
