package crawl

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/redflag-cli/internal/browser"
	"github.com/sells-group/redflag-cli/internal/model"
)

var reviewTexts = []string{
	"사장님이 너무 친절하시고 국물이 진해서 좋았습니다",
	"음식이 조금 늦게 나왔지만 맛은 괜찮았어요 다음에 또 올게요",
}

// reviewPage renders a minimal visitor-review page.
func reviewPage(reviews ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body>
<a href="#visitor">방문자 리뷰</a>
<a href="#sort">최신순</a>
<ul>`)
	for _, r := range reviews {
		fmt.Fprintf(&b, "<li><span>%s</span><span class=\"expand\">내용 더보기</span></li>\n", html.EscapeString(r))
	}
	b.WriteString(`</ul>
<a href="#more">더보기</a>
</body></html>`)
	return b.String()
}

const blockedPage = `<html><body><div class="notice">이용이 제한되었습니다</div></body></html>`

// noSleep is a pacer sleep that records requested durations without waiting.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.waits = append(n.waits, d)
	n.mu.Unlock()
	return ctx.Err()
}

func (n *noSleep) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.waits)
}

func testPacer() (*Pacer, *noSleep) {
	ns := &noSleep{}
	return NewPacer(browser.NewRand(7), ns.sleep), ns
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NavTimeout = time.Second
	return cfg
}

// stubResolver maps URLs to place ids; unknown URLs are not found.
type stubResolver struct {
	ids map[string]model.PlaceID
}

func (r stubResolver) Resolve(_ context.Context, rawURL string) (model.PlaceID, error) {
	if id, ok := r.ids[rawURL]; ok {
		return id, nil
	}
	return "", &model.NotFoundError{URL: rawURL}
}

// funcLauncher adapts a function to browser.Launcher.
type funcLauncher func(ctx context.Context, d browser.Device) (browser.Page, error)

func (f funcLauncher) Launch(ctx context.Context, d browser.Device) (browser.Page, error) {
	return f(ctx, d)
}

// scriptedPage wraps a snapshot and lets tests override individual calls.
type scriptedPage struct {
	*browser.Snapshot

	navigate func(ctx context.Context, url string) error
	content  func(ctx context.Context) (string, error)
	find     func(ctx context.Context, selector, text string) ([]browser.Node, error)
	metric   func(ctx context.Context, script string) (float64, error)
	closeErr error
	closes   atomic.Int32
}

func newScriptedPage(t *testing.T, doc string) *scriptedPage {
	t.Helper()
	s, err := browser.NewSnapshot(doc)
	require.NoError(t, err)
	return &scriptedPage{Snapshot: s}
}

func (p *scriptedPage) Navigate(ctx context.Context, url string) error {
	if p.navigate != nil {
		return p.navigate(ctx, url)
	}
	return p.Snapshot.Navigate(ctx, url)
}

func (p *scriptedPage) Content(ctx context.Context) (string, error) {
	if p.content != nil {
		return p.content(ctx)
	}
	return p.Snapshot.Content(ctx)
}

func (p *scriptedPage) Find(ctx context.Context, selector, text string) ([]browser.Node, error) {
	if p.find != nil {
		return p.find(ctx, selector, text)
	}
	return p.Snapshot.Find(ctx, selector, text)
}

func (p *scriptedPage) Metric(ctx context.Context, script string) (float64, error) {
	if p.metric != nil {
		return p.metric(ctx, script)
	}
	return p.Snapshot.Metric(ctx, script)
}

func (p *scriptedPage) Close() error {
	p.closes.Add(1)
	return p.closeErr
}

func pageLauncher(p browser.Page) funcLauncher {
	return func(context.Context, browser.Device) (browser.Page, error) { return p, nil }
}

// growingHeight returns a metric that increases on every call.
func growingHeight() func(context.Context, string) (float64, error) {
	var h atomic.Int64
	return func(context.Context, string) (float64, error) {
		return float64(h.Add(100)), nil
	}
}

var errBoom = errors.New("boom")
