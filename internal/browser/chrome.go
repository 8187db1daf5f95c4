package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// ChromeOptions configures the chromedp launcher.
type ChromeOptions struct {
	Headless bool
	ExecPath string
	Locale   string
	Timezone string
}

// DefaultChromeOptions returns the options used for Korean listing pages.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless: true,
		Locale:   "ko-KR",
		Timezone: "Asia/Seoul",
	}
}

// ChromeLauncher starts a fresh Chrome process per session via chromedp.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher creates a ChromeLauncher.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	return &ChromeLauncher{opts: opts}
}

// buildAllocatorOptions creates the exec allocator flags for one device.
func (l *ChromeLauncher) buildAllocatorOptions(d Device) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("lang", l.opts.Locale),
		chromedp.UserAgent(d.UserAgent),
		chromedp.WindowSize(int(d.Width), int(d.Height)),
	)
	if l.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	return opts
}

func (l *ChromeLauncher) acceptLanguage() string {
	lang := l.opts.Locale
	if base, _, ok := strings.Cut(lang, "-"); ok {
		return fmt.Sprintf("%s,%s;q=0.9", lang, base)
	}
	return lang
}

// Launch starts Chrome with d's emulation settings. The browser lives until
// the returned Page is closed; ctx only bounds startup.
func (l *ChromeLauncher) Launch(ctx context.Context, d Device) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.buildAllocatorOptions(d)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	p := &chromePage{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		device:      d,
	}

	// The first Run allocates the browser; it must use the tab context itself
	// so the process is not killed when a derived deadline expires.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = p.Close()
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	if err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return l.emulate(ctx, d)
	})); err != nil {
		_ = p.Close()
		return nil, eris.Wrap(err, "browser: launch chrome")
	}
	return p, nil
}

func (l *ChromeLauncher) emulate(ctx context.Context, d Device) error {
	if err := emulation.SetDeviceMetricsOverride(d.Width, d.Height, d.ScaleFactor, d.Mobile).Do(ctx); err != nil {
		return eris.Wrap(err, "browser: device metrics")
	}
	ua := emulation.SetUserAgentOverride(d.UserAgent).WithAcceptLanguage(l.acceptLanguage())
	if d.Platform != "" {
		ua = ua.WithPlatform(d.Platform)
	}
	if err := ua.Do(ctx); err != nil {
		return eris.Wrap(err, "browser: user agent override")
	}
	if l.opts.Locale != "" {
		if err := emulation.SetLocaleOverride().WithLocale(l.opts.Locale).Do(ctx); err != nil {
			return eris.Wrap(err, "browser: locale override")
		}
	}
	if l.opts.Timezone != "" {
		if err := emulation.SetTimezoneOverride(l.opts.Timezone).Do(ctx); err != nil {
			return eris.Wrap(err, "browser: timezone override")
		}
	}
	if d.Touch {
		if err := emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(5).Do(ctx); err != nil {
			return eris.Wrap(err, "browser: touch emulation")
		}
	}
	if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
		return eris.Wrap(err, "browser: stealth script")
	}
	return nil
}

const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined, configurable: true});`

// nodeAttr tags elements returned by Find so later calls can address them.
const nodeAttr = "data-rf-node"

const findScript = `(function(sel, text, gen) {
	const out = [];
	let i = 0;
	document.querySelectorAll(sel).forEach(function(el) {
		if (text && !(el.textContent || '').includes(text)) return;
		const id = gen + '-' + (i++);
		el.setAttribute('` + nodeAttr + `', id);
		out.push(id);
	});
	return out;
})(%s, %s, %s)`

const nodeScript = `(function(id) {
	const el = document.querySelector('[` + nodeAttr + `="' + id + '"]');
	if (!el) throw new Error('stale element ' + id);
	%s
})(%s)`

const (
	textBody    = `return el.innerText || '';`
	visibleBody = `if (!el.isConnected) return false;
	const r = el.getBoundingClientRect();
	const s = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden';`
	clickBody = `el.scrollIntoView({block: 'center'}); el.click(); return true;`
)

type chromePage struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	device      Device
	gen         atomic.Int64
}

// run executes actions on the tab, honoring ctx's deadline and cancellation
// without tying the tab's lifetime to ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "browser: read content")
	}
	return html, nil
}

func (p *chromePage) Find(ctx context.Context, selector, text string) ([]Node, error) {
	gen := fmt.Sprintf("g%d", p.gen.Add(1))
	script := fmt.Sprintf(findScript, jsonEncode(selector), jsonEncode(text), jsonEncode(gen))

	var ids []string
	if err := p.run(ctx, chromedp.Evaluate(script, &ids, returnByValue)); err != nil {
		return nil, eris.Wrapf(err, "browser: find %q", selector)
	}

	nodes := make([]Node, len(ids))
	for i, id := range ids {
		nodes[i] = &chromeNode{page: p, id: id}
	}
	return nodes, nil
}

func (p *chromePage) Scroll(ctx context.Context, deltaY int) error {
	x := float64(p.device.Width) / 2
	y := float64(p.device.Height) / 2
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(float64(deltaY)).
			Do(ctx)
	}))
	if err != nil {
		return eris.Wrap(err, "browser: scroll")
	}
	return nil
}

func (p *chromePage) Metric(ctx context.Context, script string) (float64, error) {
	var v float64
	if err := p.run(ctx, chromedp.Evaluate(script, &v)); err != nil {
		return 0, eris.Wrap(err, "browser: evaluate metric")
	}
	return v, nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancelTab()
	p.cancelAlloc()
	if err != nil {
		return eris.Wrap(err, "browser: close")
	}
	return nil
}

type chromeNode struct {
	page *chromePage
	id   string
}

func (n *chromeNode) eval(ctx context.Context, body string, out any) error {
	script := fmt.Sprintf(nodeScript, body, jsonEncode(n.id))
	return n.page.run(ctx, chromedp.Evaluate(script, out, returnByValue))
}

func (n *chromeNode) Text(ctx context.Context) (string, error) {
	var s string
	if err := n.eval(ctx, textBody, &s); err != nil {
		return "", eris.Wrap(err, "browser: read text")
	}
	return s, nil
}

func (n *chromeNode) Visible(ctx context.Context) (bool, error) {
	var v bool
	if err := n.eval(ctx, visibleBody, &v); err != nil {
		return false, eris.Wrap(err, "browser: check visibility")
	}
	return v, nil
}

func (n *chromeNode) Click(ctx context.Context) error {
	var ok bool
	if err := n.eval(ctx, clickBody, &ok); err != nil {
		return eris.Wrap(err, "browser: click")
	}
	return nil
}

func returnByValue(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithSilent(true)
}

func jsonEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
