package browser

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Snapshot is a Page over a fixed HTML document. It never touches the
// network: Navigate only records the URL, Scroll and Click only record the
// gesture. It backs offline extraction of saved pages and tests.
type Snapshot struct {
	doc *goquery.Document

	mu      sync.Mutex
	url     string
	scrolls int
	clicks  []string
	closes  int
	height  float64
}

// NewSnapshot parses html into a Snapshot page.
func NewSnapshot(html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse snapshot")
	}
	return &Snapshot{
		doc:    doc,
		height: float64(doc.Find("*").Length()),
	}, nil
}

func (s *Snapshot) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	return nil
}

func (s *Snapshot) Content(_ context.Context) (string, error) {
	html, err := s.doc.Html()
	if err != nil {
		return "", eris.Wrap(err, "browser: render snapshot")
	}
	return html, nil
}

func (s *Snapshot) Find(_ context.Context, selector, text string) ([]Node, error) {
	var nodes []Node
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if text != "" && !strings.Contains(sel.Text(), text) {
			return
		}
		nodes = append(nodes, &snapshotNode{page: s, sel: sel})
	})
	return nodes, nil
}

func (s *Snapshot) Scroll(_ context.Context, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls++
	return nil
}

// Metric returns the document's element count for any script; a snapshot
// never grows.
func (s *Snapshot) Metric(_ context.Context, _ string) (float64, error) {
	return s.height, nil
}

func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// URL returns the last navigated URL.
func (s *Snapshot) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Scrolls returns the number of scroll gestures performed.
func (s *Snapshot) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}

// Clicks returns the text of every clicked element, in order.
func (s *Snapshot) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Closes returns how many times Close was called.
func (s *Snapshot) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type snapshotNode struct {
	page *Snapshot
	sel  *goquery.Selection
}

func (n *snapshotNode) Text(_ context.Context) (string, error) {
	return innerText(n.sel), nil
}

func (n *snapshotNode) Visible(_ context.Context) (bool, error) {
	for sel := n.sel; sel.Length() > 0; sel = sel.Parent() {
		if hidden(sel) {
			return false, nil
		}
	}
	return true, nil
}

func (n *snapshotNode) Click(_ context.Context) error {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()
	n.page.clicks = append(n.page.clicks, strings.TrimSpace(innerText(n.sel)))
	return nil
}

// hidden reports whether sel itself is not rendered.
func hidden(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	style, _ := sel.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// innerText approximates the rendered text of sel: script and style content
// and hidden descendants are skipped, <br> becomes a newline.
func innerText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			b.WriteString(c.Text())
		case "#comment", "script", "style", "noscript", "template":
		case "br":
			b.WriteString("\n")
		default:
			if !hidden(c) {
				b.WriteString(innerText(c))
			}
		}
	})
	return b.String()
}

// SnapshotLauncher launches a fresh Snapshot of the same HTML per session and
// keeps every page it handed out.
type SnapshotLauncher struct {
	HTML string

	mu      sync.Mutex
	devices []Device
	pages   []*Snapshot
}

// Launch parses the launcher's HTML into a new Snapshot page.
func (l *SnapshotLauncher) Launch(_ context.Context, d Device) (Page, error) {
	p, err := NewSnapshot(l.HTML)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.devices = append(l.devices, d)
	l.pages = append(l.pages, p)
	return p, nil
}

// Pages returns every page launched so far.
func (l *SnapshotLauncher) Pages() []*Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Snapshot(nil), l.pages...)
}

// Devices returns the device each launch emulated, in launch order.
func (l *SnapshotLauncher) Devices() []Device {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Device(nil), l.devices...)
}
