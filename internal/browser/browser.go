// Package browser defines the browser automation capability used by the
// crawler, with a chromedp-backed live implementation and a goquery-backed
// snapshot implementation for fixed DOMs.
package browser

import "context"

// Node is a handle to one element on a page. Handles are only valid for the
// page state they were found in.
type Node interface {
	// Text returns the element's rendered text.
	Text(ctx context.Context) (string, error)
	// Visible reports whether the element is rendered with a non-empty box.
	Visible(ctx context.Context) (bool, error)
	// Click activates the element.
	Click(ctx context.Context) error
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and waits for DOM readiness.
	Navigate(ctx context.Context, url string) error
	// Content returns the current document HTML.
	Content(ctx context.Context) (string, error)
	// Find returns the elements matching a CSS selector, in document order.
	// A non-empty text keeps only elements whose text contains it.
	Find(ctx context.Context, selector, text string) ([]Node, error)
	// Scroll performs a mouse-wheel gesture of deltaY pixels.
	Scroll(ctx context.Context, deltaY int) error
	// Metric evaluates a numeric JavaScript expression.
	Metric(ctx context.Context, script string) (float64, error)
	// Close releases the tab and its browser.
	Close() error
}

// Launcher starts an isolated browser emulating a device and returns its page.
type Launcher interface {
	Launch(ctx context.Context, d Device) (Page, error)
}
