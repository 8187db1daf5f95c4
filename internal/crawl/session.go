package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/browser"
	"github.com/sells-group/redflag-cli/internal/model"
)

// Session is one exclusively owned browser page loaded with a place's review
// page. It must be released with Close.
type Session struct {
	Page   browser.Page
	Device browser.Device
	URL    string

	once     sync.Once
	closeErr error
}

// DefaultNavTimeout bounds navigation when SessionConfig.NavTimeout is unset.
const DefaultNavTimeout = 30 * time.Second

// SessionConfig controls how a session is opened.
type SessionConfig struct {
	URLTemplate  string
	NavTimeout   time.Duration
	BlockMarkers []string
	Devices      []browser.Device
}

// ReviewURL returns the canonical visitor-review URL for id.
func (c SessionConfig) ReviewURL(id model.PlaceID) string {
	return fmt.Sprintf(c.URLTemplate, id)
}

// OpenSession launches a browser with a randomly chosen device profile,
// navigates to the place's review page, waits for it to settle and checks
// for an access-restriction notice. Any failure after launch releases the
// session before returning.
func OpenSession(ctx context.Context, l browser.Launcher, p *Pacer, rng *browser.Rand, cfg SessionConfig, id model.PlaceID) (*Session, error) {
	devices := cfg.Devices
	if len(devices) == 0 {
		devices = browser.DefaultDevices
	}
	device := browser.PickDevice(rng, devices)
	target := cfg.ReviewURL(id)

	log := zap.L().With(
		zap.String("place_id", id.String()),
		zap.String("device", device.Name),
	)

	page, err := l.Launch(ctx, device)
	if err != nil {
		return nil, &model.SessionError{Op: "launch", Err: err}
	}
	s := &Session{Page: page, Device: device, URL: target}

	timeout := cfg.NavTimeout
	if timeout <= 0 {
		timeout = DefaultNavTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	err = page.Navigate(navCtx, target)
	cancel()
	if err != nil {
		s.release(log)
		return nil, &model.NetworkError{URL: target, Err: err}
	}

	if err := p.Settle(ctx, SettleInitial); err != nil {
		s.release(log)
		return nil, &model.SessionError{Op: "settle", Err: err}
	}

	html, err := page.Content(ctx)
	if err != nil {
		s.release(log)
		return nil, &model.SessionError{Op: "read content", Err: err}
	}
	if marker, blocked := DetectBlock(html, cfg.BlockMarkers); blocked {
		log.Warn("crawl: access restricted", zap.String("marker", marker))
		s.release(log)
		return nil, &model.BlockedError{URL: target, Marker: marker}
	}

	log.Debug("crawl: session opened", zap.String("url", target))
	return s, nil
}

// Close releases the browser. It is safe to call more than once; only the
// first call tears anything down.
func (s *Session) Close() error {
	s.once.Do(func() {
		if err := s.Page.Close(); err != nil {
			s.closeErr = &model.SessionError{Op: "close", Err: err}
		}
	})
	return s.closeErr
}

func (s *Session) release(log *zap.Logger) {
	if err := s.Close(); err != nil {
		log.Warn("crawl: release session", zap.Error(err))
	}
}
