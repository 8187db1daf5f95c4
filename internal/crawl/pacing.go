package crawl

import (
	"context"
	"time"

	"github.com/sells-group/redflag-cli/internal/browser"
)

// Span is a closed range of settle durations.
type Span struct {
	Min time.Duration
	Max time.Duration
}

// Settle pauses between page interactions.
var (
	SettleInitial = Span{3 * time.Second, 5 * time.Second}
	SettleTab     = Span{1 * time.Second, 2 * time.Second}
	SettleMore    = Span{2 * time.Second, 3 * time.Second}
	SettleScroll  = Span{1 * time.Second, 2 * time.Second}
	SettleExpand  = Span{500 * time.Millisecond, 1 * time.Second}
)

// Wheel gesture bounds in pixels.
const (
	minScrollDelta = 500
	maxScrollDelta = 1000
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer draws jittered settle delays and scroll distances.
type Pacer struct {
	rng   *browser.Rand
	sleep SleepFunc
}

// NewPacer creates a Pacer. A nil sleep uses a context-aware timer.
func NewPacer(rng *browser.Rand, sleep SleepFunc) *Pacer {
	if rng == nil {
		rng = browser.NewRand(0)
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Pacer{rng: rng, sleep: sleep}
}

// Settle waits a random duration within s.
func (p *Pacer) Settle(ctx context.Context, s Span) error {
	return p.sleep(ctx, p.rng.Duration(s.Min, s.Max))
}

// ScrollDelta returns a wheel distance in [500, 1000].
func (p *Pacer) ScrollDelta() int {
	return p.rng.Between(minScrollDelta, maxScrollDelta)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
