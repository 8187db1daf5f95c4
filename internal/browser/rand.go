package browser

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is a goroutine-safe, seedable random source used for device rotation
// and jittered pauses. A zero seed draws a random one.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a Rand seeded with seed (0 = random seed).
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN returns a value in [0, n). n must be positive.
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

// Between returns a value in [lo, hi]. If hi <= lo it returns lo.
func (r *Rand) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// Duration returns a duration uniformly drawn from [lo, hi).
func (r *Rand) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + time.Duration(r.r.Int64N(int64(hi-lo)))
}
