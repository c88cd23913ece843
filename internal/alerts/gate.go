package alerts

import (
	"context"
	"sync"
	"time"
)

// Gate is the process-wide emitted-set. Within one hour bucket at most one
// candidate per (category, severity) passes.
type Gate struct {
	mu      sync.Mutex
	emitted map[Key]struct{}
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{emitted: make(map[Key]struct{})}
}

// ShouldEmit records c and returns true the first time its key is seen;
// repeats within the same bucket return false.
func (g *Gate) ShouldEmit(c Candidate, clock Clock) bool {
	if clock == nil {
		clock = SystemClock{}
	}
	key := KeyFor(c, clock.Now())

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.emitted[key]; seen {
		return false
	}
	g.emitted[key] = struct{}{}
	return true
}

// Reset clears the emitted-set.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.emitted)
}

// Len returns the number of recorded keys.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.emitted)
}

// Run clears the gate every interval until ctx is done. A key recorded just
// before a clear may repeat right after it. interval <= 0 means ResetInterval.
func (g *Gate) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = ResetInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			g.Reset()
		case <-ctx.Done():
			return
		}
	}
}
