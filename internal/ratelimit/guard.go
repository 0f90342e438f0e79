// Package ratelimit implements the sliding-window request guard used in
// front of the administrative mutation routes. State is process-local and
// is lost on restart; it is meant for abuse mitigation, not accounting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 5
)

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Guard keeps an ordered list of request timestamps per caller key.
type Guard struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	longest time.Duration
	nowFn   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func New() *Guard {
	return NewWithClock(time.Now)
}

func NewWithClock(nowFn func() time.Time) *Guard {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Guard{
		hits:    make(map[string][]time.Time),
		longest: DefaultWindow,
		nowFn:   nowFn,
		stop:    make(chan struct{}),
	}
}

// Check records a request for key when it fits in the window. Non-positive
// window or max fall back to the defaults.
func (g *Guard) Check(key string, window time.Duration, max int) Decision {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if window > g.longest {
		g.longest = window
	}

	now := g.nowFn()
	kept := prune(g.hits[key], now.Add(-window))

	if len(kept) >= max {
		g.hits[key] = kept
		reset := kept[0].Add(window)
		return Decision{
			Allowed:    false,
			Limit:      max,
			Remaining:  0,
			RetryAfter: reset.Sub(now),
			ResetAt:    reset,
		}
	}

	kept = append(kept, now)
	g.hits[key] = kept
	return Decision{
		Allowed:   true,
		Limit:     max,
		Remaining: max - len(kept),
		ResetAt:   kept[0].Add(window),
	}
}

// prune drops timestamps at or before cutoff. ts is sorted ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// Compact drops expired timestamps using the longest window seen so far
// and removes keys left empty.
func (g *Guard) Compact() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compactLocked()
}

func (g *Guard) compactLocked() {
	cutoff := g.nowFn().Add(-g.longest)
	for key, ts := range g.hits {
		kept := prune(ts, cutoff)
		if len(kept) == 0 {
			delete(g.hits, key)
			continue
		}
		g.hits[key] = kept
	}
}

// Start runs Compact every interval until ctx is done or Stop is called.
// A cycle is skipped when a request currently holds the lock.
func (g *Guard) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if g.mu.TryLock() {
					g.compactLocked()
					g.mu.Unlock()
				}
			case <-ctx.Done():
				return
			case <-g.stop:
				return
			}
		}
	}()
}

func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Reset forgets every key.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hits = make(map[string][]time.Time)
	g.longest = DefaultWindow
}

// Keys is the number of tracked caller keys.
func (g *Guard) Keys() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.hits)
}
