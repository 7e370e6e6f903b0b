package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// maxRequestsPerMinute caps mutating requests per client IP.
const maxRequestsPerMinute = 60

// rateLimiter counts mutating requests per client IP over a fixed one-minute
// window. Idle entries are pruned inline on the next call that observes them
// stale, so no background goroutine is needed.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	// lastPrune bounds how often the full map sweep runs.
	lastPrune time.Time
}

type window struct {
	start time.Time
	count int
}

const (
	windowLength  = time.Minute
	pruneInterval = 5 * time.Minute
)

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		windows:   make(map[string]window),
		lastPrune: time.Now(),
	}
}

// allow reports whether a request from the given IP fits in its current
// window. Rejections are counted on metrics when provided.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(now)

	w := rl.windows[clientIP]
	if now.Sub(w.start) >= windowLength {
		w = window{start: now}
	}
	w.count++
	rl.windows[clientIP] = w

	if w.count > maxRequestsPerMinute {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}

// pruneLocked drops windows that ended long enough ago to be irrelevant.
// Caller holds mu.
func (rl *rateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < pruneInterval {
		return
	}
	rl.lastPrune = now
	for ip, w := range rl.windows {
		if now.Sub(w.start) >= 2*windowLength {
			delete(rl.windows, ip)
		}
	}
}
