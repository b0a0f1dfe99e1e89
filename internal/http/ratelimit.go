package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultWriteLimit  = 60
	defaultWriteWindow = time.Minute
)

// rateLimiter caps write requests per client IP. Each client gets a fixed
// window starting at its first request; the count resets when the window ends.
type rateLimiter struct {
	mu           sync.Mutex
	limit        int
	window       time.Duration
	now          func() time.Time
	clients      map[string]*writeWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type writeWindow struct {
	start  time.Time
	writes int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = defaultWriteLimit
	}
	if window <= 0 {
		window = defaultWriteWindow
	}
	rl := &rateLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		clients:     make(map[string]*writeWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup drops finished windows every few windows, at most every 5 minutes.
func (rl *rateLimiter) startCleanup() {
	interval := 5 * rl.window
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow reports whether another write from clientIP fits in its window.
// When it does not, retryAfter is the time left until the window ends.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) (ok bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, exists := rl.clients[clientIP]
	if !exists || now.Sub(w.start) >= rl.window {
		rl.clients[clientIP] = &writeWindow{start: now, writes: 1}
		return true, 0
	}

	if w.writes >= rl.limit {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false, w.start.Add(rl.window).Sub(now)
	}

	w.writes++
	return true, 0
}
