// Package ratelimit throttles clients with a fixed request budget per
// window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Config sets the per-client budget. Zero values take the defaults.
type Config struct {
	Limit  int           // requests allowed per window
	Window time.Duration // length of a window
	Idle   time.Duration // clients unseen this long are forgotten
}

// DefaultConfig allows 60 requests a minute and forgets clients after ten
// idle minutes.
func DefaultConfig() Config {
	return Config{Limit: 60, Window: time.Minute, Idle: 10 * time.Minute}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Idle < c.Window {
		c.Idle = max(d.Idle, c.Window)
	}
	return c
}

type window struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// Limiter counts requests per client key in fixed windows.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts a limiter and its sweeper goroutine. Call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records a request for key. When the budget is spent it returns
// false and how long until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.windows[key] = &window{start: now, count: 1, lastSeen: now}
		return true, 0
	}

	w.lastSeen = now
	if w.count >= l.cfg.Limit {
		l.rejected.Add(1)
		return false, w.start.Add(l.cfg.Window).Sub(now)
	}
	w.count++
	return true, 0
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.Idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.Idle)
	removed := 0
	for key, w := range l.windows {
		if w.lastSeen.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Stop ends the sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Metrics is a snapshot for health and metrics endpoints.
type Metrics struct {
	Rejected    int64 `json:"rejected"`
	ClientCount int64 `json:"clients"`
}

// GetMetrics returns the rejected count and tracked clients.
func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	clients := int64(len(l.windows))
	l.mu.Unlock()
	return Metrics{Rejected: l.rejected.Load(), ClientCount: clients}
}

// Middleware throttles requests whose method is listed, keyed by
// extractIP. An empty list throttles every method. Rejected requests get a
// Retry-After header and onLimit, or a plain 429 when onLimit is nil.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit http.HandlerFunc, methods ...string) func(http.Handler) http.Handler {
	throttled := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		throttled[m] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := throttled[r.Method]; len(throttled) > 0 && !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retry := l.Allow(extractIP(r))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			if onLimit == nil {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
