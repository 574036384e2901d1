// Package ratelimit provides a fixed-window per-client submission limiter.
// State is process-local and explicitly constructed rather than hidden
// behind a package-level variable, so tests and servers own their instances.
package ratelimit

import (
	"sync"
	"time"
)

const (
	defaultWindow = 5 * time.Minute
	defaultLimit  = 5
	// defaultMaxKeys caps tracked clients; the oldest-expiring record is
	// evicted when the cap is reached.
	defaultMaxKeys = 10000

	sweepInterval = time.Minute
)

type record struct {
	count     int
	expiresAt time.Time
}

// Decision reports the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Options configures a Limiter. Zero values fall back to defaults.
type Options struct {
	Window  time.Duration
	Limit   int
	MaxKeys int
}

// Limiter tracks request counts per key over a fixed window. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*record
	window  time.Duration
	limit   int
	maxKeys int
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates a Limiter and starts its periodic sweep of expired records.
// Call Stop when the limiter is no longer needed.
func New(opts Options) *Limiter {
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	l := &Limiter{
		entries: make(map[string]*record),
		window:  window,
		limit:   limit,
		maxKeys: maxKeys,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Stop terminates the sweep goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Allow records one request for key and reports whether it is within the
// window limit.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	entry, ok := l.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		if !ok && len(l.entries) >= l.maxKeys {
			l.evictOldestLocked()
		}
		resetAt := now.Add(l.window)
		l.entries[key] = &record{count: 1, expiresAt: resetAt}
		return Decision{Allowed: true, Remaining: l.limit - 1, ResetAt: resetAt}
	}

	if entry.count >= l.limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: entry.expiresAt}
	}

	entry.count++
	return Decision{Allowed: true, Remaining: l.limit - entry.count, ResetAt: entry.expiresAt}
}

// evictOldestLocked drops the record closest to expiry. Caller holds mu.
func (l *Limiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range l.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, entry := range l.entries {
		if !entry.expiresAt.After(now) {
			delete(l.entries, key)
		}
	}
}
