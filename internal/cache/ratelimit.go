// Package cache holds the per-client request counters used to rate limit the auth endpoints.
package cache

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// RateLimiter counts requests per key in one-minute fixed windows.
type RateLimiter interface {
	// Allow records one request for key. It returns 0 when the request is within perMinute,
	// otherwise the number of seconds until the window resets.
	Allow(ctx context.Context, key string, perMinute int) (retryAfter int, err error)
	Close() error
}

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a single-process RateLimiter used when Redis is not configured.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
	lastGC   time.Time
}

// NewMemoryLimiter returns an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counters: make(map[string]*counter), now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, perMinute int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.gc(now)

	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}
		m.counters[key] = c
	}
	c.count++
	if c.count <= perMinute {
		return 0, nil
	}
	secs := int((c.resetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs, nil
}

// gc drops expired windows at most once per window. Caller holds mu.
func (m *MemoryLimiter) gc(now time.Time) {
	if now.Sub(m.lastGC) < window {
		return
	}
	m.lastGC = now
	for k, c := range m.counters {
		if !now.Before(c.resetAt) {
			delete(m.counters, k)
		}
	}
}

func (m *MemoryLimiter) Close() error { return nil }
