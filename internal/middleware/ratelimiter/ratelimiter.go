// Package ratelimiter bounds login attempts per client address over a
// fixed window. Two implementations share the Limiter interface: an
// in-process map (single-instance deployments) and a Redis counter
// (multi-instance, atomic per key).
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type Limiter interface {
	// Allow records one attempt against key and reports whether it is
	// still within the window budget. Every call counts, success or not.
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	count   int
	started time.Time
	timer   *time.Timer
	key     string
}

// Memory is the in-process limiter. Counter updates are atomic per key via
// the mutex, which is only sufficient when a single instance serves logins.
type Memory struct {
	windows     map[string]*window
	mu          sync.Mutex
	windowSize  time.Duration
	maxAttempts int
}

func NewMemory(windowSize time.Duration, maxAttempts int) *Memory {
	return &Memory{
		windows:     make(map[string]*window),
		windowSize:  windowSize,
		maxAttempts: maxAttempts,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, exists := m.windows[key]
	now := time.Now()
	if !exists || now.Sub(w.started) >= m.windowSize {
		if exists {
			w.timer.Stop()
		}
		w = &window{started: now, key: key}
		w.timer = time.AfterFunc(m.windowSize, func() { m.cleanup(w) })
		m.windows[key] = w
	}

	w.count++
	return w.count <= m.maxAttempts, nil
}

// cleanup removes an elapsed window so idle keys don't accumulate. A timer
// may fire concurrently with Allow replacing its window, so only the window
// the timer was armed for is removed; a newer window under the same key
// keeps its count.
func (m *Memory) cleanup(w *window) {
	m.mu.Lock()
	if m.windows[w.key] == w {
		delete(m.windows, w.key)
	}
	m.mu.Unlock()
}

// Stop cancels all expiry timers.
func (m *Memory) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.windows {
		if w.timer != nil {
			w.timer.Stop()
		}
	}
}
