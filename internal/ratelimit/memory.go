// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. It is safe for
// concurrent use.
//
// A background goroutine removes expired windows. Call Close to stop it.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	window  time.Duration
	limit   int
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// nil when no registry was provided
	trackedGauge prometheus.Gauge
}

// NewMemoryLimiter creates a MemoryLimiter and starts its cleanup goroutine.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return newMemoryLimiter(cfg, nil, time.Now)
}

// NewMemoryLimiterWithRegistry creates a MemoryLimiter and registers a
// tracked-keys gauge with reg.
func NewMemoryLimiterWithRegistry(cfg Config, reg prometheus.Registerer) *MemoryLimiter {
	return newMemoryLimiter(cfg, reg, time.Now)
}

func newMemoryLimiter(cfg Config, reg prometheus.Registerer, now func() time.Time) *MemoryLimiter {
	cfg = cfg.withDefaults()

	l := &MemoryLimiter{
		windows:  make(map[string]*window),
		window:   cfg.Window,
		limit:    cfg.Limit,
		now:      now,
		stopChan: make(chan struct{}),
	}

	if reg != nil {
		l.trackedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contactsd_ratelimit_tracked_keys",
			Help: "Current number of keys tracked by the in-memory rate limiter",
		})
		reg.MustRegister(l.trackedGauge)
	}

	l.wg.Add(1)
	go l.cleanupLoop(cfg.CleanupInterval)

	return l
}

// Allow counts one request against key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++

	l.updateGauge()
	return decide(w.count, l.limit, l.window, w.resetAt.Sub(now)), nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

func (l *MemoryLimiter) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopChan:
			return
		}
	}
}

// cleanup drops windows that have already reset.
func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.updateGauge()
}

// updateGauge must be called with l.mu held.
func (l *MemoryLimiter) updateGauge() {
	if l.trackedGauge != nil {
		l.trackedGauge.Set(float64(len(l.windows)))
	}
}

var _ Limiter = (*MemoryLimiter)(nil)
