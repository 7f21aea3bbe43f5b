// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package ratelimit provides fixed-window request limiting keyed by an
// arbitrary string, typically the client IP.
package ratelimit

import (
	"context"
	"time"
)

// Defaults for the login limiter.
const (
	DefaultWindow = 10 * time.Minute
	DefaultLimit  = 5

	// DefaultCleanupInterval is how often the memory backend drops
	// expired windows.
	DefaultCleanupInterval = time.Minute
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool

	// Limit is the number of requests permitted per window.
	Limit int

	// Window is the configured window length.
	Window time.Duration

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is the time until the current window resets.
	RetryAfter time.Duration
}

// Limiter counts a request against key and reports whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config configures a limiter backend.
type Config struct {
	// Window is the fixed window length. Defaults to DefaultWindow.
	Window time.Duration

	// Limit is the number of requests allowed per window. Defaults to DefaultLimit.
	Limit int

	// CleanupInterval applies to the memory backend only.
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// decide builds a Decision from the hit count within a window.
func decide(count int64, limit int, window, resetIn time.Duration) Decision {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	if resetIn < 0 {
		resetIn = 0
	}
	return Decision{
		Allowed:    count <= int64(limit),
		Limit:      limit,
		Window:     window,
		Remaining:  int(remaining),
		RetryAfter: resetIn,
	}
}
