// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultKeyPrefix namespaces limiter keys in Redis.
const DefaultKeyPrefix = "contactsd:ratelimit:"

// RedisLimiter is a fixed-window limiter shared across instances through
// Redis. The first hit in a window sets the key's expiry.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
	limit  int
}

// NewRedisLimiter creates a RedisLimiter. An empty prefix uses DefaultKeyPrefix.
func NewRedisLimiter(client redis.UniversalClient, cfg Config, prefix string) (*RedisLimiter, error) {
	if client == nil {
		return nil, oops.Code("RATELIMIT_INVALID").Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	cfg = cfg.withDefaults()
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		window: cfg.Window,
		limit:  cfg.Limit,
	}, nil
}

// Allow counts one request against key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "incr").Wrap(err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
		}
		return decide(count, l.limit, l.window, l.window), nil
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "pttl").Wrap(err)
	}
	// A key that lost its expiry (crash between INCR and EXPIRE) would
	// otherwise block forever.
	if ttl < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
		}
		ttl = l.window
	}
	return decide(count, l.limit, l.window, ttl), nil
}

var _ Limiter = (*RedisLimiter)(nil)
