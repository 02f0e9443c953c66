// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the look-aside cache contract. Failures are never fatal to a
// turn: a failed Get is a miss, a failed Put is logged and dropped.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (payload string, ok bool)
	Put(ctx context.Context, fingerprint, payload string)
	Ping(ctx context.Context) error
	Close() error
}

// redisCache keys under "tellergate:retrieval:<fingerprint>".
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to the cache store and verifies reachability.
func NewRedisCache(addr, password string, ttl time.Duration, logger *slog.Logger) (Cache, error) {
	if addr == "" {
		return nil, fmt.Errorf("cache redis address is empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping cache redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Retrieval cache connected", "addr", addr, "ttl", ttl.String())
	return &redisCache{client: rdb, ttl: ttl, logger: logger}, nil
}

func cacheKey(fingerprint string) string {
	return "tellergate:retrieval:" + fingerprint
}

// Get returns the cached payload. Any store error, including redis.Nil, is
// reported as a miss; only genuine failures are logged.
func (c *redisCache) Get(ctx context.Context, fingerprint string) (string, bool) {
	val, err := c.client.Get(ctx, cacheKey(fingerprint)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache get failed, treating as miss",
				"fingerprint", fingerprint[:12], "error", err)
		}
		return "", false
	}
	return val, true
}

// Put stores the payload under the deployment TTL. Errors are logged and
// swallowed.
func (c *redisCache) Put(ctx context.Context, fingerprint, payload string) {
	if err := c.client.Set(ctx, cacheKey(fingerprint), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache put failed", "fingerprint", fingerprint[:12], "error", err)
	}
}

// Ping reports store reachability for health checks.
func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the redis connection.
func (c *redisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*redisCache)(nil)

// NopCache serves deployments without a cache store configured. Every Get
// is a miss; Put drops the payload.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, fingerprint string) (string, bool) { return "", false }
func (NopCache) Put(ctx context.Context, fingerprint, payload string)       {}
func (NopCache) Ping(ctx context.Context) error                             { return nil }
func (NopCache) Close() error                                               { return nil }

var _ Cache = NopCache{}
