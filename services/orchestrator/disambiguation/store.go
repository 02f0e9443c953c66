// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package disambiguation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Store Interface
// =============================================================================

// DefaultTTL is the pending-selection lifetime when the config gives no
// override.
const DefaultTTL = 600 * time.Second

// Store persists at most one pending selection per conversation key. Get
// returns (nil, nil) when no state is pending; Put overwrites any prior
// state under the same key and resets the TTL.
type Store interface {
	Get(ctx context.Context, conversationKey string) (*datatypes.DisambiguationState, error)
	Put(ctx context.Context, conversationKey string, state *datatypes.DisambiguationState) error
	Delete(ctx context.Context, conversationKey string) error
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Redis Store
// =============================================================================

const redisKeyPrefix = "tellergate:disambiguation:"

// RedisStore is the network implementation of Store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies reachability.
func NewRedisStore(addr, password string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping disambiguation redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

// Get reads the pending state for a conversation key.
func (s *RedisStore) Get(ctx context.Context, conversationKey string) (*datatypes.DisambiguationState, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+conversationKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &datatypes.DisambiguationStoreError{Op: "get", Message: err.Error()}
	}
	var state datatypes.DisambiguationState
	if err := json.Unmarshal(raw, &state); err != nil {
		// Unreadable state is dropped rather than surfaced; the turn
		// proceeds as if nothing were pending.
		s.logger.Warn("dropping corrupt disambiguation state",
			"conversation_key", conversationKey, "error", err)
		_ = s.client.Del(ctx, redisKeyPrefix+conversationKey).Err()
		return nil, nil
	}
	return &state, nil
}

// Put overwrites the pending state and resets the TTL.
func (s *RedisStore) Put(ctx context.Context, conversationKey string, state *datatypes.DisambiguationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return &datatypes.DisambiguationStoreError{Op: "put", Message: err.Error()}
	}
	if err := s.client.Set(ctx, redisKeyPrefix+conversationKey, raw, s.ttl).Err(); err != nil {
		return &datatypes.DisambiguationStoreError{Op: "put", Message: err.Error()}
	}
	return nil
}

// Delete clears the pending state after resolution.
func (s *RedisStore) Delete(ctx context.Context, conversationKey string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+conversationKey).Err(); err != nil {
		return &datatypes.DisambiguationStoreError{Op: "delete", Message: err.Error()}
	}
	return nil
}

// Ping verifies Redis reachability for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
