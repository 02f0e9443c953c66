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
	"log/slog"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Resilient Store
// =============================================================================

// ResilientStore fronts the network store with the in-process fallback.
//
// Writes go to BOTH stores so a network outage between the prompt and the
// user's reply still finds the options locally. Reads prefer the network
// store (it survives restarts and is shared across replicas) and fall back
// on error. Fallback state expires on the same TTL, so stale entries vanish
// on their own after an outage.
type ResilientStore struct {
	primary  Store
	fallback Store
	logger   *slog.Logger
}

// NewResilientStore builds the facade. primary may be nil for single-node
// deployments without Redis; the fallback then carries all state.
func NewResilientStore(primary, fallback Store, logger *slog.Logger) *ResilientStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "disambiguation_store"),
	}
}

// Get reads pending state, preferring the network store.
func (s *ResilientStore) Get(ctx context.Context, conversationKey string) (*datatypes.DisambiguationState, error) {
	if s.primary == nil {
		return s.fallback.Get(ctx, conversationKey)
	}
	state, err := s.primary.Get(ctx, conversationKey)
	if err != nil {
		s.logger.Warn("disambiguation primary get failed, trying fallback",
			"conversation_key", conversationKey, "error", err)
		return s.fallback.Get(ctx, conversationKey)
	}
	return state, nil
}

// Put writes the state to both stores. The write succeeds if EITHER store
// accepted it; losing one copy degrades durability, not the turn.
func (s *ResilientStore) Put(ctx context.Context, conversationKey string, state *datatypes.DisambiguationState) error {
	fallbackErr := s.fallback.Put(ctx, conversationKey, state)
	if s.primary == nil {
		return fallbackErr
	}
	primaryErr := s.primary.Put(ctx, conversationKey, state)
	if primaryErr != nil && fallbackErr != nil {
		return primaryErr
	}
	if primaryErr != nil {
		s.logger.Warn("disambiguation primary put failed, fallback holds state",
			"conversation_key", conversationKey, "error", primaryErr)
	}
	return nil
}

// Delete clears the state from both stores.
func (s *ResilientStore) Delete(ctx context.Context, conversationKey string) error {
	_ = s.fallback.Delete(ctx, conversationKey)
	if s.primary == nil {
		return nil
	}
	if err := s.primary.Delete(ctx, conversationKey); err != nil {
		s.logger.Warn("disambiguation primary delete failed",
			"conversation_key", conversationKey, "error", err)
		return err
	}
	return nil
}

// Ping reports primary health when present.
func (s *ResilientStore) Ping(ctx context.Context) error {
	if s.primary == nil {
		return s.fallback.Ping(ctx)
	}
	return s.primary.Ping(ctx)
}

// Close closes both stores.
func (s *ResilientStore) Close() error {
	var err error
	if s.primary != nil {
		err = s.primary.Close()
	}
	if cerr := s.fallback.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ Store = (*ResilientStore)(nil)
