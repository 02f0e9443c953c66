// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Ring Store
// =============================================================================

// RingStore is the bounded in-memory fallback: a fixed-capacity ring of
// recent records per session. When a session's ring is full, the oldest
// record is overwritten. Safe for concurrent use.
type RingStore struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*sessionRing
}

type sessionRing struct {
	records []datatypes.TurnRecord
	head    int // next write position
	full    bool
}

// DefaultFallbackCapacity bounds the per-session ring when the config gives
// no override.
const DefaultFallbackCapacity = 200

// NewRingStore builds a fallback store with the given per-session capacity.
func NewRingStore(capacity int) *RingStore {
	if capacity <= 0 {
		capacity = DefaultFallbackCapacity
	}
	return &RingStore{
		capacity: capacity,
		sessions: make(map[string]*sessionRing),
	}
}

// Append records one turn, evicting the session's oldest record when full.
func (r *RingStore) Append(_ context.Context, rec datatypes.TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ring, ok := r.sessions[rec.SessionID]
	if !ok {
		ring = &sessionRing{records: make([]datatypes.TurnRecord, r.capacity)}
		r.sessions[rec.SessionID] = ring
	}
	ring.records[ring.head] = rec
	ring.head = (ring.head + 1) % r.capacity
	if ring.head == 0 && !ring.full {
		ring.full = true
	}
	return nil
}

// LastN returns up to n most recent records for a session, oldest first.
func (r *RingStore) LastN(_ context.Context, sessionID string, n int) ([]datatypes.TurnRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ring, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	size := ring.head
	if ring.full {
		size = r.capacity
	}
	if n > size {
		n = size
	}
	out := make([]datatypes.TurnRecord, 0, n)
	start := ring.head - n
	if start < 0 {
		start += r.capacity
	}
	for i := 0; i < n; i++ {
		out = append(out, ring.records[(start+i)%r.capacity])
	}
	return out, nil
}

// Ping always succeeds; the fallback is in-process.
func (r *RingStore) Ping(context.Context) error { return nil }

// Close drops all buffered sessions.
func (r *RingStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*sessionRing)
	return nil
}

var _ Store = (*RingStore)(nil)
