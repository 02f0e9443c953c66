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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

func rec(session, role, content string) datatypes.TurnRecord {
	return datatypes.TurnRecord{SessionID: session, Role: role, Content: content}
}

// failingStore fails every call; stands in for a dead database.
type failingStore struct{}

func (failingStore) Append(context.Context, datatypes.TurnRecord) error { return errors.New("down") }
func (failingStore) LastN(context.Context, string, int) ([]datatypes.TurnRecord, error) {
	return nil, errors.New("down")
}
func (failingStore) Ping(context.Context) error { return errors.New("down") }
func (failingStore) Close() error               { return nil }

func TestRingStoreOrderAndEviction(t *testing.T) {
	ring := NewRingStore(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, ring.Append(ctx, rec("s1", datatypes.RoleUser, fmt.Sprintf("m%d", i))))
	}

	got, err := ring.LastN(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Oldest two evicted; remainder in chronological order.
	assert.Equal(t, "m3", got[0].Content)
	assert.Equal(t, "m4", got[1].Content)
	assert.Equal(t, "m5", got[2].Content)
}

func TestRingStoreLastNWindow(t *testing.T) {
	ring := NewRingStore(10)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		require.NoError(t, ring.Append(ctx, rec("s1", datatypes.RoleUser, fmt.Sprintf("m%d", i))))
	}

	got, err := ring.LastN(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].Content)
	assert.Equal(t, "m4", got[1].Content)
}

func TestRingStoreSessionsAreIndependent(t *testing.T) {
	ring := NewRingStore(5)
	ctx := context.Background()
	require.NoError(t, ring.Append(ctx, rec("s1", datatypes.RoleUser, "hello")))
	require.NoError(t, ring.Append(ctx, rec("s2", datatypes.RoleUser, "world")))

	got, err := ring.LastN(ctx, "s1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)

	got, err = ring.LastN(ctx, "unknown", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryDegradesToFallbackOnAppend(t *testing.T) {
	m := New(failingStore{}, NewRingStore(10), nil)
	ctx := context.Background()

	err := m.Append(ctx, rec("s1", datatypes.RoleUser, "hello"))
	// Degraded, not failed: the record is readable from the fallback.
	assert.True(t, datatypes.IsPersistenceDegraded(err))

	got, err := m.LastN(ctx, "s1", 5)
	assert.True(t, datatypes.IsPersistenceDegraded(err))
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)
}

func TestMemoryWriteThroughKeepsFallbackWarm(t *testing.T) {
	// Healthy primary mirrors into the fallback, so history survives an
	// outage that starts mid-conversation.
	ring := NewRingStore(10)
	primary := NewRingStore(10)
	m := New(primary, ring, nil)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, rec("s1", datatypes.RoleUser, "hello")))
	got, err := ring.LastN(ctx, "s1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestMemoryNilPrimaryUsesFallbackSilently(t *testing.T) {
	m := New(nil, NewRingStore(10), nil)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, rec("s1", datatypes.RoleUser, "hello")))
	got, err := m.LastN(ctx, "s1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, m.Ping(ctx))
}
