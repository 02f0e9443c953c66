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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Test Doubles
// =============================================================================

// mapCache is an in-memory Cache for tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (m *mapCache) Get(ctx context.Context, fp string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[fp]
	return v, ok
}

func (m *mapCache) Put(ctx context.Context, fp, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fp] = payload
	m.puts++
}

func (m *mapCache) Ping(ctx context.Context) error { return nil }
func (m *mapCache) Close() error                   { return nil }

// =============================================================================
// Fingerprint
// =============================================================================

func TestFingerprint_CaseAndWhitespaceInvariant(t *testing.T) {
	base := Fingerprint("What is the annual fee?", "ebl_general")

	assert.Equal(t, base, Fingerprint("what IS   the annual fee?", "ebl_general"))
	assert.Equal(t, base, Fingerprint("  what is the annual fee?\t", "ebl_general"))
	assert.NotEqual(t, base, Fingerprint("What is the annual fee?", "ebl_policies"))
	assert.NotEqual(t, base, Fingerprint("what is the monthly fee?", "ebl_general"))
}

func TestFingerprint_SeparatorKeepsFieldsDistinct(t *testing.T) {
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

// =============================================================================
// FormatContext
// =============================================================================

func TestFormatContext_CanonicalResponseWinsOverSections(t *testing.T) {
	resp := &datatypes.RetrievalServiceResponse{
		Response: "EBL was established in 1992.",
		Chunks:   []datatypes.RetrievalChunk{{Content: "ignored"}},
	}

	assert.Equal(t, "EBL was established in 1992.", FormatContext(resp))
}

func TestFormatContext_TemplateResponseFallsBackToSections(t *testing.T) {
	resp := &datatypes.RetrievalServiceResponse{
		Response: "{response}",
		Entities: []datatypes.RetrievalEntity{{Name: "EBL", Type: "bank", Description: "est. 1992"}},
		Relationships: []datatypes.RetrievalRelationship{
			{Source: "EBL", Target: "Dhaka", Description: "headquartered in"},
		},
		Chunks: []datatypes.RetrievalChunk{{Content: "chunk body", Source: "annual_report.pdf"}},
	}

	out := FormatContext(resp)

	// Stitch order: entities, relationships, chunks.
	require.Contains(t, out, "## Entities")
	require.Contains(t, out, "## Relationships")
	require.Contains(t, out, "## Documents")
	assert.Less(t, indexOf(out, "## Entities"), indexOf(out, "## Relationships"))
	assert.Less(t, indexOf(out, "## Relationships"), indexOf(out, "## Documents"))
	assert.Contains(t, out, "[Document 1: annual_report.pdf]")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// =============================================================================
// Client
// =============================================================================

func retrievalServer(t *testing.T, calls *int, status int, resp datatypes.RetrievalServiceResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		require.Equal(t, "/query", r.URL.Path)
		var req datatypes.RetrievalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, datatypes.RetrievalModeHybrid, req.Mode)
		assert.Equal(t, datatypes.RetrievalTopKEntities, req.TopK)
		assert.True(t, req.Rerank)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_MissFetchesAndCaches(t *testing.T) {
	var calls int
	srv := retrievalServer(t, &calls, http.StatusOK, datatypes.RetrievalServiceResponse{
		Response:   "grounded answer context",
		References: []string{"schedule_of_charges.pdf"},
	})
	defer srv.Close()

	cache := newMapCache()
	client, err := NewClient(ClientConfig{ServiceURL: srv.URL}, cache, nil)
	require.NoError(t, err)

	result, err := client.Retrieve(context.Background(), "what is the late payment fee", "ebl_general")
	require.NoError(t, err)
	assert.Equal(t, "grounded answer context", result.Context)
	assert.Equal(t, []string{"schedule_of_charges.pdf"}, result.Sources)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, 1, calls)
}

func TestClient_SecondCallServesByteIdenticalCachedContext(t *testing.T) {
	var calls int
	srv := retrievalServer(t, &calls, http.StatusOK, datatypes.RetrievalServiceResponse{
		Response: "stable context",
	})
	defer srv.Close()

	cache := newMapCache()
	client, err := NewClient(ClientConfig{ServiceURL: srv.URL}, cache, nil)
	require.NoError(t, err)

	first, err := client.Retrieve(context.Background(), "Same Question", "kb")
	require.NoError(t, err)

	// Case/whitespace variant must hit the same entry.
	second, err := client.Retrieve(context.Background(), "same   question", "kb")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Context, second.Context)
}

func TestClient_RetriesOnceOnServerError(t *testing.T) {
	var calls int
	srv := retrievalServer(t, &calls, http.StatusServiceUnavailable, datatypes.RetrievalServiceResponse{})
	defer srv.Close()

	client, err := NewClient(ClientConfig{ServiceURL: srv.URL, RetryCount: 1}, newMapCache(), nil)
	require.NoError(t, err)

	_, err = client.Retrieve(context.Background(), "q", "kb")
	require.Error(t, err)
	assert.True(t, datatypes.IsRetrievalError(err))
	assert.Equal(t, 2, calls)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int
	srv := retrievalServer(t, &calls, http.StatusBadRequest, datatypes.RetrievalServiceResponse{})
	defer srv.Close()

	client, err := NewClient(ClientConfig{ServiceURL: srv.URL, RetryCount: 1}, newMapCache(), nil)
	require.NoError(t, err)

	_, err = client.Retrieve(context.Background(), "q", "kb")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
