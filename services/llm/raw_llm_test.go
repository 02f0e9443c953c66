// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
}

func TestRawClient_StreamsTokensInOrder(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	})
	defer srv.Close()

	client, err := NewRawClient(RawConfig{BaseURL: srv.URL, Model: "test"})
	require.NoError(t, err)

	var got string
	var done bool
	err = client.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationParams{},
		func(ev StreamEvent) error {
			switch ev.Type {
			case StreamEventToken:
				got += ev.Content
			case StreamEventDone:
				done = true
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
	assert.True(t, done)
}

func TestRawClient_MidStreamErrorSurfacesErrorEvent(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"par"},"done":false}`,
		`{"error":"model crashed"}`,
	})
	defer srv.Close()

	client, err := NewRawClient(RawConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	var partial string
	var errEvent *StreamEvent
	err = client.ChatStream(context.Background(), nil, GenerationParams{},
		func(ev StreamEvent) error {
			switch ev.Type {
			case StreamEventToken:
				partial += ev.Content
			case StreamEventError:
				e := ev
				errEvent = &e
			}
			return nil
		})

	require.Error(t, err)
	assert.Equal(t, "par", partial)
	require.NotNil(t, errEvent)
	assert.Equal(t, "model crashed", errEvent.Error)
}

func TestRawClient_CallbackAbortStopsStream(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"a"},"done":false}`,
		`{"message":{"role":"assistant","content":"b"},"done":false}`,
	})
	defer srv.Close()

	client, err := NewRawClient(RawConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	abort := fmt.Errorf("client disconnected")
	err = client.ChatStream(context.Background(), nil, GenerationParams{},
		func(ev StreamEvent) error { return abort })

	assert.ErrorIs(t, err, abort)
}

func TestRawClient_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewRawClient(RawConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.ChatStream(context.Background(), nil, GenerationParams{}, func(StreamEvent) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewRawClient_RequiresURL(t *testing.T) {
	_, err := NewRawClient(RawConfig{})
	assert.Error(t, err)
}

func TestRawClient_PingReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewRawClient(RawConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	assert.NoError(t, client.Ping(context.Background()))
}

func TestRawClient_PingTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewRawClient(RawConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	assert.Error(t, client.Ping(context.Background()))
}
