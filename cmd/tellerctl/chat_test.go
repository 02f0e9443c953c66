// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatTestClient(server *httptest.Server, out *strings.Builder) *chatClient {
	return &chatClient{
		baseURL: server.URL,
		http:    server.Client(),
		out:     out,
	}
}

func TestAskStreamsAnswerAndCapturesSession(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("X-Session-ID", "22222222-2222-4222-8222-222222222222")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`The nearest branch is Gulshan.__SOURCES__{"sources":["locations"]}__SOURCES__`))
	}))
	defer server.Close()

	var out strings.Builder
	client := newChatTestClient(server, &out)

	require.NoError(t, client.ask(context.Background(), "where is the nearest branch"))

	assert.Equal(t, "where is the nearest branch", gotBody["query"])
	assert.Equal(t, "22222222-2222-4222-8222-222222222222", client.sessionID)
	assert.Contains(t, out.String(), "The nearest branch is Gulshan.")
	assert.Contains(t, out.String(), "locations")
	assert.NotContains(t, out.String(), sourcesSentinel)
}

func TestAskSendsSessionOnFollowUp(t *testing.T) {
	var gotSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotSession = body["session_id"]
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	var out strings.Builder
	client := newChatTestClient(server, &out)
	client.sessionID = "33333333-3333-4333-8333-333333333333"

	require.NoError(t, client.ask(context.Background(), "and the atm"))
	assert.Equal(t, "33333333-3333-4333-8333-333333333333", gotSession)
}

func TestAskReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"query must not be empty"}`))
	}))
	defer server.Close()

	var out strings.Builder
	client := newChatTestClient(server, &out)

	err := client.ask(context.Background(), " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
