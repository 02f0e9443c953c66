// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SourcesSentinel delimits the trailing sources block on the chat stream.
// The body is raw UTF-8 answer chunks; after the final chunk the server may
// append `__SOURCES__{json}__SOURCES__`, where the JSON payload is
// {"sources": [...]}. Clients must tolerate the sentinel splitting across
// read boundaries.
const SourcesSentinel = "__SOURCES__"

// =============================================================================
// Interface Definition
// =============================================================================

// StreamWriter writes the chat response body: answer chunks in order, then
// an optional sources block.
//
// # Description
//
// The chat wire format is deliberately plain: the body IS the answer, byte
// for byte, so a curl user sees clean text. Structure rides behind the
// sentinel at the end instead of wrapping every chunk in an envelope.
//
// # Thread Safety
//
// Implementations are safe for concurrent use.
type StreamWriter interface {
	// WriteChunk writes one answer chunk and flushes it to the client.
	WriteChunk(chunk string) error

	// WriteSources appends the sentinel-delimited sources block. A nil or
	// empty slice writes nothing. Must be called after the last chunk.
	WriteSources(sources []string) error
}

// =============================================================================
// Implementation
// =============================================================================

type chunkWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStreamWriter wraps an http.ResponseWriter for chunked streaming.
//
// Returns an error when the writer cannot flush; streaming through a
// buffering proxy layer would hold the whole answer until EOF, which defeats
// the endpoint.
func NewStreamWriter(w http.ResponseWriter) (StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &chunkWriter{w: w, flusher: flusher}, nil
}

// SetStreamHeaders sets the response headers for the chunked chat stream.
// Call before the first write.
func SetStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Tell nginx-style proxies not to buffer the stream.
	w.Header().Set("X-Accel-Buffering", "no")
}

func (c *chunkWriter) WriteChunk(chunk string) error {
	if chunk == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write([]byte(chunk)); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// sourcesPayload is the JSON body between the sentinels.
type sourcesPayload struct {
	Sources []string `json:"sources"`
}

func (c *chunkWriter) WriteSources(sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	payload, err := json.Marshal(sourcesPayload{Sources: sources})
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.w, "%s%s%s", SourcesSentinel, payload, SourcesSentinel); err != nil {
		return fmt.Errorf("write sources: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// =============================================================================
// Client-Side Split
// =============================================================================

// SplitSourcesBlock separates a fully-read stream body into answer text and
// sources. Used by the sync endpoint and the CLI; both read the same wire
// format the streaming endpoint produces.
//
// A malformed or unterminated block is returned as literal answer text
// rather than dropped, so a truncated stream still shows the user
// everything that arrived.
func SplitSourcesBlock(body string) (answer string, sources []string) {
	start := len(body)
	for i := 0; i+len(SourcesSentinel) <= len(body); i++ {
		if body[i:i+len(SourcesSentinel)] == SourcesSentinel {
			start = i
			break
		}
	}
	if start == len(body) {
		return body, nil
	}

	rest := body[start+len(SourcesSentinel):]
	end := -1
	for i := 0; i+len(SourcesSentinel) <= len(rest); i++ {
		if rest[i:i+len(SourcesSentinel)] == SourcesSentinel {
			end = i
			break
		}
	}
	if end < 0 {
		return body, nil
	}

	var payload sourcesPayload
	if err := json.Unmarshal([]byte(rest[:end]), &payload); err != nil {
		return body, nil
	}
	return body[:start], payload.Sources
}
