// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the generative-model clients used for
// non-authoritative turns.
//
// The orchestrator only ever talks to the interface in this file. Backends
// stream UTF-8 chunks through a callback and never return a separate final
// aggregate; the caller owns aggregation for persistence. A mid-stream
// failure surfaces as a StreamEventError event followed by an error return,
// so the caller can stop, persist the partial text, and apologize.
package llm

import "context"

// Message roles on the generative wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams tunes a single generation call. Nil fields use backend
// defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates streaming callback events.
type StreamEventType string

const (
	// StreamEventToken carries one UTF-8 content chunk.
	StreamEventToken StreamEventType = "token"

	// StreamEventError marks a mid-stream backend failure. Content is empty;
	// Error carries the backend message (never shown to users).
	StreamEventError StreamEventType = "error"

	// StreamEventDone marks normal end of stream.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is one unit delivered to a StreamCallback.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   string
}

// StreamCallback receives stream events in order. Returning an error aborts
// the stream; backends must stop promptly and propagate the error.
type StreamCallback func(event StreamEvent) error

// Client is the generative backend contract.
//
// ChatStream emits tokens through the callback until the backend finishes,
// the context is canceled, or the callback returns an error. Implementations
// must be safe for concurrent use.
type Client interface {
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error
}
