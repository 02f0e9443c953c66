// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the request and response types for the chat endpoints
// (streaming and sync). For authoritative-source types, see fee.go,
// location.go, and employee.go.
package datatypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxQueryContentBytes is the maximum size of a single user query.
	// Checks byte length (not rune count) to prevent memory exhaustion
	// with large payloads.
	MaxQueryContentBytes = 8 * 1024 // 8KB

	// MaxKnowledgeBaseNameBytes is the maximum size of a knowledge base name.
	MaxKnowledgeBaseNameBytes = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	// Register custom validator for query content size
	_ = chatValidate.RegisterValidation("maxquerybytes", validateMaxQueryBytes)
}

// validateMaxQueryBytes validates that a string field does not exceed
// MaxQueryContentBytes.
func validateMaxQueryBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxQueryContentBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// ChatRequest represents the body of POST /chat and POST /chat/sync.
//
// # Description
//
// ChatRequest carries a single user utterance plus optional session and
// knowledge-base routing hints. The same type serves both the streaming and
// the synchronous endpoint; the two endpoints produce identical content.
//
// # Fields
//
//   - Query: Required. The raw user utterance. Limited to 8KB.
//   - SessionID: Optional. UUID identifying the transcript this turn belongs
//     to. When absent the server generates one and returns it in the
//     X-Session-ID response header.
//   - KnowledgeBase: Optional. Overrides the classifier's knowledge-base
//     selection for retrieval-backed turns.
//
// # Validation
//
// Uses go-playground/validator:
//   - Query: required, non-blank after trimming, max 8192 bytes
//   - SessionID: empty or valid UUID v4
//   - KnowledgeBase: max 128 bytes
//
// # Examples
//
//	req := ChatRequest{Query: "how many branches are in dhaka"}
//	req.EnsureDefaults()
//	if err := req.Validate(); err != nil { ... }
type ChatRequest struct {
	Query         string `json:"query" validate:"required,maxquerybytes"`
	SessionID     string `json:"session_id,omitempty" validate:"omitempty,uuid4"`
	KnowledgeBase string `json:"knowledge_base,omitempty" validate:"omitempty,max=128"`
}

// Validate validates the ChatRequest fields.
//
// A query that is all whitespace is rejected even though the `required` tag
// alone would accept it.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return &ValidationError{Field: "query", Message: "query must not be empty"}
	}
	if err := chatValidate.Struct(r); err != nil {
		return &ValidationError{Field: "request", Message: err.Error()}
	}
	return nil
}

// EnsureDefaults populates a generated session ID when the client omitted one.
//
// Returns true when a session ID was generated so the HTTP layer knows to
// advertise it in the response header.
func (r *ChatRequest) EnsureDefaults() bool {
	if r.SessionID == "" {
		r.SessionID = uuid.New().String()
		return true
	}
	return false
}

// =============================================================================
// Utterance
// =============================================================================

// Utterance is the immutable per-turn unit the orchestrator operates on.
//
// # Description
//
// Built once at the HTTP boundary and never mutated afterwards. The
// conversation key is a stable derivative used ONLY to key disambiguation
// state; the session ID is used for transcript memory. The two are distinct
// because a conversation key can exist while a session is absent (a
// session-less caller still deserves working follow-up selection).
//
// # Fields
//
//   - Query: The raw user text.
//   - SessionID: Transcript identifier (always populated by the boundary).
//   - ConversationKey: Disambiguation-state key. Equals the client-supplied
//     session ID when one was given, otherwise a channel-derived identifier.
//   - KnowledgeBase: Optional caller override for retrieval routing.
//   - CorrelationID: Identifier carried through logs for this turn.
//   - ReceivedAt: Server receive time.
type Utterance struct {
	Query           string
	SessionID       string
	ConversationKey string
	KnowledgeBase   string
	CorrelationID   string
	ReceivedAt      time.Time
}

// NewUtterance builds the per-turn Utterance from boundary inputs.
//
// clientProvidedSession reports whether the session ID came from the caller;
// when it did not, the conversation key falls back to the remote channel
// identifier so follow-up selection still works for session-less callers.
func NewUtterance(req *ChatRequest, clientProvidedSession bool, remoteID string) Utterance {
	key := req.SessionID
	if !clientProvidedSession {
		key = "chan:" + remoteID
	}
	return Utterance{
		Query:           req.Query,
		SessionID:       req.SessionID,
		ConversationKey: key,
		KnowledgeBase:   req.KnowledgeBase,
		CorrelationID:   deriveCorrelationID(req.SessionID, key),
		ReceivedAt:      time.Now().UTC(),
	}
}

// deriveCorrelationID builds the log correlation identifier from the session
// and conversation keys. Both halves are shortened; the full keys remain
// available on the Utterance.
func deriveCorrelationID(sessionID, conversationKey string) string {
	return fmt.Sprintf("%s/%s", shortKey(sessionID), shortKey(conversationKey))
}

func shortKey(k string) string {
	if len(k) <= 8 {
		return k
	}
	return k[:8]
}

// =============================================================================
// Chat Response Types
// =============================================================================

// ChatSyncResponse is the aggregated body returned by POST /chat/sync.
type ChatSyncResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	Sources   []string `json:"sources,omitempty"`
}

// NewChatSyncResponse creates a ChatSyncResponse from an aggregated stream.
func NewChatSyncResponse(sessionID, response string, sources []string) *ChatSyncResponse {
	return &ChatSyncResponse{
		Response:  response,
		SessionID: sessionID,
		Sources:   sources,
	}
}
