// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers for the orchestrator.
//
// Handlers stay thin: validate the request, build the immutable Utterance,
// hand it to the turn orchestrator, and shape the wire response. All routing
// and answer logic lives in the services package.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
	"github.com/AleutianAI/TellerGate/services/orchestrator/services"
)

// SessionIDHeader advertises a server-generated session ID so the client can
// carry it on follow-up turns.
const SessionIDHeader = "X-Session-ID"

// TurnRunner is the turn orchestrator contract the handlers depend on.
type TurnRunner interface {
	HandleTurn(ctx context.Context, utt datatypes.Utterance, emit func(string) error) (*services.TurnResult, error)
}

// ChatHandler serves POST /chat and POST /chat/sync.
type ChatHandler struct {
	turns  TurnRunner
	logger *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(turns TurnRunner, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{turns: turns, logger: logger.With("component", "chat_handler")}
}

// bindRequest parses and validates the chat body shared by both endpoints.
// A validation failure answers 4xx immediately and nothing is persisted.
func (h *ChatHandler) bindRequest(c *gin.Context) (*datatypes.ChatRequest, bool) {
	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &req, true
}

// HandleChat serves POST /chat: the streaming endpoint.
//
// # Description
//
// The response body is the answer itself as raw UTF-8 chunks, optionally
// followed by the sentinel-delimited sources block. When the client omitted
// session_id the generated one is advertised in the X-Session-ID header,
// which therefore must be set before the first chunk is written.
//
// A client disconnect cancels the request context; the turn orchestrator
// persists whatever was delivered.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	generated := req.EnsureDefaults()
	if generated {
		c.Header(SessionIDHeader, req.SessionID)
	}
	utt := datatypes.NewUtterance(req, !generated, c.ClientIP())

	writer, err := NewStreamWriter(c.Writer)
	if err != nil {
		h.logger.Error("Streaming unsupported by response writer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}
	SetStreamHeaders(c.Writer)
	c.Status(http.StatusOK)

	result, err := h.turns.HandleTurn(c.Request.Context(), utt, writer.WriteChunk)
	if err != nil {
		// The scripted apology was already streamed where the connection
		// allowed; there is nothing useful left to send.
		h.logger.Warn("Chat stream ended abnormally",
			"correlation_id", utt.CorrelationID,
			"error", err,
		)
	}
	if result != nil && len(result.Sources) > 0 {
		if err := writer.WriteSources(result.Sources); err != nil {
			h.logger.Warn("Sources block write failed",
				"correlation_id", utt.CorrelationID,
				"error", err,
			)
		}
	}
}

// HandleChatSync serves POST /chat/sync: the aggregated endpoint.
//
// Thin wrapper over the same turn pipeline; the response JSON carries the
// concatenation of exactly the chunks the streaming endpoint would have
// produced.
func (h *ChatHandler) HandleChatSync(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	generated := req.EnsureDefaults()
	if generated {
		c.Header(SessionIDHeader, req.SessionID)
	}
	utt := datatypes.NewUtterance(req, !generated, c.ClientIP())

	var aggregate strings.Builder
	result, err := h.turns.HandleTurn(c.Request.Context(), utt, func(chunk string) error {
		aggregate.WriteString(chunk)
		return nil
	})
	if err != nil && aggregate.Len() == 0 {
		h.logger.Error("Sync chat turn failed with no output",
			"correlation_id", utt.CorrelationID,
			"error", err,
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to answer right now"})
		return
	}

	var sources []string
	if result != nil {
		sources = result.Sources
	}
	c.JSON(http.StatusOK, datatypes.NewChatSyncResponse(req.SessionID, aggregate.String(), sources))
}
