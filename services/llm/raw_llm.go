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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var rawTracer = otel.Tracer("tellergate.llm.raw")

// RawClient streams from a newline-delimited-JSON chat endpoint
// (Ollama-style /api/chat wire shape). It exists for deployments whose
// gateway does not speak the OpenAI protocol.
type RawClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// RawConfig configures the raw streaming backend.
type RawConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewRawClient validates the endpoint configuration and builds the client.
func NewRawClient(cfg RawConfig) (*RawClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("raw generative backend URL not set")
	}
	model := cfg.Model
	if model == "" {
		slog.Warn("Generative model not set for raw backend; server default applies")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	slog.Info("Initializing raw generative client", "base_url", baseURL, "model", model)
	return &RawClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

// Wire shapes for the NDJSON chat endpoint.
type rawChatRequest struct {
	Model    string                 `json:"model,omitempty"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type rawChatChunk struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// ChatStream implements Client by reading NDJSON lines until the done flag.
func (r *RawClient) ChatStream(ctx context.Context, messages []Message,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := rawTracer.Start(ctx, "RawClient.ChatStream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", r.model))

	options := make(map[string]interface{})
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}

	payload := rawChatRequest{
		Model:    r.model,
		Messages: messages,
		Stream:   true,
		Options:  options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("generative request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("generative backend returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk rawChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			span.RecordError(err)
			_ = callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			err := fmt.Errorf("generative backend error: %s", chunk.Error)
			span.RecordError(err)
			span.SetStatus(codes.Error, "backend error mid-stream")
			_ = callback(StreamEvent{Type: StreamEventError, Error: chunk.Error})
			return err
		}
		if chunk.Message.Content != "" {
			if err := callback(StreamEvent{Type: StreamEventToken, Content: chunk.Message.Content}); err != nil {
				return err
			}
		}
		if chunk.Done {
			return callback(StreamEvent{Type: StreamEventDone})
		}
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream read failed")
		_ = callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
		return fmt.Errorf("read generative stream: %w", err)
	}

	// Stream ended without a done marker; treat as complete.
	return callback(StreamEvent{Type: StreamEventDone})
}

// Ping verifies the backend is reachable for health reporting. Any HTTP
// response counts; only transport failure is unhealthy.
func (r *RawClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generative backend unreachable: %w", err)
	}
	return resp.Body.Close()
}

var _ Client = (*RawClient)(nil)
