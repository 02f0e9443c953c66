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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
	"github.com/AleutianAI/TellerGate/services/orchestrator/observability"
)

var retrievalTracer = otel.Tracer("tellergate.orchestrator.retrieval")

// Back-pressure defaults.
const (
	// defaultMaxInFlight bounds concurrent retrieval-service calls.
	defaultMaxInFlight = 8

	// defaultAcquireWait is how long an excess caller waits for a slot
	// before failing with a retriable timeout.
	defaultAcquireWait = 3 * time.Second
)

// ClientConfig configures the retrieval client.
type ClientConfig struct {
	ServiceURL  string
	APIKey      string
	Timeout     time.Duration
	RetryCount  int
	MaxInFlight int
	AcquireWait time.Duration
}

// Client is the thin client over the knowledge retrieval service with cache
// integration.
//
// Concurrency: a weighted semaphore bounds in-flight service calls;
// duplicate concurrent misses for one fingerprint collapse through
// singleflight so a hot question costs one upstream call.
type Client struct {
	cfg     ClientConfig
	cache   Cache
	http    *http.Client
	sem     *semaphore.Weighted
	flight  singleflight.Group
	logger  *slog.Logger
}

// NewClient builds the retrieval client. cache may be NopCache{} but not nil.
func NewClient(cfg ClientConfig, cache Cache, logger *slog.Logger) (*Client, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("retrieval service URL is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if cfg.AcquireWait <= 0 {
		cfg.AcquireWait = defaultAcquireWait
	}
	cfg.ServiceURL = strings.TrimSuffix(cfg.ServiceURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		cache:  cache,
		http:   &http.Client{Timeout: cfg.Timeout},
		sem:    semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		logger: logger,
	}, nil
}

// Ping probes the retrieval service for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServiceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("retrieval service status %d", resp.StatusCode)
	}
	return nil
}

// Retrieve returns the grounded context for one utterance.
//
// # Description
//
// Computes the fingerprint, consults the cache, and on a miss calls the
// retrieval service with the deployment-fixed hybrid parameters, formats
// the result, and writes it back to the cache. One retry is applied for
// retriable failures (the read is idempotent). Identical concurrent misses
// share a single upstream call.
//
// # Inputs
//
//   - ctx: Deadline and cancellation for the whole operation.
//   - utterance: Raw user text.
//   - knowledgeBase: Target knowledge-base name.
//
// # Outputs
//
//   - *datatypes.RetrievalResult: Context block, references, cache verdict.
//   - error: *datatypes.RetrievalError after retries are exhausted.
func (c *Client) Retrieve(ctx context.Context, utterance, knowledgeBase string) (*datatypes.RetrievalResult, error) {
	ctx, span := retrievalTracer.Start(ctx, "RetrievalClient.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.kb", knowledgeBase))

	fp := Fingerprint(utterance, knowledgeBase)
	span.SetAttributes(attribute.String("retrieval.fingerprint", fp[:12]))

	if payload, ok := c.cache.Get(ctx, fp); ok {
		span.SetAttributes(attribute.Bool("retrieval.cache_hit", true))
		observability.DefaultMetrics.RecordCacheLookup(true)
		var cached datatypes.RetrievalResult
		if err := json.Unmarshal([]byte(payload), &cached); err == nil {
			cached.CacheHit = true
			return &cached, nil
		}
		// A corrupt entry is a miss; the fresh result overwrites it below.
		c.logger.Warn("Cache payload undecodable, refetching", "fingerprint", fp[:12])
	}
	observability.DefaultMetrics.RecordCacheLookup(false)

	// Collapse concurrent misses on one fingerprint.
	v, err, _ := c.flight.Do(fp, func() (interface{}, error) {
		return c.fetchWithRetry(ctx, utterance, knowledgeBase, fp)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}
	return v.(*datatypes.RetrievalResult), nil
}

// fetchWithRetry performs the upstream call with at most RetryCount retries
// for retriable failures.
func (c *Client) fetchWithRetry(ctx context.Context, utterance, knowledgeBase, fp string) (*datatypes.RetrievalResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			c.logger.Info("Retrying retrieval call", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, &datatypes.RetrievalError{Message: ctx.Err().Error(), Retryable: false}
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		result, err := c.fetchOnce(ctx, utterance, knowledgeBase)
		if err == nil {
			if raw, mErr := json.Marshal(result); mErr == nil {
				c.cache.Put(ctx, fp, string(raw))
			}
			return result, nil
		}
		lastErr = err
		if !datatypes.IsRetryableRetrieval(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// fetchOnce makes a single service call under the concurrency bound.
func (c *Client) fetchOnce(ctx context.Context, utterance, knowledgeBase string) (*datatypes.RetrievalResult, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireWait)
	defer cancel()
	if err := c.sem.Acquire(acquireCtx, 1); err != nil {
		return nil, &datatypes.RetrievalError{
			StatusCode: http.StatusTooManyRequests,
			Message:    "retrieval back-pressure wait expired",
			Retryable:  true,
		}
	}
	defer c.sem.Release(1)

	body, err := json.Marshal(datatypes.NewRetrievalRequest(utterance, knowledgeBase))
	if err != nil {
		return nil, &datatypes.RetrievalError{Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServiceURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, &datatypes.RetrievalError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &datatypes.RetrievalError{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &datatypes.RetrievalError{Message: fmt.Sprintf("read response: %v", err), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &datatypes.RetrievalError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("retrieval service returned status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500,
		}
	}

	var serviceResp datatypes.RetrievalServiceResponse
	if err := json.Unmarshal(raw, &serviceResp); err != nil {
		return nil, &datatypes.RetrievalError{Message: fmt.Sprintf("decode response: %v", err)}
	}

	return &datatypes.RetrievalResult{
		Context:       FormatContext(&serviceResp),
		Sources:       serviceResp.References,
		KnowledgeBase: knowledgeBase,
	}, nil
}
