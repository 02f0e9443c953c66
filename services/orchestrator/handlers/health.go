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
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Probe checks one collaborator's reachability for the detailed health
// report. Check must respect its context deadline.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves GET /health and GET /health/detailed.
type HealthHandler struct {
	probes  []Probe
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. timeout bounds each individual
// probe, not the whole report; probes run in parallel.
func NewHealthHandler(probes []Probe, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{probes: probes, timeout: timeout, logger: logger}
}

// HandleLiveness serves GET /health: process-up only, no dependencies.
func (h *HealthHandler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "tellergate-orchestrator",
	})
}

// HandleDetailed serves GET /health/detailed.
//
// Each collaborator is probed in parallel with its own deadline. The report
// always includes every probe; a degraded collaborator flips the overall
// status and the HTTP code to 503 so load balancers can act on it.
func (h *HealthHandler) HandleDetailed(c *gin.Context) {
	type probeResult struct {
		name   string
		status string
	}

	results := make([]probeResult, len(h.probes))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, probe := range h.probes {
		i, probe := i, probe
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			status := "ok"
			if err := probe.Check(pctx); err != nil {
				status = "unreachable"
				h.logger.Warn("Health probe failed",
					"target", probe.Name,
					"error", err,
				)
			}
			mu.Lock()
			results[i] = probeResult{name: probe.Name, status: status}
			mu.Unlock()
			return nil
		})
	}
	// Probes never return errors into the group; Wait only orders completion.
	_ = g.Wait()

	targets := make(map[string]string, len(results))
	overall := "ok"
	for _, r := range results {
		targets[r.name] = r.status
		if r.status != "ok" {
			overall = "degraded"
		}
	}

	code := http.StatusOK
	if overall != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  overall,
		"service": "tellergate-orchestrator",
		"targets": targets,
	})
}
