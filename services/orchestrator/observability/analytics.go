// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// TurnEvent is one per-turn analytics point.
type TurnEvent struct {
	Route           string
	Authoritative   bool
	CacheHit        bool
	LatencyMillis   int64
	Chunks          int
	AssistantChars  int
	CorrelationID   string
}

// Analytics writes per-turn points to InfluxDB. The write API is
// non-blocking; points are batched and flushed in the background so a slow
// or absent Influx never delays a turn.
type Analytics struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger
}

// AnalyticsConfig configures the Influx sink. An empty URL disables it.
type AnalyticsConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewAnalytics builds the sink, or returns nil when no URL is configured.
// A nil *Analytics is valid; its methods no-op.
func NewAnalytics(cfg AnalyticsConfig, logger *slog.Logger) *Analytics {
	if cfg.URL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Drain async write errors so they surface in logs instead of piling up.
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("Turn analytics write failed", "error", err)
		}
	}()

	logger.Info("Turn analytics sink connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return &Analytics{client: client, writeAPI: writeAPI, logger: logger}
}

// RecordTurn queues one analytics point.
func (a *Analytics) RecordTurn(ev TurnEvent) {
	if a == nil {
		return
	}
	point := influxdb2.NewPoint(
		"chat_turns",
		map[string]string{
			"route":         ev.Route,
			"authoritative": boolTag(ev.Authoritative),
			"cache":         boolTag(ev.CacheHit),
		},
		map[string]interface{}{
			"latency_ms":      ev.LatencyMillis,
			"chunks":          ev.Chunks,
			"chars":           ev.AssistantChars,
			"correlation_id":  ev.CorrelationID,
		},
		time.Now(),
	)
	a.writeAPI.WritePoint(point)
}

// Close flushes pending points and releases the client.
func (a *Analytics) Close() {
	if a == nil {
		return
	}
	a.writeAPI.Flush()
	a.client.Close()
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
