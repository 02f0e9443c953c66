// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics and the InfluxDB turn
// analytics sink for the orchestrator.
//
// Metrics are exposed via /metrics. All recording methods are nil-receiver
// safe so collaborator packages can record unconditionally; a deployment
// that never calls InitMetrics simply records nothing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace      = "tellergate"
	orchestratorSubsystem = "orchestrator"
)

// TurnMetrics holds all Prometheus metrics for chat turn processing.
//
// # Thread Safety
//
// All operations are thread-safe via Prometheus's internal locking.
type TurnMetrics struct {
	// TurnsTotal counts completed turns.
	// Labels: route (fee_schedule, location_service, directory,
	// disambiguation, generative, scripted), status (success, error)
	TurnsTotal *prometheus.CounterVec

	// AuthoritativeTurnsTotal counts turns answered verbatim from a
	// deterministic source. Labels: source
	AuthoritativeTurnsTotal *prometheus.CounterVec

	// CacheLookupsTotal counts retrieval-cache lookups. Labels: result (hit, miss)
	CacheLookupsTotal *prometheus.CounterVec

	// DisambiguationTotal counts state-machine outcomes.
	// Labels: outcome (prompted, resolved, reprompted, expired)
	DisambiguationTotal *prometheus.CounterVec

	// TimeToFirstChunkSeconds measures latency to the first streamed chunk.
	// Labels: route
	TimeToFirstChunkSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: route, status
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open chat streams.
	ActiveStreams prometheus.Gauge

	// ErrorsTotal counts mapped error classes.
	// Labels: class (validation, authoritative_not_found, authoritative_error,
	// retrieval, generative, persistence_degraded, disambiguation_store)
	ErrorsTotal *prometheus.CounterVec

	// MemoryFallbackTotal counts session-memory operations served by the
	// in-memory fallback. Labels: op (append, read)
	MemoryFallbackTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance. Initialized by InitMetrics();
// nil until then, which disables recording.
var DefaultMetrics *TurnMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// startup.
func InitMetrics() *TurnMetrics {
	DefaultMetrics = &TurnMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "turns_total",
				Help:      "Completed chat turns by route and status.",
			},
			[]string{"route", "status"},
		),
		AuthoritativeTurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "authoritative_turns_total",
				Help:      "Turns answered verbatim from a deterministic source.",
			},
			[]string{"source"},
		),
		CacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "retrieval_cache_lookups_total",
				Help:      "Retrieval cache lookups by result.",
			},
			[]string{"result"},
		),
		DisambiguationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "disambiguation_outcomes_total",
				Help:      "Disambiguation state machine outcomes.",
			},
			[]string{"outcome"},
		),
		TimeToFirstChunkSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "time_to_first_chunk_seconds",
				Help:      "Latency from request receipt to first streamed chunk.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"route"},
		),
		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total duration of one chat stream.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"route", "status"},
		),
		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "active_streams",
				Help:      "Currently open chat streams.",
			},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "errors_total",
				Help:      "Errors by taxonomy class.",
			},
			[]string{"class"},
		),
		MemoryFallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "memory_fallback_total",
				Help:      "Session-memory operations served by the in-memory fallback.",
			},
			[]string{"op"},
		),
	}
	return DefaultMetrics
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordTurn records one completed turn.
func (m *TurnMetrics) RecordTurn(route string, success bool) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(route, statusLabel(success)).Inc()
}

// RecordAuthoritative records a verbatim-rendered turn.
func (m *TurnMetrics) RecordAuthoritative(source string) {
	if m == nil {
		return
	}
	m.AuthoritativeTurnsTotal.WithLabelValues(source).Inc()
}

// RecordCacheLookup records one retrieval-cache lookup.
func (m *TurnMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordDisambiguation records one state-machine outcome.
func (m *TurnMetrics) RecordDisambiguation(outcome string) {
	if m == nil {
		return
	}
	m.DisambiguationTotal.WithLabelValues(outcome).Inc()
}

// RecordTimeToFirstChunk records first-chunk latency.
func (m *TurnMetrics) RecordTimeToFirstChunk(route string, seconds float64) {
	if m == nil {
		return
	}
	m.TimeToFirstChunkSeconds.WithLabelValues(route).Observe(seconds)
}

// RecordStreamDuration records total stream duration.
func (m *TurnMetrics) RecordStreamDuration(route string, seconds float64, success bool) {
	if m == nil {
		return
	}
	m.StreamDurationSeconds.WithLabelValues(route, statusLabel(success)).Observe(seconds)
}

// StreamStarted increments the active-stream gauge.
func (m *TurnMetrics) StreamStarted() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamEnded decrements the active-stream gauge.
func (m *TurnMetrics) StreamEnded() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// RecordError records one mapped error class.
func (m *TurnMetrics) RecordError(class string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(class).Inc()
}

// RecordMemoryFallback records a memory operation served by the fallback.
func (m *TurnMetrics) RecordMemoryFallback(op string) {
	if m == nil {
		return
	}
	m.MemoryFallbackTotal.WithLabelValues(op).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
