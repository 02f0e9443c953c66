// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
	"github.com/AleutianAI/TellerGate/services/orchestrator/observability"
)

// =============================================================================
// Degradation Facade
// =============================================================================

// Memory fronts the primary store with the in-memory fallback. A primary
// failure degrades the turn instead of failing it: the record lands in the
// fallback and the caller gets a PersistenceDegradedError it can log and
// otherwise ignore.
//
// The fallback is write-through: every successful primary append is mirrored
// so a mid-conversation outage still sees recent history. The ring bound
// keeps the mirror from growing with session count times transcript length.
type Memory struct {
	primary  Store
	fallback *RingStore
	logger   *slog.Logger
}

// New builds the facade. primary may be nil for deployments without a
// transcript database; all traffic then goes to the fallback silently.
func New(primary Store, fallback *RingStore, logger *slog.Logger) *Memory {
	if fallback == nil {
		fallback = NewRingStore(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "session_memory"),
	}
}

// Append persists one turn record.
//
// A primary failure returns a PersistenceDegradedError AFTER the fallback
// write succeeds; callers treat it as a warning, not a turn failure.
func (m *Memory) Append(ctx context.Context, rec datatypes.TurnRecord) error {
	if m.primary == nil {
		return m.fallback.Append(ctx, rec)
	}
	if err := m.primary.Append(ctx, rec); err != nil {
		observability.DefaultMetrics.RecordMemoryFallback("append")
		m.logger.Warn("primary memory append failed, using fallback",
			"session_id", rec.SessionID, "error", err)
		_ = m.fallback.Append(ctx, rec)
		return &datatypes.PersistenceDegradedError{Op: "append", Message: err.Error()}
	}
	_ = m.fallback.Append(ctx, rec)
	return nil
}

// LastN reads the most recent history, falling back when the primary read
// fails. The error mirrors Append's contract: records plus a degradation
// error the caller may ignore.
func (m *Memory) LastN(ctx context.Context, sessionID string, n int) ([]datatypes.TurnRecord, error) {
	if m.primary == nil {
		return m.fallback.LastN(ctx, sessionID, n)
	}
	records, err := m.primary.LastN(ctx, sessionID, n)
	if err != nil {
		observability.DefaultMetrics.RecordMemoryFallback("read")
		m.logger.Warn("primary memory read failed, using fallback",
			"session_id", sessionID, "error", err)
		records, _ = m.fallback.LastN(ctx, sessionID, n)
		return records, &datatypes.PersistenceDegradedError{Op: "read", Message: err.Error()}
	}
	return records, nil
}

// Ping reports primary health; the fallback has no failure mode to report.
func (m *Memory) Ping(ctx context.Context) error {
	if m.primary == nil {
		return nil
	}
	return m.primary.Ping(ctx)
}

// Close releases the primary pool and drops the fallback buffers.
func (m *Memory) Close() error {
	var err error
	if m.primary != nil {
		err = m.primary.Close()
	}
	_ = m.fallback.Close()
	return err
}
