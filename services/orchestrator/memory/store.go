// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory implements the append-only session transcript store: a
// PostgreSQL primary plus a bounded in-memory fallback that keeps turns
// flowing through a database outage.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store is the transcript persistence surface. Append is strictly
// append-only; LastN returns the most recent n records in chronological
// order.
type Store interface {
	Append(ctx context.Context, rec datatypes.TurnRecord) error
	LastN(ctx context.Context, sessionID string, n int) ([]datatypes.TurnRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// SQL Store
// =============================================================================

// SessionTurnsSchema is the reference DDL for the transcript table. The seq
// column gives a total order within a session even when two records share a
// timestamp. Exported for integration tests and local development databases.
const SessionTurnsSchema = `
CREATE TABLE IF NOT EXISTS session_turns (
	seq        BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_turns_session_seq ON session_turns (session_id, seq DESC);
`

// SQLStore is the PostgreSQL implementation of Store.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLStore opens the session-memory database and verifies connectivity.
func NewSQLStore(connString string, logger *slog.Logger) (*SQLStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("session memory connection string is empty")
	}
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open session memory database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping session memory database: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, logger: logger}, nil
}

// EnsureSchema creates the reference schema. Intended for tests and local
// development only.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, SessionTurnsSchema)
	return err
}

// Append inserts one transcript record.
func (s *SQLStore) Append(ctx context.Context, rec datatypes.TurnRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_turns (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		rec.SessionID, rec.Role, rec.Content, createdAt)
	if err != nil {
		return fmt.Errorf("append session turn: %w", err)
	}
	return nil
}

// LastN returns the most recent n records for a session, oldest first. The
// inner select pages backwards by seq; the outer re-sorts into reading
// order.
func (s *SQLStore) LastN(ctx context.Context, sessionID string, n int) ([]datatypes.TurnRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, role, content, created_at FROM (
			SELECT seq, session_id, role, content, created_at
			FROM session_turns
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("read session turns: %w", err)
	}
	defer rows.Close()

	var out []datatypes.TurnRecord
	for rows.Next() {
		var rec datatypes.TurnRecord
		if err := rows.Scan(&rec.SessionID, &rec.Role, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ping verifies database reachability for health reporting.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
