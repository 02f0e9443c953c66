// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package directory implements the ranked phonebook query engine and its
// PostgreSQL-backed store.
//
// The engine is stateless over employee rows; the rows themselves are owned
// by the directory database and maintained by tooling outside this service.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Store Interface
// =============================================================================

// ScoredEmployee pairs a row with its strategy-local relevance score.
type ScoredEmployee struct {
	Employee datatypes.Employee
	Score    float64
}

// Store is the data access surface the query engine needs. One method per
// strategy keeps each SQL shape independently testable and lets the engine
// stay free of SQL entirely.
type Store interface {
	ByExactName(ctx context.Context, name string, limit int) ([]datatypes.Employee, error)
	ByEmployeeID(ctx context.Context, id string, limit int) ([]datatypes.Employee, error)
	ByEmail(ctx context.Context, email string, limit int) ([]datatypes.Employee, error)
	ByMobile(ctx context.Context, digits string, limit int) ([]datatypes.Employee, error)
	ByDesignationTokens(ctx context.Context, tokens []string, limit int) ([]datatypes.Employee, error)
	ByFullText(ctx context.Context, term string, limit int) ([]ScoredEmployee, error)
	ByNameTokens(ctx context.Context, tokens []string, limit int) ([]datatypes.Employee, error)
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// SQL Store
// =============================================================================

// employeeColumns is the shared select list. The search_vector column stays
// database-side.
const employeeColumns = "employee_id, full_name, designation, department, division, email, mobile, ip_phone"

// EmployeesSchema is the reference DDL for the phonebook table, including the
// weighted search vector (name weight A, designation/department B,
// division/email C). The service never runs it; row ownership and schema
// management live with the directory ETL. It is exported for integration
// tests and local development databases.
const EmployeesSchema = `
CREATE TABLE IF NOT EXISTS employees (
	employee_id  TEXT PRIMARY KEY,
	full_name    TEXT NOT NULL,
	designation  TEXT NOT NULL DEFAULT '',
	department   TEXT NOT NULL DEFAULT '',
	division     TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	mobile       TEXT NOT NULL DEFAULT '',
	ip_phone     TEXT NOT NULL DEFAULT '',
	search_vector tsvector GENERATED ALWAYS AS (
		setweight(to_tsvector('simple', coalesce(full_name, '')), 'A') ||
		setweight(to_tsvector('simple', coalesce(designation, '') || ' ' || coalesce(department, '')), 'B') ||
		setweight(to_tsvector('simple', coalesce(division, '') || ' ' || coalesce(email, '')), 'C')
	) STORED
);
CREATE INDEX IF NOT EXISTS idx_employees_search_vector ON employees USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_employees_full_name ON employees (lower(full_name));
`

// SQLStore is the PostgreSQL implementation of Store.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLStore opens the directory database and verifies connectivity.
//
// The pool is bounded: the directory serves at most a handful of lookups per
// turn and must not starve the session-memory pool on shared instances.
func NewSQLStore(connString string, logger *slog.Logger) (*SQLStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("directory connection string is empty")
	}
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open directory database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping directory database: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, logger: logger}, nil
}

// EnsureSchema creates the reference schema. Intended for tests and local
// development only.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, EmployeesSchema)
	return err
}

// Ping verifies database reachability for health reporting.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ByExactName matches the full name case-insensitively.
func (s *SQLStore) ByExactName(ctx context.Context, name string, limit int) ([]datatypes.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE lower(full_name) = lower($1) ORDER BY full_name ASC LIMIT $2`, employeeColumns)
	return s.queryEmployees(ctx, query, name, limit)
}

// ByEmployeeID matches the employee identifier exactly (IDs are stored
// uppercase-insensitively).
func (s *SQLStore) ByEmployeeID(ctx context.Context, id string, limit int) ([]datatypes.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE lower(employee_id) = lower($1) ORDER BY full_name ASC LIMIT $2`, employeeColumns)
	return s.queryEmployees(ctx, query, id, limit)
}

// ByEmail matches the stored email case-insensitively, on the full address
// or its local part.
func (s *SQLStore) ByEmail(ctx context.Context, email string, limit int) ([]datatypes.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE lower(email) = lower($1) OR lower(email) LIKE lower($1) || '@%%' ORDER BY full_name ASC LIMIT $2`, employeeColumns)
	return s.queryEmployees(ctx, query, email, limit)
}

// ByMobile matches on digits only; separators in the stored value are
// ignored, and a suffix match covers numbers stored with country codes.
func (s *SQLStore) ByMobile(ctx context.Context, digits string, limit int) ([]datatypes.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees
		WHERE regexp_replace(mobile, '[^0-9]', '', 'g') LIKE '%%' || $1
		ORDER BY full_name ASC LIMIT $2`, employeeColumns)
	return s.queryEmployees(ctx, query, digits, limit)
}

// ByDesignationTokens returns rows whose designation contains every token as
// a substring, case-insensitively. Scoring happens engine-side.
func (s *SQLStore) ByDesignationTokens(ctx context.Context, tokens []string, limit int) ([]datatypes.Employee, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT %s FROM employees WHERE `, employeeColumns)
	args := make([]interface{}, 0, len(tokens)+1)
	for i, tok := range tokens {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "designation ILIKE '%%' || $%d || '%%'", i+1)
		args = append(args, tok)
	}
	fmt.Fprintf(&sb, " ORDER BY full_name ASC LIMIT $%d", len(tokens)+1)
	args = append(args, limit)
	return s.queryEmployees(ctx, sb.String(), args...)
}

// ByFullText ranks rows against the weighted search vector.
func (s *SQLStore) ByFullText(ctx context.Context, term string, limit int) ([]ScoredEmployee, error) {
	query := fmt.Sprintf(`SELECT %s, ts_rank(search_vector, plainto_tsquery('simple', $1)) AS score
		FROM employees
		WHERE search_vector @@ plainto_tsquery('simple', $1)
		ORDER BY score DESC, full_name ASC
		LIMIT $2`, employeeColumns)

	rows, err := s.db.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text query: %w", err)
	}
	defer rows.Close()

	var out []ScoredEmployee
	for rows.Next() {
		var se ScoredEmployee
		if err := scanEmployee(rows, &se.Employee, &se.Score); err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

// ByNameTokens returns rows whose full name contains every token as a
// substring, case-insensitively.
func (s *SQLStore) ByNameTokens(ctx context.Context, tokens []string, limit int) ([]datatypes.Employee, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT %s FROM employees WHERE `, employeeColumns)
	args := make([]interface{}, 0, len(tokens)+1)
	for i, tok := range tokens {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "full_name ILIKE '%%' || $%d || '%%'", i+1)
		args = append(args, tok)
	}
	fmt.Fprintf(&sb, " ORDER BY full_name ASC LIMIT $%d", len(tokens)+1)
	args = append(args, limit)
	return s.queryEmployees(ctx, sb.String(), args...)
}

// queryEmployees runs a select over employeeColumns and scans the rows.
func (s *SQLStore) queryEmployees(ctx context.Context, query string, args ...interface{}) ([]datatypes.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory query: %w", err)
	}
	defer rows.Close()

	var out []datatypes.Employee
	for rows.Next() {
		var e datatypes.Employee
		if err := scanEmployee(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanEmployee scans the shared column list plus optional trailing extras
// (the full-text score).
func scanEmployee(rows *sql.Rows, e *datatypes.Employee, extras ...interface{}) error {
	dest := []interface{}{
		&e.EmployeeID, &e.FullName, &e.Designation, &e.Department,
		&e.Division, &e.Email, &e.Mobile, &e.IPPhone,
	}
	dest = append(dest, extras...)
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scan employee row: %w", err)
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
