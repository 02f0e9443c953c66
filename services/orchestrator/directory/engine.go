// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// DefaultLimit caps the rows one phonebook answer may carry.
const DefaultLimit = 5

// engineStopwords are tokens too generic to select a designation.
var engineStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "who": true,
	"what": true, "where": true, "number": true, "phone": true,
	"email": true, "mobile": true, "contact": true, "address": true,
}

// =============================================================================
// Engine
// =============================================================================

// Engine runs the ranked multi-strategy phonebook search. Strategies run in
// a fixed order and the first non-empty result set wins; later strategies
// are never consulted, so an exact name hit cannot be diluted by fuzzy rows.
type Engine struct {
	store  Store
	limit  int
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEngine builds an engine over a store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		limit:  DefaultLimit,
		logger: logger.With("component", "directory_engine"),
		tracer: otel.Tracer("tellergate.orchestrator.directory"),
	}
}

// # Description
//
//	Search resolves a normalized search term to ranked employee rows.
//	Strategy order: exact name, employee ID, email, mobile, designation
//	tokens, weighted full text, name tokens. Results order: strategy index
//	ascending, strategy-local score descending, full name ascending.
//
// # Inputs
//   - ctx: Request-scoped context.
//   - term: Normalized search term from the classifier; empty terms return
//     no rows without touching the store.
//
// # Outputs
//   - []datatypes.Employee: Up to the engine limit, ranked. Empty means a
//     confident "not found", NOT an invitation to consult retrieval.
//   - error: Store failure. The caller renders a scripted apology; a broken
//     phonebook must not degrade into a generative guess.
func (e *Engine) Search(ctx context.Context, term string) ([]datatypes.Employee, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	ctx, span := e.tracer.Start(ctx, "directory.Search")
	defer span.End()

	type strategy struct {
		name string
		run  func(context.Context) ([]datatypes.Employee, error)
	}
	strategies := []strategy{
		{"exact_name", func(ctx context.Context) ([]datatypes.Employee, error) {
			return e.store.ByExactName(ctx, term, e.limit)
		}},
		{"employee_id", func(ctx context.Context) ([]datatypes.Employee, error) {
			if !isAlphanumeric(term) {
				return nil, nil
			}
			return e.store.ByEmployeeID(ctx, term, e.limit)
		}},
		{"email", func(ctx context.Context) ([]datatypes.Employee, error) {
			if !strings.Contains(term, "@") {
				return nil, nil
			}
			return e.store.ByEmail(ctx, term, e.limit)
		}},
		{"mobile", func(ctx context.Context) ([]datatypes.Employee, error) {
			digits, dominant := digitsOf(term)
			if !dominant || len(digits) < 5 {
				return nil, nil
			}
			return e.store.ByMobile(ctx, digits, e.limit)
		}},
		{"designation", func(ctx context.Context) ([]datatypes.Employee, error) {
			return e.byDesignation(ctx, term)
		}},
		{"full_text", func(ctx context.Context) ([]datatypes.Employee, error) {
			return e.byFullText(ctx, term)
		}},
		{"name_tokens", func(ctx context.Context) ([]datatypes.Employee, error) {
			tokens := contentTokens(term)
			if len(tokens) == 0 {
				return nil, nil
			}
			rows, err := e.store.ByNameTokens(ctx, tokens, e.limit)
			if err != nil {
				return nil, err
			}
			sortByName(rows)
			return rows, nil
		}},
	}

	for i, s := range strategies {
		rows, err := s.run(ctx)
		if err != nil {
			span.SetAttributes(attribute.String("directory.failed_strategy", s.name))
			return nil, fmt.Errorf("directory strategy %s: %w", s.name, err)
		}
		if len(rows) > 0 {
			span.SetAttributes(
				attribute.String("directory.strategy", s.name),
				attribute.Int("directory.strategy_index", i+1),
				attribute.Int("directory.rows", len(rows)),
			)
			if len(rows) > e.limit {
				rows = rows[:e.limit]
			}
			return rows, nil
		}
	}
	span.SetAttributes(attribute.String("directory.strategy", "none"))
	return nil, nil
}

// byDesignation requires every content token to appear in the designation
// and ranks by how many tokens the row matched.
func (e *Engine) byDesignation(ctx context.Context, term string) ([]datatypes.Employee, error) {
	tokens := contentTokens(term)
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := e.store.ByDesignationTokens(ctx, tokens, e.limit*2)
	if err != nil {
		return nil, err
	}
	type scored struct {
		emp   datatypes.Employee
		score int
	}
	out := make([]scored, 0, len(rows))
	for _, emp := range rows {
		score := 0
		lower := strings.ToLower(emp.Designation)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				score++
			}
		}
		out = append(out, scored{emp, score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].emp.FullName < out[j].emp.FullName
	})
	result := make([]datatypes.Employee, 0, len(out))
	for _, s := range out {
		result = append(result, s.emp)
	}
	return result, nil
}

// byFullText ranks by the store's ts_rank score, name ascending on equal
// rank.
func (e *Engine) byFullText(ctx context.Context, term string) ([]datatypes.Employee, error) {
	scored, err := e.store.ByFullText(ctx, term, e.limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Employee.FullName < scored[j].Employee.FullName
	})
	out := make([]datatypes.Employee, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Employee)
	}
	return out, nil
}

// =============================================================================
// Rendering
// =============================================================================

// RenderEmployees formats phonebook rows for the chat answer: name and
// designation first, then the contact fields that are present.
func RenderEmployees(rows []datatypes.Employee) string {
	var b strings.Builder
	for i, emp := range rows {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(emp.FullName)
		if emp.Designation != "" {
			b.WriteString(", ")
			b.WriteString(emp.Designation)
		}
		if emp.Department != "" {
			b.WriteString(", ")
			b.WriteString(emp.Department)
		}
		if emp.Division != "" {
			b.WriteString(" (")
			b.WriteString(emp.Division)
			b.WriteString(")")
		}
		if emp.Email != "" {
			b.WriteString("\nEmail: ")
			b.WriteString(emp.Email)
		}
		if emp.Mobile != "" {
			b.WriteString("\nMobile: ")
			b.WriteString(emp.Mobile)
		}
		if emp.IPPhone != "" {
			b.WriteString("\nIP Phone: ")
			b.WriteString(emp.IPPhone)
		}
	}
	return b.String()
}

// =============================================================================
// Term Helpers
// =============================================================================

func isAlphanumeric(s string) bool {
	if s == "" || strings.Contains(s, " ") {
		return false
	}
	hasDigit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return hasDigit
}

// digitsOf strips non-digits and reports whether digits dominate the term.
func digitsOf(s string) (string, bool) {
	var digits strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits.WriteByte(s[i])
		}
	}
	d := digits.String()
	return d, len(d)*2 > len(s)
}

// contentTokens keeps tokens of length >= 3 that are not query stopwords.
func contentTokens(term string) []string {
	fields := strings.Fields(strings.ToLower(term))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || engineStopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func sortByName(rows []datatypes.Employee) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FullName < rows[j].FullName
	})
}
