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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// fakeStore serves canned rows per strategy and records which strategies the
// engine actually touched.
type fakeStore struct {
	exact       []datatypes.Employee
	byID        []datatypes.Employee
	byEmail     []datatypes.Employee
	byMobile    []datatypes.Employee
	designation []datatypes.Employee
	fullText    []ScoredEmployee
	nameTokens  []datatypes.Employee
	calls       []string
	err         error
}

func (f *fakeStore) ByExactName(_ context.Context, _ string, _ int) ([]datatypes.Employee, error) {
	f.calls = append(f.calls, "exact_name")
	return f.exact, f.err
}
func (f *fakeStore) ByEmployeeID(_ context.Context, _ string, _ int) ([]datatypes.Employee, error) {
	f.calls = append(f.calls, "employee_id")
	return f.byID, f.err
}
func (f *fakeStore) ByEmail(_ context.Context, _ string, _ int) ([]datatypes.Employee, error) {
	f.calls = append(f.calls, "email")
	return f.byEmail, f.err
}
func (f *fakeStore) ByMobile(_ context.Context, _ string, _ int) ([]datatypes.Employee, error) {
	f.calls = append(f.calls, "mobile")
	return f.byMobile, f.err
}
func (f *fakeStore) ByDesignationTokens(_ context.Context, _ []string, _ int) ([]datatypes.Employee, error) {
	f.calls = append(f.calls, "designation")
	return f.designation, f.err
}
func (f *fakeStore) ByFullText(_ context.Context, _ string, _ int) ([]ScoredEmployee, error) {
	f.calls = append(f.calls, "full_text")
	return f.fullText, f.err
}
func (f *fakeStore) ByNameTokens(_ context.Context, _ []string, _ int) ([]datatypes.Employee, error) {
	f.calls = append(f.calls, "name_tokens")
	return f.nameTokens, f.err
}
func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func emp(name, designation string) datatypes.Employee {
	return datatypes.Employee{FullName: name, Designation: designation}
}

func TestSearchStopsAtFirstNonEmptyStrategy(t *testing.T) {
	store := &fakeStore{
		exact:    []datatypes.Employee{emp("Zahid Hossain", "Officer")},
		fullText: []ScoredEmployee{{Employee: emp("Someone Else", "Manager"), Score: 1}},
	}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "zahid hossain")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Zahid Hossain", rows[0].FullName)
	// Later strategies never consulted after a hit.
	assert.Equal(t, []string{"exact_name"}, store.calls)
}

func TestSearchEmployeeIDRequiresAlphanumericTerm(t *testing.T) {
	store := &fakeStore{byID: []datatypes.Employee{emp("Rafiq Islam", "SVP")}}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "e1042")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, store.calls, "employee_id")

	// A spaced name must skip the ID strategy entirely.
	store2 := &fakeStore{nameTokens: []datatypes.Employee{emp("Rafiq Islam", "SVP")}}
	e2 := NewEngine(store2, nil)
	_, err = e2.Search(context.Background(), "rafiq islam")
	require.NoError(t, err)
	assert.NotContains(t, store2.calls, "employee_id")
}

func TestSearchEmailStrategyNeedsAtSign(t *testing.T) {
	store := &fakeStore{byEmail: []datatypes.Employee{emp("Nadia Khan", "AVP")}}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "nadia.khan@ebl.com.bd")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, store.calls, "email")
}

func TestSearchMobileNormalizesDigits(t *testing.T) {
	store := &fakeStore{byMobile: []datatypes.Employee{emp("Tanvir Ahmed", "Officer")}}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "+880-171-1234567")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, store.calls, "mobile")
}

func TestSearchDesignationRanksByMatchCount(t *testing.T) {
	store := &fakeStore{designation: []datatypes.Employee{
		emp("B Person", "Deputy Manager"),
		emp("A Person", "Deputy Managing Director"),
	}}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "deputy managing director")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Three token hits beat one.
	assert.Equal(t, "A Person", rows[0].FullName)
}

func TestSearchFullTextOrdersByScoreThenName(t *testing.T) {
	store := &fakeStore{fullText: []ScoredEmployee{
		{Employee: emp("B Person", "Officer"), Score: 0.6},
		{Employee: emp("C Person", "Officer"), Score: 0.9},
		{Employee: emp("A Person", "Officer"), Score: 0.6},
	}}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "treasury operations")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "C Person", rows[0].FullName)
	assert.Equal(t, "A Person", rows[1].FullName)
	assert.Equal(t, "B Person", rows[2].FullName)
}

func TestSearchEmptyTermSkipsStore(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, store.calls)
}

func TestSearchStoreErrorIsEngineError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "zahid")
	// Store failure surfaces; it must not read as "no rows found".
	require.Error(t, err)
	assert.Nil(t, rows)
}

func TestSearchMissReturnsEmptyWithoutError(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, nil)

	rows, err := e.Search(context.Background(), "unknown person")
	require.NoError(t, err)
	assert.Empty(t, rows)
	// Every applicable strategy was tried before giving up.
	assert.Contains(t, store.calls, "exact_name")
	assert.Contains(t, store.calls, "full_text")
	assert.Contains(t, store.calls, "name_tokens")
}

func TestRenderEmployees(t *testing.T) {
	rows := []datatypes.Employee{{
		FullName:    "Zahid Hossain",
		Designation: "Senior Officer",
		Department:  "Card Division",
		Email:       "zahid@ebl.com.bd",
		Mobile:      "+8801711111111",
		IPPhone:     "4102",
	}}
	text := RenderEmployees(rows)
	assert.Contains(t, text, "Zahid Hossain, Senior Officer, Card Division")
	assert.Contains(t, text, "Email: zahid@ebl.com.bd")
	assert.Contains(t, text, "Mobile: +8801711111111")
	assert.Contains(t, text, "IP Phone: 4102")
	assert.False(t, strings.Contains(text, "()"))
}
