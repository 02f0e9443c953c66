// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package locations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{ServiceURL: srv.URL, BankName: "EBL", Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestExtractQueryTypes(t *testing.T) {
	cases := []struct {
		query string
		want  datatypes.LocationType
	}{
		{"how many priority centers does ebl have", datatypes.LocationPriorityCenter},
		{"priority centres with lounge access", datatypes.LocationPriorityCenter},
		{"where is the head office", datatypes.LocationHeadOffice},
		{"atm booths in dhaka", datatypes.LocationATM},
		{"how many atms in dhaka", datatypes.LocationATM},
		{"nearest crm machine", datatypes.LocationCRM},
		{"crms in chattogram", datatypes.LocationCRM},
		{"branches in sylhet", datatypes.LocationBranch},
		{"rtdm locations", datatypes.LocationRTDM},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractQuery(tc.query).Type)
		})
	}
}

func TestExtractQueryCityCanonicalization(t *testing.T) {
	assert.Equal(t, "Dhaka", ExtractQuery("atm in dhaka").City)
	assert.Equal(t, "Chattogram", ExtractQuery("branches in chittagong").City)
	assert.Equal(t, "Chattogram", ExtractQuery("branches in chattogram").City)
	assert.Equal(t, "", ExtractQuery("where is the head office").City)
}

func TestExtractQueryCountFlag(t *testing.T) {
	assert.True(t, ExtractQuery("how many branches are there in dhaka").Type == datatypes.LocationBranch)
	assert.True(t, ExtractQuery("how many branches are there in dhaka").CountRequested)
	assert.False(t, ExtractQuery("address of the gulshan branch").CountRequested)
}

func TestAnswerCountLeadsWithCountSentence(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "priority_center", r.URL.Query().Get("type"))
		json.NewEncoder(w).Encode(datatypes.LocationsResponse{
			Total: 3,
			Locations: []datatypes.Location{
				{Name: "Gulshan Priority Center", Address: datatypes.LocationAddress{City: "Dhaka"}},
				{Name: "Dhanmondi Priority Center", Address: datatypes.LocationAddress{City: "Dhaka"}},
				{Name: "Agrabad Priority Center", Address: datatypes.LocationAddress{City: "Chattogram"}},
			},
		})
	}))

	ans, err := c.Answer(context.Background(), "how many priority centers does EBL have?")
	require.NoError(t, err)
	assert.True(t, ans.IsAuthoritative)
	assert.True(t, ans.SuppressGeneration)
	assert.Equal(t, datatypes.SourceLocation, ans.SourceTag)
	// The count sentence opens the answer and uses the response total.
	assert.True(t, len(ans.Text) > 0)
	assert.Equal(t, "EBL has 3 Priority Centers.", ans.Text[:len("EBL has 3 Priority Centers.")])
	assert.Contains(t, ans.Text, "Gulshan Priority Center")
}

func TestAnswerCountSingular(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(datatypes.LocationsResponse{
			Total:     1,
			Locations: []datatypes.Location{{Name: "EBL Head Office"}},
		})
	}))

	ans, err := c.Answer(context.Background(), "how many head offices does ebl have")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "EBL has 1 Head Office.")
}

func TestAnswerListingShowsPagingNote(t *testing.T) {
	locs := make([]datatypes.Location, DefaultLimit)
	for i := range locs {
		locs[i] = datatypes.Location{Name: "Branch"}
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Dhaka", r.URL.Query().Get("city"))
		json.NewEncoder(w).Encode(datatypes.LocationsResponse{Total: 45, Locations: locs})
	}))

	ans, err := c.Answer(context.Background(), "list branches in dhaka")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Showing 10 of 45.")
}

func TestAnswerZeroTotalIsNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(datatypes.LocationsResponse{Total: 0})
	}))

	ans, err := c.Answer(context.Background(), "branches in rangpur")
	assert.Nil(t, ans)
	assert.True(t, datatypes.IsAuthoritativeNotFound(err))
}

func TestAnswerRetriesServerErrorOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(datatypes.LocationsResponse{
			Total:     1,
			Locations: []datatypes.Location{{Name: "Motijheel Branch"}},
		})
	}))

	ans, err := c.Answer(context.Background(), "where is the motijheel branch")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Motijheel Branch")
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnswerServiceFailureIsAuthoritativeError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	ans, err := c.Answer(context.Background(), "branches in dhaka")
	assert.Nil(t, ans)
	assert.True(t, datatypes.IsAuthoritativeError(err))
	// One retry for the idempotent read, then give up.
	assert.Equal(t, int32(2), calls.Load())
}

func TestRenderLocationLine(t *testing.T) {
	resp := &datatypes.LocationsResponse{
		Total: 1,
		Locations: []datatypes.Location{{
			Name:    "Gulshan Branch",
			Address: datatypes.LocationAddress{Line1: "plot 12, Gulshan Avenue", City: "Dhaka", Postcode: "1212"},
			Phone:   "+880-2-8833244",
			Hours:   "Sun-Thu 10:00-16:00",
		}},
	}
	text := Render("EBL", datatypes.LocationQuery{Type: datatypes.LocationBranch}, resp)
	assert.Contains(t, text, "Gulshan Branch, plot 12, Gulshan Avenue, Dhaka, 1212")
	assert.Contains(t, text, "Phone: +880-2-8833244")
	assert.Contains(t, text, "Hours: Sun-Thu 10:00-16:00")
}
