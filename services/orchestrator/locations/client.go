// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package locations implements the location client: it turns a
// location-routed utterance into one /locations call and renders the result
// authoritatively, count sentence first when the user asked "how many".
package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/TellerGate/services/orchestrator/classifier"
	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

const sourceName = datatypes.SourceLocation

// DefaultLimit caps one page of location rows in a chat answer.
const DefaultLimit = 10

// =============================================================================
// Client
// =============================================================================

// ClientConfig configures the location client.
type ClientConfig struct {
	ServiceURL string
	APIKey     string
	BankName   string
	Timeout    time.Duration
}

// Client queries the unified /locations endpoint. Responses are
// authoritative: a service failure is a location failure, never a reason to
// consult retrieval instead.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewClient builds a location client.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("location service URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BankName == "" {
		cfg.BankName = "EBL"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "location_client"),
		tracer:     otel.Tracer("tellergate.orchestrator.locations"),
	}, nil
}

// # Description
//
//	Answer handles one location-routed utterance: extract the facility type
//	and filters, call the service once (with one retry on transient
//	failure), and render the rows. Count questions lead with the count
//	sentence built from the response total, not from the page length.
//
// # Outputs
//   - *datatypes.RenderedAnswer: Always authoritative.
//   - error: AuthoritativeNotFoundError when nothing matched, or
//     AuthoritativeError on service failure.
func (c *Client) Answer(ctx context.Context, utterance string) (*datatypes.RenderedAnswer, error) {
	ctx, span := c.tracer.Start(ctx, "locations.Answer")
	defer span.End()

	query := ExtractQuery(utterance)
	span.SetAttributes(
		attribute.String("locations.type", string(query.Type)),
		attribute.Bool("locations.count", query.CountRequested),
	)

	resp, err := c.query(ctx, query)
	if err != nil {
		if ae := datatypes.GetAuthoritativeError(err); ae != nil && ae.Retryable {
			c.logger.Warn("location query failed, retrying once", "error", err)
			resp, err = c.query(ctx, query)
		}
		if err != nil {
			return nil, err
		}
	}

	if resp.Total == 0 {
		return nil, &datatypes.AuthoritativeNotFoundError{
			Source:  sourceName,
			Message: fmt.Sprintf("no %s matched the query", query.Type.DisplayName()),
		}
	}
	return &datatypes.RenderedAnswer{
		Text:               Render(c.cfg.BankName, query, resp),
		SourceTag:          sourceName,
		IsAuthoritative:    true,
		SuppressGeneration: true,
	}, nil
}

// Ping probes the location service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServiceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("location service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("location service health returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) query(ctx context.Context, q datatypes.LocationQuery) (*datatypes.LocationsResponse, error) {
	params := url.Values{}
	params.Set("type", string(q.Type))
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Region != "" {
		params.Set("region", q.Region)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.ServiceURL+"/locations?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build location request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &datatypes.AuthoritativeError{
			Source: sourceName, Message: err.Error(), Retryable: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &datatypes.AuthoritativeError{
			Source:     sourceName,
			StatusCode: resp.StatusCode,
			Message:    string(slurp),
			Retryable:  resp.StatusCode >= 500,
		}
	}
	var out datatypes.LocationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &datatypes.AuthoritativeError{
			Source:     sourceName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed locations response: %v", err),
		}
	}
	return &out, nil
}

// =============================================================================
// Query Extraction
// =============================================================================

// typeVocabulary maps facility nouns to location types, most specific phrase
// first so "priority center" never reads as a generic branch.
var typeVocabulary = []struct {
	Phrase string
	Type   datatypes.LocationType
}{
	{"priority center", datatypes.LocationPriorityCenter},
	{"priority centre", datatypes.LocationPriorityCenter},
	{"priority banking", datatypes.LocationPriorityCenter},
	{"head office", datatypes.LocationHeadOffice},
	{"headquarters", datatypes.LocationHeadOffice},
	{"sub branch", datatypes.LocationBranch},
	{"branch", datatypes.LocationBranch},
	{"crm", datatypes.LocationCRM},
	{"cash recycling", datatypes.LocationCRM},
	{"rtdm", datatypes.LocationRTDM},
	{"deposit machine", datatypes.LocationRTDM},
	{"atm", datatypes.LocationATM},
	{"booth", datatypes.LocationATM},
}

// knownCities are the deployment's city filters, checked as whole tokens.
var knownCities = []string{
	"dhaka", "chattogram", "chittagong", "sylhet", "khulna", "rajshahi",
	"barishal", "rangpur", "mymensingh", "comilla", "cumilla", "gazipur",
	"narayanganj", "bogra", "bogura", "jessore", "jashore", "cox s bazar",
}

// cityCanonical folds alternate spellings onto the service's canonical city.
var cityCanonical = map[string]string{
	"chittagong": "Chattogram",
	"bogra":      "Bogura",
	"jessore":    "Jashore",
	"comilla":    "Cumilla",
	"cox s bazar": "Cox's Bazar",
}

// ExtractQuery parses a location-routed utterance into the /locations
// parameter set. The facility type defaults to branch when only a count or
// where pattern matched the route.
func ExtractQuery(utterance string) datatypes.LocationQuery {
	norm := normalize(utterance)
	q := datatypes.LocationQuery{
		Type:           datatypes.LocationBranch,
		Limit:          DefaultLimit,
		CountRequested: classifier.IsCountQuery(utterance),
	}
	for _, entry := range typeVocabulary {
		if containsPhrase(norm, entry.Phrase) {
			q.Type = entry.Type
			break
		}
	}
	for _, city := range knownCities {
		if containsPhrase(norm, city) {
			canonical, ok := cityCanonical[city]
			if !ok {
				canonical = titleCase(city)
			}
			q.City = canonical
			break
		}
	}
	// A count answer comes from the response total; one page of rows is
	// still requested so the listing can follow the count sentence.
	return q
}

// =============================================================================
// Rendering
// =============================================================================

// Render formats the answer. Count questions lead with
// "<bank> has N <Type>(s)"; listings show name, address, and contact lines
// straight from the payload.
func Render(bankName string, q datatypes.LocationQuery, resp *datatypes.LocationsResponse) string {
	var b []byte
	if q.CountRequested {
		b = appendCountSentence(b, bankName, q, resp.Total)
		if len(resp.Locations) > 0 {
			b = append(b, '\n')
		}
	}
	for i, loc := range resp.Locations {
		if i > 0 || q.CountRequested {
			b = append(b, '\n')
		}
		b = appendLocation(b, loc)
	}
	if resp.Total > len(resp.Locations) && !q.CountRequested {
		b = append(b, '\n', '\n')
		b = append(b, fmt.Sprintf("Showing %d of %d.", len(resp.Locations), resp.Total)...)
	}
	return string(b)
}

func appendCountSentence(b []byte, bankName string, q datatypes.LocationQuery, total int) []byte {
	noun := q.Type.DisplayName()
	if total != 1 {
		noun = pluralType(q.Type)
	}
	sentence := fmt.Sprintf("%s has %d %s", bankName, total, noun)
	if q.City != "" {
		sentence += " in " + q.City
	}
	return append(b, sentence+"."...)
}

func appendLocation(b []byte, loc datatypes.Location) []byte {
	b = append(b, loc.Name...)
	if addr := formatAddress(loc.Address); addr != "" {
		b = append(b, ", "...)
		b = append(b, addr...)
	}
	if loc.Phone != "" {
		b = append(b, " | Phone: "...)
		b = append(b, loc.Phone...)
	}
	if loc.Hours != "" {
		b = append(b, " | Hours: "...)
		b = append(b, loc.Hours...)
	}
	return b
}

func formatAddress(a datatypes.LocationAddress) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Line1, a.City, a.Region, a.Postcode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func pluralType(t datatypes.LocationType) string {
	switch t {
	case datatypes.LocationBranch:
		return "Branches"
	case datatypes.LocationHeadOffice:
		return "Head Offices"
	}
	return t.DisplayName() + "s"
}

// =============================================================================
// Text Helpers
// =============================================================================

func normalize(text string) string {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			out = append(out, c)
		default:
			if len(out) > 0 && out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

// containsPhrase matches on word boundaries, tolerating a plural suffix on
// the final word so "priority centers", "atms", and "branches" all hit their
// singular vocabulary entries.
func containsPhrase(norm, phrase string) bool {
	idx := 0
	for {
		i := indexFrom(norm, phrase, idx)
		if i < 0 {
			return false
		}
		if (i == 0 || norm[i-1] == ' ') && pluralBoundary(norm, i+len(phrase)) {
			return true
		}
		idx = i + 1
	}
}

// pluralBoundary reports whether the text at end terminates the matched noun:
// end of string or a space, optionally after an "s" or "es" suffix.
func pluralBoundary(norm string, end int) bool {
	for _, suffix := range []string{"", "s", "es"} {
		stop := end + len(suffix)
		if stop > len(norm) || norm[end:stop] != suffix {
			continue
		}
		if stop == len(norm) || norm[stop] == ' ' {
			return true
		}
	}
	return false
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func titleCase(s string) string {
	out := []byte(s)
	upper := true
	for i := 0; i < len(out); i++ {
		if out[i] == ' ' {
			upper = true
			continue
		}
		if upper && out[i] >= 'a' && out[i] <= 'z' {
			out[i] -= 'a' - 'A'
		}
		upper = false
	}
	return string(out)
}
