// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// =============================================================================
// Disambiguation State
// =============================================================================

// DisambiguationKind identifies which rule family the pending options
// belong to.
type DisambiguationKind string

const (
	DisambiguationRetailAsset  DisambiguationKind = "retail_asset"
	DisambiguationCardProduct  DisambiguationKind = "card_product"
	DisambiguationCardNetwork  DisambiguationKind = "card_network"
	DisambiguationCardCategory DisambiguationKind = "card_category"
)

// DisambiguationOption is one selectable answer in a pending follow-up.
//
// MatchKeys is the ONLY vocabulary token matching may consult. It is built
// from the option's product identity (display name parts, canonical ID
// variants), never from AnswerText: answer text is full prose and would make
// generic words like "annual" match everything.
type DisambiguationOption struct {
	Index       int      `json:"index"`
	DisplayName string   `json:"display_name"`
	CanonicalID string   `json:"canonical_id"`
	MatchKeys   []string `json:"match_keys"`
	AnswerText  string   `json:"answer_text,omitempty"`
}

// DisambiguationState is the persisted AWAITING_SELECTION record for one
// conversation key.
//
// # Description
//
// Written by a rendering step (typically the fee client) when a query is
// ambiguous between products or retail-asset variants. At most one state
// exists per conversation key; a new write overwrites any prior one. The
// state expires after the store TTL whether or not it is consumed. The key
// is always the conversation key, never the session ID: sessions can be
// absent while the conversation key is present.
//
// # Fields
//
//   - Kind: Which rule family the options belong to.
//   - Options: Ordered, 1-indexed selectable answers.
//   - Context: Opaque carry-over for re-invoking the producing client after
//     resolution (charge type, product line, and similar).
//   - Prompt: The question streamed to the user; re-emitted on reprompt.
//   - CreatedAt: Write time; informational, the store owns expiry.
type DisambiguationState struct {
	Kind      DisambiguationKind     `json:"kind"`
	Options   []DisambiguationOption `json:"options"`
	Context   map[string]string      `json:"context,omitempty"`
	Prompt    string                 `json:"prompt"`
	CreatedAt time.Time              `json:"created_at"`
}

// OptionByIndex returns the option with the given 1-based index.
func (s *DisambiguationState) OptionByIndex(n int) (DisambiguationOption, bool) {
	for _, opt := range s.Options {
		if opt.Index == n {
			return opt, true
		}
	}
	return DisambiguationOption{}, false
}
