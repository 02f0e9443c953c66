// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package disambiguation implements the pending-selection state machine: a
// Redis-backed store with an in-process fallback, and the resolver that maps
// a follow-up utterance onto exactly one pending option or none.
package disambiguation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Resolver
// =============================================================================

// Outcome is the resolver's verdict for one follow-up utterance.
type Outcome int

const (
	// OutcomeResolved selects exactly one option.
	OutcomeResolved Outcome = iota
	// OutcomeReprompt means the reply was empty, ambiguous, or matched
	// nothing; the prompt is re-emitted and the state kept.
	OutcomeReprompt
)

// resolverStopwords are fee-domain words too generic to identify an option.
// They appear in nearly every candidate's vocabulary and in nearly every
// follow-up, so counting them would make everything match everything.
var resolverStopwords = map[string]bool{
	"fee": true, "card": true, "bdt": true, "usd": true, "per": true,
	"transaction": true, "amount": true, "annual": true, "fees": true,
	"charge": true, "charges": true, "year": true, "month": true,
	"rate": true, "percent": true, "with": true, "for": true, "the": true,
	"and": true, "of": true, "to": true, "is": true, "on": true, "a": true,
	"an": true, "interest": true, "loan": true, "credit": true, "debit": true,
}

var standaloneNumber = regexp.MustCompile(`(?:^|[^0-9])([0-9]+)(?:[^0-9]|$)`)

// # Description
//
//	Resolve maps a follow-up utterance onto the pending options. A
//	standalone number in range wins outright. Otherwise the utterance is
//	tokenized and scored against each option's match keys; only a unique
//	strict maximum with a positive score resolves. Anything else reprompts:
//	guessing between close options would silently answer the wrong question.
//
// # Inputs
//   - state: The pending AWAITING_SELECTION state.
//   - utterance: The user's follow-up text.
//
// # Outputs
//   - datatypes.DisambiguationOption: The selected option when resolved.
//   - Outcome: OutcomeResolved or OutcomeReprompt.
func Resolve(state *datatypes.DisambiguationState, utterance string) (datatypes.DisambiguationOption, Outcome) {
	if state == nil || len(state.Options) == 0 {
		return datatypes.DisambiguationOption{}, OutcomeReprompt
	}

	if n, ok := firstNumber(utterance); ok && n >= 1 && n <= len(state.Options) {
		if opt, found := state.OptionByIndex(n); found {
			return opt, OutcomeResolved
		}
	}

	tokens := selectionTokens(utterance)
	if len(tokens) == 0 {
		return datatypes.DisambiguationOption{}, OutcomeReprompt
	}

	scores := make([]int, len(state.Options))
	for _, tok := range tokens {
		for i, opt := range state.Options {
			if optionMatches(opt, tok) {
				scores[i]++
			}
		}
	}

	best, bestIdx, unique := 0, -1, false
	for i, s := range scores {
		switch {
		case s > best:
			best, bestIdx, unique = s, i, true
		case s == best && s > 0:
			unique = false
		}
	}
	if best > 0 && unique {
		return state.Options[bestIdx], OutcomeResolved
	}
	return datatypes.DisambiguationOption{}, OutcomeReprompt
}

// optionMatches reports whether the token is a case-insensitive substring of
// any match key. Match keys carry product identity only; answer prose never
// participates.
func optionMatches(opt datatypes.DisambiguationOption, token string) bool {
	for _, key := range opt.MatchKeys {
		if strings.Contains(strings.ToLower(key), token) {
			return true
		}
	}
	return false
}

// selectionTokens tokenizes the utterance and drops short tokens and the
// domain stopwords.
func selectionTokens(utterance string) []string {
	norm := strings.ToLower(utterance)
	fields := strings.FieldsFunc(norm, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || resolverStopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func firstNumber(utterance string) (int, bool) {
	m := standaloneNumber.FindStringSubmatch(utterance)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
