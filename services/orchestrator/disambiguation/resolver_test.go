// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package disambiguation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

func pendingCards() *datatypes.DisambiguationState {
	return &datatypes.DisambiguationState{
		Kind: datatypes.DisambiguationCardProduct,
		Options: []datatypes.DisambiguationOption{
			{Index: 1, DisplayName: "UnionPay Classic", CanonicalID: "UnionPay Classic",
				MatchKeys: []string{"unionpay classic", "union pay classic", "classic"}},
			{Index: 2, DisplayName: "UnionPay Gold", CanonicalID: "UnionPay Gold",
				MatchKeys: []string{"unionpay gold", "union pay gold", "gold"}},
			{Index: 3, DisplayName: "UnionPay Platinum", CanonicalID: "UnionPay Platinum",
				MatchKeys: []string{"unionpay platinum", "union pay platinum", "platinum"}},
		},
	}
}

func TestResolveByNumber(t *testing.T) {
	opt, outcome := Resolve(pendingCards(), "2")
	assert.Equal(t, OutcomeResolved, outcome)
	assert.Equal(t, "UnionPay Gold", opt.DisplayName)

	opt, outcome = Resolve(pendingCards(), "option 3 please")
	assert.Equal(t, OutcomeResolved, outcome)
	assert.Equal(t, "UnionPay Platinum", opt.DisplayName)
}

func TestResolveNumberOutOfRangeFallsToTokens(t *testing.T) {
	// "7" selects nothing; the token "gold" still resolves.
	opt, outcome := Resolve(pendingCards(), "7 gold")
	assert.Equal(t, OutcomeResolved, outcome)
	assert.Equal(t, "UnionPay Gold", opt.DisplayName)
}

func TestResolveByToken(t *testing.T) {
	opt, outcome := Resolve(pendingCards(), "the platinum one")
	assert.Equal(t, OutcomeResolved, outcome)
	assert.Equal(t, "UnionPay Platinum", opt.DisplayName)
}

func TestResolveStopwordsNeverMatch(t *testing.T) {
	// Every token here is a stopword or too short; nothing can resolve.
	_, outcome := Resolve(pendingCards(), "the annual fee for my card")
	assert.Equal(t, OutcomeReprompt, outcome)
}

func TestResolveTieIsAmbiguous(t *testing.T) {
	// "unionpay" is a substring of every option's keys: three-way tie.
	_, outcome := Resolve(pendingCards(), "unionpay")
	assert.Equal(t, OutcomeReprompt, outcome)
}

func TestResolveEmptyUtteranceReprompts(t *testing.T) {
	_, outcome := Resolve(pendingCards(), "")
	assert.Equal(t, OutcomeReprompt, outcome)

	_, outcome = Resolve(pendingCards(), "??")
	assert.Equal(t, OutcomeReprompt, outcome)
}

func TestResolveStrictMaximumWins(t *testing.T) {
	// "unionpay gold" hits all three via "unionpay" but only one via
	// "gold"; the strict maximum is unique.
	opt, outcome := Resolve(pendingCards(), "unionpay gold")
	assert.Equal(t, OutcomeResolved, outcome)
	assert.Equal(t, "UnionPay Gold", opt.DisplayName)
}

func TestResolveNilStateReprompts(t *testing.T) {
	_, outcome := Resolve(nil, "1")
	assert.Equal(t, OutcomeReprompt, outcome)
}
