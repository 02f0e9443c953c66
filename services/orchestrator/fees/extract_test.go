// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

func TestExtractChargeTypes(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"what is the annual fee of visa platinum card", "ISSUANCE_ANNUAL_PRIMARY"},
		{"supplementary card annual fee for visa platinum", "SUPPLEMENTARY_ANNUAL"},
		{"late payment fee on my credit card", "LATE_PAYMENT"},
		{"cash withdrawal charge abroad", "CASH_WITHDRAWAL_ABROAD"},
		{"cash withdrawal from other bank atm", "CASH_WITHDRAWAL_OTHER_ATM"},
		{"card replacement charge", "CARD_REPLACEMENT"},
		{"how much is the lounge fee", "LOUNGE_VISIT_FEE"},
		{"early settlement fee for personal loan", "EARLY_SETTLEMENT_FEE"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, Extract(tc.query).ChargeType)
		})
	}
}

func TestExtractSupplementaryBeforeBareAnnual(t *testing.T) {
	// "supplementary ... annual" must not collapse into the primary annual
	// fee just because "annual fee" also appears.
	intent := Extract("annual fee for a supplementary visa platinum card")
	assert.Equal(t, "SUPPLEMENTARY_ANNUAL", intent.ChargeType)
}

func TestExtractNetworkCanonicalization(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"union pay card annual fee", datatypes.NetworkUnionPay},
		{"unionpay classic annual fee", datatypes.NetworkUnionPay},
		{"visa card late payment fee", datatypes.NetworkVisa},
		{"master card replacement charge", datatypes.NetworkMastercard},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			intent := Extract(tc.query)
			assert.Equal(t, tc.want, intent.CardNetwork)
			assert.False(t, intent.AmbiguousNetwork)
		})
	}
}

func TestExtractAmbiguousNetwork(t *testing.T) {
	intent := Extract("annual fee for visa and mastercard")
	assert.True(t, intent.AmbiguousNetwork)
	assert.Len(t, intent.NetworksMentioned, 2)
	assert.Contains(t, intent.NetworksMentioned, datatypes.NetworkVisa)
	assert.Contains(t, intent.NetworksMentioned, datatypes.NetworkMastercard)
}

func TestExtractAmbiguousCategory(t *testing.T) {
	intent := Extract("what is the annual fee for my credit or debit card")
	assert.True(t, intent.AmbiguousCategory)
	assert.Equal(t, []string{"CREDIT", "DEBIT"}, intent.CategoriesMentioned)

	intent = Extract("sms fee for my debit card")
	assert.False(t, intent.AmbiguousCategory)
	assert.Equal(t, "DEBIT", intent.CardCategory)
}

func TestExtractCategoryMentionOrder(t *testing.T) {
	intent := Extract("fee for prepaid and credit cards")
	assert.Equal(t, []string{"PREPAID", "CREDIT"}, intent.CategoriesMentioned)
	assert.Equal(t, "PREPAID", intent.CardCategory)
}

func TestExtractCompoundProductBeforeBareWord(t *testing.T) {
	intent := Extract("unionpay classic card annual fee")
	assert.Equal(t, "UnionPay Classic", intent.CardProduct)

	intent = Extract("classic card annual fee")
	assert.Equal(t, "Classic", intent.CardProduct)
}

func TestExtractSlashProductMatchesEitherSide(t *testing.T) {
	assert.Equal(t, "Platinum/Titanium", Extract("titanium card annual fee").CardProduct)
	assert.Equal(t, "Platinum/Titanium", Extract("platinum card annual fee").CardProduct)
}

func TestVariants(t *testing.T) {
	assert.Contains(t, Variants("UnionPay Classic"), "Classic")
	v := Variants("Platinum/Titanium")
	assert.Contains(t, v, "Platinum")
	assert.Contains(t, v, "Titanium")
}

func TestExtractAmountRequiresCurrencyMarker(t *testing.T) {
	intent := Extract("cash withdrawal fee for bdt 50,000")
	require.NotNil(t, intent.Amount)
	assert.Equal(t, 50000.0, *intent.Amount)
	assert.Equal(t, "BDT", intent.Currency)

	// A bare number is an ordinal or count, not a principal amount.
	intent = Extract("fee for the 3rd withdrawal")
	assert.Nil(t, intent.Amount)
	require.NotNil(t, intent.UsageIndex)
	assert.Equal(t, 3, *intent.UsageIndex)
}

func TestExtractRetailAssetFamily(t *testing.T) {
	intent := Extract("early settlement fee for personal loan")
	assert.Equal(t, FamilyRetailAsset, intent.Family)
	assert.Equal(t, "Personal Loan", intent.LoanProduct)

	intent = Extract("home loan processing fee")
	assert.Equal(t, FamilyRetailAsset, intent.Family)
	assert.Equal(t, "Home Loan", intent.LoanProduct)
	assert.Equal(t, "PROCESSING_FEE", intent.ChargeType)
}

func TestNetworkDisambiguationState(t *testing.T) {
	intent := Extract("annual fee for visa and mastercard")
	state := NetworkDisambiguation(intent, "annual fee for visa and mastercard")
	require.NotNil(t, state)
	assert.Equal(t, datatypes.DisambiguationCardNetwork, state.Kind)
	require.Len(t, state.Options, 2)
	assert.Equal(t, 1, state.Options[0].Index)
	assert.Contains(t, state.Prompt, "1. ")
	assert.Contains(t, state.Prompt, "2. ")
	assert.Equal(t, "ISSUANCE_ANNUAL_PRIMARY", state.Context["charge_type"])
}

func TestCategoryDisambiguationState(t *testing.T) {
	utterance := "what is the annual fee for my credit or debit card"
	state := CategoryDisambiguation(Extract(utterance), utterance)
	require.NotNil(t, state)
	assert.Equal(t, datatypes.DisambiguationCardCategory, state.Kind)
	require.Len(t, state.Options, 2)
	assert.Equal(t, "Credit card", state.Options[0].DisplayName)
	assert.Equal(t, "DEBIT", state.Options[1].CanonicalID)
	assert.Contains(t, state.Options[1].MatchKeys, "debit")
	// The first-mentioned category must not leak into the re-run context.
	assert.NotContains(t, state.Context, "card_category")
	assert.Equal(t, "ISSUANCE_ANNUAL_PRIMARY", state.Context["charge_type"])
}

func TestProductDisambiguationFiltersByNetwork(t *testing.T) {
	intent := Extract("unionpay card annual fee")
	state := ProductDisambiguation(intent, "unionpay card annual fee")
	require.NotNil(t, state)
	for _, opt := range state.Options {
		assert.NotContains(t, opt.DisplayName, "Visa")
		assert.NotContains(t, opt.DisplayName, "Mastercard")
	}
}

func TestProductMatchKeysExcludeAnswerProse(t *testing.T) {
	intent := Extract("unionpay card annual fee")
	state := ProductDisambiguation(intent, "unionpay card annual fee")
	require.NotNil(t, state)
	for _, opt := range state.Options {
		for _, key := range opt.MatchKeys {
			assert.NotContains(t, key, "annual")
			assert.NotContains(t, key, "fee")
		}
	}
}
