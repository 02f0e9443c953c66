// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fees implements the fee client: utterance-to-query extraction,
// the fee-service calls, and authoritative rendering of the results.
package fees

import "strings"

// =============================================================================
// Card Networks
// =============================================================================

// networkAliases maps user spellings to the service's canonical network
// tokens. Compound spellings are matched before bare words by the extractor.
var networkAliases = map[string]string{
	"visa":                   "VISA",
	"mastercard":             "MASTERCARD",
	"master card":            "MASTERCARD",
	"unionpay international": "UNIONPAY INTERNATIONAL",
	"union pay international": "UNIONPAY INTERNATIONAL",
	"unionpay":               "UNIONPAY INTERNATIONAL",
	"union pay":              "UNIONPAY INTERNATIONAL",
	"upi":                    "UNIONPAY INTERNATIONAL",
}

// =============================================================================
// Card Products
// =============================================================================

// ProductEntry is one catalog row: the canonical product token the service
// matches on, plus the aliases users type. A "/" inside an alias denotes
// disjunction; each side matches independently.
type ProductEntry struct {
	Canonical string
	Aliases   []string
}

// defaultCardProducts is the deployment card-product catalog. Compound
// names (with a network prefix) sort before bare words during extraction so
// "unionpay classic" is never read as just "classic". The catalog also
// seeds disambiguation options when a fee query names no product.
var defaultCardProducts = []ProductEntry{
	{Canonical: "UnionPay Classic", Aliases: []string{"unionpay classic", "union pay classic"}},
	{Canonical: "UnionPay Gold", Aliases: []string{"unionpay gold", "union pay gold"}},
	{Canonical: "UnionPay Platinum", Aliases: []string{"unionpay platinum", "union pay platinum"}},
	{Canonical: "Visa Signature", Aliases: []string{"visa signature", "signature"}},
	{Canonical: "Visa Infinite", Aliases: []string{"visa infinite", "infinite"}},
	{Canonical: "Mastercard World", Aliases: []string{"mastercard world", "world"}},
	{Canonical: "Platinum/Titanium", Aliases: []string{"platinum/titanium", "platinum", "titanium"}},
	{Canonical: "Classic", Aliases: []string{"classic"}},
	{Canonical: "Gold", Aliases: []string{"gold"}},
}

// Variants expands a canonical product into the fallback tokens the service
// may know it by: the bare tail of a compound name ("UnionPay Classic" also
// tries "Classic") and each side of a "/" disjunction.
func Variants(canonical string) []string {
	out := []string{canonical}
	if idx := strings.Index(canonical, "/"); idx >= 0 {
		out = append(out, canonical[:idx], canonical[idx+1:])
	}
	fields := strings.Fields(canonical)
	if len(fields) > 1 {
		out = append(out, fields[len(fields)-1])
	}
	return out
}

// =============================================================================
// Charge Types
// =============================================================================

// chargeTypeRule maps utterance vocabulary to one standardized charge type.
// Rules are checked in order; the first whose every phrase-set matches wins,
// so compound intents ("supplementary ... annual") are read before the bare
// "annual fee".
type chargeTypeRule struct {
	ChargeType string
	// AllOf: each inner slice must have at least one phrase present.
	AllOf [][]string
}

var chargeTypeRules = []chargeTypeRule{
	{"SUPPLEMENTARY_ANNUAL", [][]string{{"supplementary"}, {"annual", "yearly", "renewal", "fee", "charge"}}},
	{"CASH_WITHDRAWAL_ABROAD", [][]string{{"cash withdrawal", "cash advance", "withdrawal"}, {"abroad", "foreign", "overseas", "international"}}},
	{"CASH_WITHDRAWAL_OTHER_ATM", [][]string{{"cash withdrawal", "cash advance", "withdrawal"}, {"other atm", "other bank", "another bank", "npsb"}}},
	{"CASH_WITHDRAWAL_EBL_ATM", [][]string{{"cash withdrawal", "cash advance", "withdrawal", "atm"}}},
	{"LATE_PAYMENT", [][]string{{"late payment", "late fee", "overdue"}}},
	{"OVERLIMIT", [][]string{{"overlimit", "over limit", "over-limit"}}},
	{"CARD_REPLACEMENT", [][]string{{"replacement", "replace", "lost card", "reissue"}}},
	{"PIN_REPLACEMENT", [][]string{{"pin"}, {"replacement", "replace", "reset", "reissue"}}},
	{"LOUNGE_VISIT_FEE", [][]string{{"lounge"}}},
	{"LIMIT_ENHANCEMENT_FEE", [][]string{{"limit enhancement", "limit increase", "enhance limit"}}},
	{"EARLY_SETTLEMENT_FEE", [][]string{{"early settlement", "early closure", "pre-closure", "preclosure"}}},
	{"PARTIAL_PREPAYMENT_FEE", [][]string{{"partial prepayment", "prepayment", "pre-payment"}}},
	{"PROCESSING_FEE", [][]string{{"processing fee", "processing charge"}}},
	{"FX_MARKUP", [][]string{{"fx markup", "markup", "currency conversion", "conversion fee"}}},
	{"SMS_ALERT_FEE", [][]string{{"sms"}}},
	{"STATEMENT_DUPLICATE", [][]string{{"duplicate statement", "statement copy"}}},
	{"RETURNED_CHEQUE", [][]string{{"returned cheque", "cheque return", "bounced"}}},
	{"CHEQUE_BOOK_FEE", [][]string{{"cheque book", "chequebook"}}},
	{"PENAL_CHARGE", [][]string{{"penal"}}},
	{"ISSUANCE_ANNUAL_PRIMARY", [][]string{{"annual fee", "yearly fee", "renewal fee", "issuance fee", "annual charge"}}},
}

// retailAssetCues mark the loan / retail-asset rule family.
var retailAssetCues = []string{
	"loan", "personal loan", "home loan", "auto loan", "car loan",
	"home credit", "emi", "rescheduling",
}

// skyBankingCues mark the digital-banking fee family.
var skyBankingCues = []string{
	"skybanking", "sky banking", "fund transfer", "npsb transfer",
	"beftn", "rtgs",
}

// loanProductAliases maps user spellings to canonical loan product names.
var loanProductAliases = map[string]string{
	"personal loan": "Personal Loan",
	"home loan":     "Home Loan",
	"auto loan":     "Auto Loan",
	"car loan":      "Auto Loan",
	"home credit":   "Home Credit",
}
