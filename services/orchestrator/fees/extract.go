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
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Intent
// =============================================================================

// Family identifies which fee-service rule family an utterance targets.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCardFee
	FamilyRetailAsset
	FamilySkyBanking
)

// Intent is the structured fee query extracted from one utterance. Zero-value
// string fields mean "not mentioned"; the service treats them as wildcards.
type Intent struct {
	Family       Family
	ChargeType   string
	CardCategory string
	CardNetwork  string
	CardProduct  string
	LoanProduct  string
	Amount       *float64
	Currency     string
	UsageIndex   *int

	// AmbiguousNetwork is set when the utterance names more than one card
	// network. The caller must ask, never guess.
	AmbiguousNetwork bool
	// NetworksMentioned lists the canonical networks found, in catalog order,
	// so the disambiguation prompt can enumerate them.
	NetworksMentioned []string

	// AmbiguousCategory is set when the utterance names more than one card
	// category ("my credit or debit card"). Same rule: ask, never guess.
	AmbiguousCategory bool
	// CategoriesMentioned lists the categories found, in mention order.
	CategoriesMentioned []string
}

// ordinalPattern finds usage ordinals ("3rd withdrawal", "2nd card").
var ordinalPattern = regexp.MustCompile(`\b(\d+)(?:st|nd|rd|th)\b`)

// amountPattern finds an explicit money amount with an optional currency on
// either side ("BDT 50,000", "50000 taka").
var amountPattern = regexp.MustCompile(`\b(?:(bdt|usd|tk|taka)\s*)?([0-9][0-9,]*(?:\.[0-9]+)?)\s*(bdt|usd|tk|taka)?\b`)

// # Description
//
//	Extract parses one normalized utterance into a fee Intent: the rule
//	family, the standardized charge type, and whatever card / loan / amount
//	attributes the text names. Extraction is vocabulary driven and never
//	calls the fee service.
//
// # Inputs
//   - utterance: raw user text; lowercased internally.
//
// # Outputs
//   - Intent: structured query. Family is FamilyUnknown when no fee
//     vocabulary matched at all; callers should not have routed here.
func Extract(utterance string) Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	var intent Intent

	intent.CardNetwork, intent.NetworksMentioned = extractNetwork(text)
	intent.AmbiguousNetwork = len(intent.NetworksMentioned) > 1
	intent.CardProduct = extractProduct(text)
	intent.CardCategory, intent.CategoriesMentioned = extractCategory(text)
	intent.AmbiguousCategory = len(intent.CategoriesMentioned) > 1
	intent.ChargeType = extractChargeType(text)
	intent.LoanProduct = extractLoanProduct(text)
	intent.Amount, intent.Currency = extractAmount(text)
	intent.UsageIndex = extractUsageIndex(text)
	intent.Family = classifyFamily(text, intent)
	return intent
}

func classifyFamily(text string, intent Intent) Family {
	for _, cue := range retailAssetCues {
		if strings.Contains(text, cue) {
			return FamilyRetailAsset
		}
	}
	for _, cue := range skyBankingCues {
		if strings.Contains(text, cue) {
			return FamilySkyBanking
		}
	}
	if intent.ChargeType != "" || intent.CardNetwork != "" || intent.CardProduct != "" || intent.CardCategory != "" {
		return FamilyCardFee
	}
	return FamilyUnknown
}

// extractNetwork returns the first canonical network mentioned plus the full
// mention list. Longer aliases are checked first so "union pay international"
// is not consumed as "union pay" plus a stray word.
func extractNetwork(text string) (string, []string) {
	aliases := make([]string, 0, len(networkAliases))
	for alias := range networkAliases {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })

	seen := make(map[string]bool)
	var mentioned []string
	remaining := text
	for _, alias := range aliases {
		if containsPhrase(remaining, alias) {
			canonical := networkAliases[alias]
			if !seen[canonical] {
				seen[canonical] = true
				mentioned = append(mentioned, canonical)
			}
			remaining = strings.ReplaceAll(remaining, alias, " ")
		}
	}
	if len(mentioned) == 0 {
		return "", nil
	}
	return mentioned[0], mentioned
}

// extractProduct consults the catalog, compound aliases before bare words,
// and returns the canonical product of the longest alias present.
func extractProduct(text string) string {
	best := ""
	bestLen := 0
	for _, entry := range defaultCardProducts {
		for _, alias := range entry.Aliases {
			if len(alias) > bestLen && aliasPresent(text, alias) {
				best = entry.Canonical
				bestLen = len(alias)
			}
		}
	}
	return best
}

// aliasPresent matches a catalog alias against the text. A "/" alias is a
// literal token; plain aliases match as whole phrases.
func aliasPresent(text, alias string) bool {
	if strings.Contains(alias, "/") {
		return strings.Contains(text, alias)
	}
	return containsPhrase(text, alias)
}

// categoryCues maps each card category to the phrases that name it.
var categoryCues = []struct {
	Category string
	Phrases  []string
}{
	{"CREDIT", []string{"credit card", "credit"}},
	{"DEBIT", []string{"debit card", "debit"}},
	{"PREPAID", []string{"prepaid card", "prepaid"}},
}

// extractCategory returns the first card category mentioned plus the full
// mention list in text order, so "credit or debit card" surfaces both.
func extractCategory(text string) (string, []string) {
	type hit struct {
		category string
		pos      int
	}
	var hits []hit
	for _, cue := range categoryCues {
		pos := -1
		for _, phrase := range cue.Phrases {
			if i := phraseIndex(text, phrase); i >= 0 && (pos < 0 || i < pos) {
				pos = i
			}
		}
		if pos >= 0 {
			hits = append(hits, hit{cue.Category, pos})
		}
	}
	if len(hits) == 0 {
		return "", nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	mentioned := make([]string, len(hits))
	for i, h := range hits {
		mentioned[i] = h.category
	}
	return mentioned[0], mentioned
}

func extractChargeType(text string) string {
	for _, rule := range chargeTypeRules {
		matched := true
		for _, anyOf := range rule.AllOf {
			found := false
			for _, phrase := range anyOf {
				if containsPhrase(text, phrase) {
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched {
			return rule.ChargeType
		}
	}
	return ""
}

func extractLoanProduct(text string) string {
	best := ""
	bestLen := 0
	for alias, canonical := range loanProductAliases {
		if len(alias) > bestLen && containsPhrase(text, alias) {
			best = canonical
			bestLen = len(alias)
		}
	}
	return best
}

func extractAmount(text string) (*float64, string) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, ""
	}
	// A bare number with no currency marker is more likely an ordinal or a
	// card count than a principal amount; require the marker.
	cur := m[1]
	if cur == "" {
		cur = m[3]
	}
	if cur == "" {
		return nil, ""
	}
	raw := strings.ReplaceAll(m[2], ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, ""
	}
	switch cur {
	case "tk", "taka", "bdt":
		cur = "BDT"
	case "usd":
		cur = "USD"
	}
	return &v, cur
}

func extractUsageIndex(text string) *int {
	m := ordinalPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return nil
	}
	return &n
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	return phraseIndex(text, phrase) >= 0
}

// phraseIndex returns the byte offset of the first word-boundary occurrence
// of phrase in text, or -1.
func phraseIndex(text, phrase string) int {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return -1
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return start
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// =============================================================================
// Ambiguity
// =============================================================================

// NetworkDisambiguation builds the clarification state for an utterance that
// names more than one card network. Option identity is 1-based display order.
func NetworkDisambiguation(intent Intent, utterance string) *datatypes.DisambiguationState {
	options := make([]datatypes.DisambiguationOption, 0, len(intent.NetworksMentioned))
	for i, network := range intent.NetworksMentioned {
		options = append(options, datatypes.DisambiguationOption{
			Index:       i + 1,
			DisplayName: displayNetwork(network),
			CanonicalID: network,
			MatchKeys:   networkMatchKeys(network),
		})
	}
	return &datatypes.DisambiguationState{
		Kind:      datatypes.DisambiguationCardNetwork,
		Prompt:    renderDisambiguationPrompt("Which card network do you mean?", options),
		Options:   options,
		Context:   intentContext(intent, utterance),
		CreatedAt: time.Now().UTC(),
	}
}

// CategoryDisambiguation builds the clarification state for an utterance that
// names more than one card category ("credit or debit card").
func CategoryDisambiguation(intent Intent, utterance string) *datatypes.DisambiguationState {
	options := make([]datatypes.DisambiguationOption, 0, len(intent.CategoriesMentioned))
	for i, category := range intent.CategoriesMentioned {
		options = append(options, datatypes.DisambiguationOption{
			Index:       i + 1,
			DisplayName: displayCategory(category),
			CanonicalID: category,
			MatchKeys:   categoryMatchKeys(category),
		})
	}
	return &datatypes.DisambiguationState{
		Kind:      datatypes.DisambiguationCardCategory,
		Prompt:    renderDisambiguationPrompt("Which card type do you mean?", options),
		Options:   options,
		Context:   intentContext(intent, utterance),
		CreatedAt: time.Now().UTC(),
	}
}

// ProductDisambiguation lists the catalog products for a network when the
// utterance asked about card fees without naming a product.
func ProductDisambiguation(intent Intent, utterance string) *datatypes.DisambiguationState {
	var options []datatypes.DisambiguationOption
	idx := 1
	for _, entry := range defaultCardProducts {
		if intent.CardNetwork != "" && !productServesNetwork(entry.Canonical, intent.CardNetwork) {
			continue
		}
		options = append(options, datatypes.DisambiguationOption{
			Index:       idx,
			DisplayName: entry.Canonical,
			CanonicalID: entry.Canonical,
			MatchKeys:   productMatchKeys(entry),
		})
		idx++
	}
	if len(options) == 0 {
		return nil
	}
	return &datatypes.DisambiguationState{
		Kind:      datatypes.DisambiguationCardProduct,
		Prompt:    renderDisambiguationPrompt("Which card do you mean?", options),
		Options:   options,
		Context:   intentContext(intent, utterance),
		CreatedAt: time.Now().UTC(),
	}
}

// intentContext captures the already-extracted attributes so the fee query
// can be re-run after the user picks an option.
func intentContext(intent Intent, utterance string) map[string]string {
	ctx := map[string]string{"original_query": utterance}
	if intent.ChargeType != "" {
		ctx["charge_type"] = intent.ChargeType
	}
	if intent.CardCategory != "" && !intent.AmbiguousCategory {
		ctx["card_category"] = intent.CardCategory
	}
	if intent.CardNetwork != "" && !intent.AmbiguousNetwork {
		ctx["card_network"] = intent.CardNetwork
	}
	if intent.CardProduct != "" {
		ctx["card_product"] = intent.CardProduct
	}
	return ctx
}

// renderDisambiguationPrompt formats the question plus the numbered list the
// user replies to.
func renderDisambiguationPrompt(question string, options []datatypes.DisambiguationOption) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n")
	for _, opt := range options {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(opt.Index))
		b.WriteString(". ")
		b.WriteString(opt.DisplayName)
	}
	b.WriteString("\n\nReply with a number or the option name.")
	return b.String()
}

// productServesNetwork keeps network-branded products under their own
// network and generic tiers available everywhere.
func productServesNetwork(canonical, network string) bool {
	lower := strings.ToLower(canonical)
	for alias, canonicalNet := range networkAliases {
		if strings.Contains(lower, alias) {
			return canonicalNet == network
		}
	}
	return true
}

func productMatchKeys(entry ProductEntry) []string {
	keys := make([]string, 0, len(entry.Aliases)+1)
	keys = append(keys, strings.ToLower(entry.Canonical))
	for _, alias := range entry.Aliases {
		keys = append(keys, alias)
	}
	for _, v := range Variants(entry.Canonical) {
		keys = append(keys, strings.ToLower(v))
	}
	return dedupe(keys)
}

func networkMatchKeys(canonical string) []string {
	keys := []string{strings.ToLower(canonical)}
	for alias, c := range networkAliases {
		if c == canonical {
			keys = append(keys, alias)
		}
	}
	return dedupe(keys)
}

func categoryMatchKeys(category string) []string {
	for _, cue := range categoryCues {
		if cue.Category == category {
			keys := append([]string{strings.ToLower(category)}, cue.Phrases...)
			return dedupe(keys)
		}
	}
	return []string{strings.ToLower(category)}
}

func displayCategory(category string) string {
	switch category {
	case "CREDIT":
		return "Credit card"
	case "DEBIT":
		return "Debit card"
	case "PREPAID":
		return "Prepaid card"
	}
	return category
}

func displayNetwork(canonical string) string {
	switch canonical {
	case "VISA":
		return "VISA"
	case "MASTERCARD":
		return "Mastercard"
	case "UNIONPAY INTERNATIONAL":
		return "UnionPay International"
	}
	return canonical
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
