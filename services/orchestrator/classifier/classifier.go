// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier maps a raw utterance to routing tags.
//
// Classification is a total, deterministic function over Unicode-lowercased
// text: it never fails, never performs I/O, and identical input always yields
// identical output. Rules fire independently; precedence between tags is the
// orchestrator's concern, except for the two tie-breaks owned here
// (directory and fee each dominate any knowledge-base tag, and small talk is
// suppressed by any authoritative cue).
package classifier

import (
	"regexp"
	"strings"
	"sync"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Pattern Tables
// =============================================================================

// greetingPatterns match short courtesy utterances. A match alone does not
// make an utterance small talk; authoritative cues veto it.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(hi|hii+|hello|hey|heya|yo)[\s!.,]*$`),
	regexp.MustCompile(`(?i)^\s*good\s+(morning|afternoon|evening|day)\b`),
	regexp.MustCompile(`(?i)^\s*(as-?salamu\s+alaikum|salam|assalamualaikum)\b`),
	regexp.MustCompile(`(?i)\b(thank\s+you|thanks|thx)\b`),
	regexp.MustCompile(`(?i)^\s*(bye|goodbye|see\s+you|take\s+care)[\s!.,]*$`),
	regexp.MustCompile(`(?i)^\s*how\s+are\s+you\b`),
	regexp.MustCompile(`(?i)^\s*(ok|okay|great|nice|cool)[\s!.,]*$`),
}

// whoIsPattern recognizes the "who is ..." directory form. It only counts as
// a directory lookup when the utterance also names a role or an
// organizational unit; "who is the ceo of america" should not hit the
// phonebook.
var whoIsPattern = regexp.MustCompile(`(?i)^\s*who\s+(is|are)\b`)

// countPattern and wherePattern are the location-intent shapes that combine
// with a facility noun.
var (
	countPattern   = regexp.MustCompile(`(?i)\bhow\s+many\b`)
	wherePattern   = regexp.MustCompile(`(?i)\b(where\s+(is|are)|address(es)?\s+of|location(s)?\s+of|nearest|closest)\b`)
	numberedSuffix = regexp.MustCompile(`(?i)\b(list|show|find)\b`)
)

var wsCollapse = regexp.MustCompile(`\s+`)

// =============================================================================
// Vocabulary
// =============================================================================

// Vocabulary is the keyword surface of the classifier. The zero value is not
// usable; call DefaultVocabulary and override fields from deployment config.
//
// All entries must be lowercase. Multi-word entries match as substrings of
// the normalized utterance; single words match on token boundaries.
type Vocabulary struct {
	DirectoryCues  []string `yaml:"directory_cues"`
	RoleNouns      []string `yaml:"role_nouns"`
	OrgUnitNouns   []string `yaml:"org_unit_nouns"`
	FeeKeywords    []string `yaml:"fee_keywords"`
	ChargeTypes    []string `yaml:"charge_types"`
	LocationNouns  []string `yaml:"location_nouns"`
	Management     []string `yaml:"management"`
	Policy         []string `yaml:"policy"`
	FinancialRep   []string `yaml:"financial_report"`
	Milestone      []string `yaml:"milestone"`
	UserDocument   []string `yaml:"user_document"`
	CourtesyWords  []string `yaml:"courtesy_words"`
	BankSuffixes   []string `yaml:"bank_suffixes"`
	Interrogatives []string `yaml:"interrogatives"`
}

// DefaultVocabulary returns the built-in keyword tables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		DirectoryCues: []string{
			"phone", "telephone", "mobile", "cell", "extension", "ip phone",
			"ipphone", "email", "e-mail", "mail id", "employee id", "phonebook",
			"phone book", "directory", "contact number", "contact details",
		},
		RoleNouns: []string{
			"head", "manager", "director", "chief", "officer", "in charge",
			"in-charge", "lead", "md", "dmd", "amd", "ceo", "cfo", "cto", "cio",
			"coo", "evp", "svp",
		},
		OrgUnitNouns: []string{
			"division", "department", "dept", "unit", "wing", "desk", "team",
		},
		FeeKeywords: []string{
			"fee", "fees", "charge", "charges", "charged", "annual fee",
			"issuance fee", "renewal fee", "supplementary", "processing fee",
			"late payment", "cash advance", "cash withdrawal", "withdrawal fee",
			"lounge", "interest rate", "penal", "early settlement",
			"partial prepayment", "prepayment", "overlimit", "over limit",
			"replacement fee", "limit enhancement", "markup", "excise duty",
		},
		ChargeTypes:   chargeTypeKeywords(),
		LocationNouns: []string{
			"branch", "branches", "sub-branch", "sub branch", "atm", "atms",
			"booth", "booths", "crm", "crms", "rtdm", "rtdms",
			"priority center", "priority centre", "priority centers",
			"priority centres", "head office", "headoffice", "corporate office",
		},
		Management: []string{
			"board of directors", "managing director", "chairman",
			"chairperson", "board member", "management team",
			"senior management", "leadership team", "top management",
		},
		Policy: []string{
			"policy", "policies", "terms and conditions", "kyc", "aml",
			"regulation", "regulations", "guideline", "guidelines",
			"code of conduct", "circular",
		},
		FinancialRep: []string{
			"financial report", "annual report", "quarterly report",
			"balance sheet", "income statement", "financial statement",
			"profit", "revenue", "eps", "dividend", "net income",
			"operating income",
		},
		Milestone: []string{
			"milestone", "milestones", "history", "founded", "established",
			"incorporation", "anniversary", "award", "awards", "achievement",
			"achievements", "first bank",
		},
		UserDocument: []string{
			"my document", "my documents", "uploaded", "my file", "my files",
			"attachment", "my statement",
		},
		CourtesyWords: []string{
			"please", "kindly", "dear", "hello", "hi",
		},
		BankSuffixes: []string{
			"of ebl", "at ebl", "in ebl", "of eastern bank", "at eastern bank",
			"of the bank", "at the bank", "of ebl bank",
		},
		Interrogatives: []string{
			"who", "whom", "whose", "what", "which", "where", "when", "how",
			"is", "are", "was", "were", "do", "does", "did", "can", "could",
			"the", "a", "an", "tell", "me", "give", "find", "show", "about",
			"you", "your",
		},
	}
}

// chargeTypeKeywords lowers the standardized charge-type names into the forms
// users actually type: underscore and space variants.
func chargeTypeKeywords() []string {
	names := []string{
		"ISSUANCE_ANNUAL_PRIMARY", "SUPPLEMENTARY_ANNUAL",
		"SUPPLEMENTARY_FREE_ENTITLEMENT", "CASH_WITHDRAWAL_EBL_ATM",
		"CASH_WITHDRAWAL_OTHER_ATM", "CASH_WITHDRAWAL_ABROAD",
		"CASH_ADVANCE_FEE", "LATE_PAYMENT", "OVERLIMIT", "CARD_REPLACEMENT",
		"PIN_REPLACEMENT", "STATEMENT_DUPLICATE", "SALES_VOUCHER_RETRIEVAL",
		"CARD_CHEQUE_PROCESSING", "RETURNED_CHEQUE", "FUND_TRANSFER_FEE",
		"SMS_ALERT_FEE", "LOUNGE_VISIT_FEE", "PRIORITY_PASS_FEE", "FX_MARKUP",
		"CURRENCY_CONVERSION_FEE", "LIMIT_ENHANCEMENT_FEE", "PROCESSING_FEE",
		"EARLY_SETTLEMENT_FEE", "PARTIAL_PREPAYMENT_FEE", "PENAL_CHARGE",
		"LOAN_RESCHEDULING_FEE", "CIB_CHARGE", "STAMP_CHARGE",
		"DOCUMENTATION_FEE", "CHEQUE_BOOK_FEE", "ANNUAL_FEE_WAIVER",
	}
	out := make([]string, 0, len(names)*2)
	for _, n := range names {
		lower := strings.ToLower(n)
		out = append(out, lower)
		if spaced := strings.ReplaceAll(lower, "_", " "); spaced != lower {
			out = append(out, spaced)
		}
	}
	return out
}

// =============================================================================
// Classifier
// =============================================================================

// Classifier applies the rule tables to utterances.
//
// Safe for concurrent use; ReloadVocabulary swaps the keyword tables without
// interrupting in-flight calls. The compiled regex patterns are process
// constants and not reloadable.
type Classifier struct {
	mu    sync.RWMutex
	vocab Vocabulary
}

// New creates a Classifier with the built-in vocabulary.
func New() *Classifier {
	return &Classifier{vocab: DefaultVocabulary()}
}

// ReloadVocabulary replaces the keyword tables. Empty fields on the incoming
// vocabulary keep their current values so a partial override file works.
func (c *Classifier) ReloadVocabulary(v Vocabulary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged := c.vocab
	if len(v.DirectoryCues) > 0 {
		merged.DirectoryCues = v.DirectoryCues
	}
	if len(v.RoleNouns) > 0 {
		merged.RoleNouns = v.RoleNouns
	}
	if len(v.OrgUnitNouns) > 0 {
		merged.OrgUnitNouns = v.OrgUnitNouns
	}
	if len(v.FeeKeywords) > 0 {
		merged.FeeKeywords = v.FeeKeywords
	}
	if len(v.ChargeTypes) > 0 {
		merged.ChargeTypes = v.ChargeTypes
	}
	if len(v.LocationNouns) > 0 {
		merged.LocationNouns = v.LocationNouns
	}
	if len(v.Management) > 0 {
		merged.Management = v.Management
	}
	if len(v.Policy) > 0 {
		merged.Policy = v.Policy
	}
	if len(v.FinancialRep) > 0 {
		merged.FinancialRep = v.FinancialRep
	}
	if len(v.Milestone) > 0 {
		merged.Milestone = v.Milestone
	}
	if len(v.UserDocument) > 0 {
		merged.UserDocument = v.UserDocument
	}
	if len(v.BankSuffixes) > 0 {
		merged.BankSuffixes = v.BankSuffixes
	}
	c.vocab = merged
}

// Classify maps one utterance to its tag set and directory search term.
//
// # Description
//
// Applies every rule table independently over the normalized (lowercased,
// whitespace-collapsed) utterance, then resolves the two local tie-breaks:
// a directory or fee hit discards the knowledge-base tag, and any
// authoritative hit suppresses small talk. Knowledge-base tags are checked
// in a fixed order (management, policy, financial report, milestone, user
// document) and only the first match is carried.
//
// # Inputs
//
//   - text: Raw, non-empty user utterance.
//
// # Outputs
//
//   - datatypes.Classification: Tag set plus extracted search term. The
//     search term is only populated for directory lookups.
//
// # Examples
//
//	c := classifier.New()
//	cls := c.Classify("phone number of zahid")
//	// cls.DirectoryLookup == true, cls.SearchTerm == "zahid"
func (c *Classifier) Classify(text string) datatypes.Classification {
	c.mu.RLock()
	vocab := c.vocab
	c.mu.RUnlock()

	norm := normalize(text)
	tokens := tokenize(norm)

	var cls datatypes.Classification

	cls.DirectoryLookup = matchesDirectory(norm, tokens, vocab)
	cls.FeeQuery = matchesAny(norm, tokens, vocab.FeeKeywords) ||
		matchesAny(norm, tokens, vocab.ChargeTypes)
	cls.LocationQuery = matchesLocation(norm, tokens, vocab)

	// Knowledge-base selectors are disjoint: first match in order wins.
	switch {
	case matchesAny(norm, tokens, vocab.Management):
		cls.KnowledgeTag = datatypes.TagManagement
	case matchesAny(norm, tokens, vocab.Policy):
		cls.KnowledgeTag = datatypes.TagPolicy
	case matchesAny(norm, tokens, vocab.FinancialRep):
		cls.KnowledgeTag = datatypes.TagFinancialReport
	case matchesAny(norm, tokens, vocab.Milestone):
		cls.KnowledgeTag = datatypes.TagMilestone
	case matchesAny(norm, tokens, vocab.UserDocument):
		cls.KnowledgeTag = datatypes.TagUserDocument
	}

	// Directory and fee hits each dominate a knowledge-base tag.
	if (cls.DirectoryLookup || cls.FeeQuery) && cls.KnowledgeTag != "" {
		cls.KnowledgeTag = ""
	}

	// Small talk requires a courtesy shape and the absence of every
	// authoritative cue.
	if !cls.HasAuthoritative() && cls.KnowledgeTag == "" {
		cls.SmallTalk = matchesGreeting(norm)
	}

	if cls.DirectoryLookup {
		cls.SearchTerm = ExtractSearchTerm(text, vocab)
	}

	cls.Generic = !cls.HasAuthoritative() && !cls.SmallTalk && cls.KnowledgeTag == ""

	return cls
}

// =============================================================================
// Rule Helpers
// =============================================================================

func matchesGreeting(norm string) bool {
	if len(tokenize(norm)) > 8 {
		return false
	}
	for _, p := range greetingPatterns {
		if p.MatchString(norm) {
			return true
		}
	}
	return false
}

func matchesDirectory(norm string, tokens []string, vocab Vocabulary) bool {
	if matchesAny(norm, tokens, vocab.DirectoryCues) {
		return true
	}
	// "who is <role> ... <unit>" and "who is ... <unit> head" shapes.
	if whoIsPattern.MatchString(norm) {
		if matchesAny(norm, tokens, vocab.RoleNouns) && matchesAny(norm, tokens, vocab.OrgUnitNouns) {
			return true
		}
	}
	return false
}

func matchesLocation(norm string, tokens []string, vocab Vocabulary) bool {
	if !matchesAny(norm, tokens, vocab.LocationNouns) {
		return false
	}
	// A facility noun alone fires; the count/where shapes are what make
	// phrases like "how many priority centers in dhaka" unambiguous even
	// when the noun is buried mid-sentence.
	return true
}

// matchesAny reports whether any vocabulary entry is present. Multi-word
// entries match as substrings of the normalized text; single words must
// match a whole token.
func matchesAny(norm string, tokens []string, entries []string) bool {
	for _, e := range entries {
		if strings.Contains(e, " ") || strings.Contains(e, "-") {
			if strings.Contains(norm, e) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == e {
				return true
			}
		}
	}
	return false
}

// IsCountQuery reports whether the utterance asks for a count. The location
// renderer leads with the count sentence when this is set.
func IsCountQuery(text string) bool {
	return countPattern.MatchString(text)
}

// IsWhereQuery reports whether the utterance asks for a place or address.
func IsWhereQuery(text string) bool {
	return wherePattern.MatchString(text) || numberedSuffix.MatchString(text)
}

// normalize lowercases and collapses internal whitespace.
func normalize(text string) string {
	return wsCollapse.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

// tokenize splits normalized text into tokens, trimming punctuation that
// commonly clings to words. The ampersand survives because it is load-bearing
// in division names.
func tokenize(norm string) []string {
	fields := strings.Fields(norm)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `?!.,;:"'()[]{}`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
