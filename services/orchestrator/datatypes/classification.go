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

// =============================================================================
// Classification Tags
// =============================================================================

// Tag labels one routing class an utterance can belong to.
type Tag string

const (
	TagSmallTalk       Tag = "small_talk"
	TagDirectoryLookup Tag = "directory_lookup"
	TagFeeQuery        Tag = "fee_query"
	TagLocationQuery   Tag = "location_query"
	TagManagement      Tag = "management"
	TagPolicy          Tag = "policy"
	TagFinancialReport Tag = "financial_report"
	TagMilestone       Tag = "milestone"
	TagUserDocument    Tag = "user_document"
	TagGeneric         Tag = "generic"
)

// =============================================================================
// Classification
// =============================================================================

// Classification is the classifier's verdict for one utterance.
//
// # Description
//
// A set of independent boolean tags plus the extracted directory search term.
// At most one knowledge-base tag is carried (first match wins inside the
// classifier); the authoritative booleans may co-occur, and RoutingTag
// resolves their precedence. SmallTalk is mutually exclusive with every
// authoritative tag: the classifier only sets it when no authoritative
// vocabulary matched.
//
// # Fields
//
//   - SmallTalk: Greeting/courtesy utterance with no authoritative cues.
//   - DirectoryLookup: Phonebook intent (phone/email/extension/"who is ...").
//   - FeeQuery: Card or loan charge intent.
//   - LocationQuery: Branch/ATM/priority-center/head-office intent.
//   - KnowledgeTag: One of the knowledge-base selector tags, or empty.
//   - Generic: No other tag fired.
//   - SearchTerm: Normalized residual for the directory engine; empty string
//     disables the directory strategy.
type Classification struct {
	SmallTalk       bool
	DirectoryLookup bool
	FeeQuery        bool
	LocationQuery   bool
	KnowledgeTag    Tag
	Generic         bool
	SearchTerm      string
}

// HasAuthoritative reports whether any authoritative routing tag fired.
func (c Classification) HasAuthoritative() bool {
	return c.DirectoryLookup || c.FeeQuery || c.LocationQuery
}

// RoutingTag resolves the dominant authoritative tag.
//
// Routing-tag precedence is directory_lookup > fee_query > location_query.
// Note this differs from the orchestrator's dispatch order, which prefers the
// more specific deterministic sources first (fee, then location, then
// directory); RoutingTag exists for logging and analytics, not dispatch.
func (c Classification) RoutingTag() Tag {
	switch {
	case c.DirectoryLookup:
		return TagDirectoryLookup
	case c.FeeQuery:
		return TagFeeQuery
	case c.LocationQuery:
		return TagLocationQuery
	case c.SmallTalk:
		return TagSmallTalk
	case c.KnowledgeTag != "":
		return c.KnowledgeTag
	default:
		return TagGeneric
	}
}

// knowledgeBases maps knowledge-base selector tags to retrieval collection
// names. Tags outside this map fall back to the deployment default.
var knowledgeBases = map[Tag]string{
	TagManagement:      "ebl_management",
	TagPolicy:          "ebl_policies",
	TagFinancialReport: "ebl_financial_reports",
	TagMilestone:       "ebl_milestones",
	TagUserDocument:    "user_documents",
}

// KnowledgeBase selects the retrieval collection for this classification.
// An explicit caller override wins; otherwise the knowledge tag decides,
// falling back to the deployment default.
func (c Classification) KnowledgeBase(override, deploymentDefault string) string {
	if override != "" {
		return override
	}
	if kb, ok := knowledgeBases[c.KnowledgeTag]; ok {
		return kb
	}
	return deploymentDefault
}
