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

// Source tags carried on RenderedAnswer for logging and analytics.
const (
	SourceFeeSchedule    = "fee_schedule"
	SourceLocation       = "location_service"
	SourceDirectory      = "directory"
	SourceDisambiguation = "disambiguation"
	SourceGenerative     = "generative"
	SourceScripted       = "scripted"
)

// RenderedAnswer is the orchestrator's unit of output for one turn.
//
// # Description
//
// Exactly one RenderedAnswer is produced per turn. When IsAuthoritative is
// set the orchestrator streams Text verbatim and MUST NOT pass it through the
// generative model. SuppressGeneration is set independently for turns that
// must not fall through to retrieval even when they produced no useful text
// (a directory miss or an authoritative-source error).
//
// # Fields
//
//   - Text: The exact assistant text to stream.
//   - SourceTag: Which collaborator produced the text (Source* constants).
//   - IsAuthoritative: Text comes from a deterministic source; stream as-is.
//   - SuppressGeneration: Never consult retrieval or the generative model for
//     this turn, regardless of Text.
//   - Sources: Optional reference strings advertised through the trailing
//     sources sentinel on the wire.
//   - Pending: Non-nil when the answer is a disambiguation prompt; the
//     orchestrator persists this state before streaming.
type RenderedAnswer struct {
	Text               string
	SourceTag          string
	IsAuthoritative    bool
	SuppressGeneration bool
	Sources            []string
	Pending            *DisambiguationState
}
