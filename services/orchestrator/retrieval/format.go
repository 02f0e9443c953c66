// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// templateMarkers identify placeholder "response" strings some retrieval
// deployments emit when generation is disabled service-side. A templated
// response is not canonical context; the structured sections are.
var templateMarkers = []string{
	"{response}", "{context}", "[no-llm]", "sorry, i'm not able to provide an answer",
}

// FormatContext turns a raw retrieval-service response into the context
// block handed to the generative prompt.
//
// A non-template "response" string is used verbatim as the canonical
// context. Otherwise the structured sections are stitched in the fixed
// order entities, relationships, chunks; entities precede chunks so later
// prompt instructions that reference "the entities above" resolve.
func FormatContext(resp *datatypes.RetrievalServiceResponse) string {
	if resp == nil {
		return ""
	}
	if canonical := strings.TrimSpace(resp.Response); canonical != "" && !isTemplate(canonical) {
		return canonical
	}

	var sb strings.Builder
	if len(resp.Entities) > 0 {
		sb.WriteString("## Entities\n")
		for _, e := range resp.Entities {
			sb.WriteString("- ")
			sb.WriteString(e.Name)
			if e.Type != "" {
				fmt.Fprintf(&sb, " (%s)", e.Type)
			}
			if e.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(e.Description)
			}
			sb.WriteString("\n")
		}
	}
	if len(resp.Relationships) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## Relationships\n")
		for _, r := range resp.Relationships {
			fmt.Fprintf(&sb, "- %s -> %s", r.Source, r.Target)
			if r.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(r.Description)
			}
			sb.WriteString("\n")
		}
	}
	if len(resp.Chunks) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## Documents\n")
		for i, ch := range resp.Chunks {
			source := ch.Source
			if source == "" {
				source = "unknown"
			}
			fmt.Fprintf(&sb, "[Document %d: %s]\n%s\n", i+1, source, strings.TrimSpace(ch.Content))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func isTemplate(response string) bool {
	lower := strings.ToLower(response)
	for _, marker := range templateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
