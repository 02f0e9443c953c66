// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import "strings"

// leadingConnectors are trimmed from the front and back of the residual after
// cue removal; "phone number of zahid" must reduce to "zahid", not "of zahid".
var leadingConnectors = map[string]bool{
	"of": true, "for": true, "at": true, "in": true, "from": true, "to": true,
}

// ExtractSearchTerm reduces a directory utterance to the term the engine
// searches for.
//
// # Description
//
// The reduction pipeline, in order:
//
//  1. Lowercase, collapse whitespace, drop sentence punctuation.
//  2. Strip the trailing organization suffix ("of EBL", "at Eastern Bank").
//  3. Drop leading interrogatives and courtesy words ("who is", "please").
//  4. Drop directory cue words anywhere ("phone", "number", "email").
//  5. Trim leading/trailing connectors ("of", "for").
//  6. Remove org-unit nouns ("division", "department"); when the utterance
//     named a unit but no role, append a synthetic "head" so "who is retail
//     banking division" still finds the division head.
//
// An empty residual disables the directory strategy entirely.
//
// # Inputs
//
//   - text: Raw user utterance.
//   - vocab: Active vocabulary (cue and noun tables).
//
// # Outputs
//
//   - string: Cleaned search term, possibly empty.
//
// # Examples
//
//	ExtractSearchTerm("phone number of zahid", vocab)
//	// "zahid"
//
//	ExtractSearchTerm("Who is Retail & SME Banking Division head of EBL?", vocab)
//	// "retail & sme banking head"
func ExtractSearchTerm(text string, vocab Vocabulary) string {
	norm := normalize(text)

	// Trailing organization suffixes go first so their prepositions do not
	// survive as stray connectors. Only true suffixes are stripped; a bank
	// mention mid-sentence is left for the cue pass.
	norm = strings.TrimRight(norm, " ?!.")
	for _, suffix := range vocab.BankSuffixes {
		norm = strings.TrimSuffix(norm, " "+suffix)
	}

	// Multi-word directory cues drop as phrases before tokenization.
	for _, cue := range vocab.DirectoryCues {
		if strings.Contains(cue, " ") {
			norm = strings.ReplaceAll(norm, cue, " ")
		}
	}

	tokens := tokenize(norm)

	// Leading interrogatives and courtesy words.
	start := 0
	for start < len(tokens) && (containsWord(vocab.Interrogatives, tokens[start]) ||
		containsWord(vocab.CourtesyWords, tokens[start])) {
		start++
	}
	tokens = tokens[start:]

	// Single-word directory cues and the generic "number"/"id"/"details"
	// companions drop anywhere.
	cueWords := singleWordSet(vocab.DirectoryCues)
	cueWords["number"] = true
	cueWords["no"] = true
	cueWords["id"] = true
	cueWords["details"] = true
	cueWords["info"] = true
	cueWords["information"] = true

	kept := tokens[:0]
	hadUnit := false
	hadRole := false
	for _, tok := range tokens {
		if cueWords[tok] {
			continue
		}
		if containsWord(vocab.OrgUnitNouns, tok) {
			hadUnit = true
			continue
		}
		if containsWord(vocab.RoleNouns, tok) {
			hadRole = true
		}
		kept = append(kept, tok)
	}

	// Connectors left dangling at either end after the removals.
	for len(kept) > 0 && leadingConnectors[kept[0]] {
		kept = kept[1:]
	}
	for len(kept) > 0 && leadingConnectors[kept[len(kept)-1]] {
		kept = kept[:len(kept)-1]
	}

	if len(kept) == 0 {
		return ""
	}

	if hadUnit && !hadRole {
		kept = append(kept, "head")
	}

	return strings.Join(kept, " ")
}

func containsWord(list []string, word string) bool {
	for _, w := range list {
		if w == word {
			return true
		}
	}
	return false
}

// singleWordSet keeps only the one-token vocabulary entries as a set.
func singleWordSet(entries []string) map[string]bool {
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !strings.Contains(e, " ") {
			out[e] = true
		}
	}
	return out
}
