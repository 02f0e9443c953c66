// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval implements the look-aside cache and the client for the
// knowledge retrieval service.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var fingerprintWS = regexp.MustCompile(`\s+`)

// Fingerprint computes the cache key for one (utterance, knowledge base)
// pair: SHA-256 over the lowercased, whitespace-collapsed utterance, a NUL
// separator, and the knowledge-base name, hex-encoded.
//
// Utterances differing only by case or internal whitespace fingerprint
// identically; the NUL separator keeps "a b"+"c" distinct from "a"+"b c".
func Fingerprint(utterance, knowledgeBase string) string {
	norm := fingerprintWS.ReplaceAllString(strings.ToLower(strings.TrimSpace(utterance)), " ")
	h := sha256.New()
	h.Write([]byte(norm))
	h.Write([]byte{0})
	h.Write([]byte(knowledgeBase))
	return hex.EncodeToString(h.Sum(nil))
}
