// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"io"
	"strings"
)

// sourcesSentinel frames the trailing sources block on the chat stream.
const sourcesSentinel = "__SOURCES__"

// streamResult is what one streamed turn produced.
type streamResult struct {
	Answer  string
	Sources []string
}

// consumeStream copies answer bytes from the response body to out as they
// arrive and captures the trailing sources block.
//
// The server terminates the answer with an optional
// __SOURCES__{"sources":[...]}__SOURCES__ block. Because the opening
// sentinel can be split across reads, the copier withholds any suffix that
// could be the start of a sentinel until more bytes or EOF settle it. A
// malformed or unterminated block is treated as answer text, so a truncated
// stream still shows the user everything that was sent.
func consumeStream(body io.Reader, out io.Writer) (*streamResult, error) {
	var (
		answer  strings.Builder
		tail    string
		trailer string
		inTail  bool
		buf     = make([]byte, 4*1024)
	)

	emit := func(s string) error {
		if s == "" {
			return nil
		}
		answer.WriteString(s)
		_, err := io.WriteString(out, s)
		return err
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if inTail {
				trailer += string(buf[:n])
			} else {
				pending := tail + string(buf[:n])
				if idx := strings.Index(pending, sourcesSentinel); idx >= 0 {
					if werr := emit(pending[:idx]); werr != nil {
						return nil, werr
					}
					trailer = pending[idx:]
					tail = ""
					inTail = true
				} else {
					keep := sentinelOverlap(pending)
					if werr := emit(pending[:len(pending)-keep]); werr != nil {
						return nil, werr
					}
					tail = pending[len(pending)-keep:]
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	result := &streamResult{}
	if inTail {
		sources, ok := parseSourcesBlock(trailer)
		if !ok {
			// Not a well-formed block after all; show it.
			if err := emit(trailer); err != nil {
				return nil, err
			}
		} else {
			result.Sources = sources
		}
	} else if err := emit(tail); err != nil {
		return nil, err
	}

	result.Answer = answer.String()
	return result, nil
}

// sentinelOverlap returns the length of the longest suffix of s that is a
// proper prefix of the sentinel.
func sentinelOverlap(s string) int {
	max := len(sourcesSentinel) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasPrefix(sourcesSentinel, s[len(s)-k:]) {
			return k
		}
	}
	return 0
}

// parseSourcesBlock decodes __SOURCES__{json}__SOURCES__ into its source
// list. ok is false when the block is unterminated or the JSON is invalid.
func parseSourcesBlock(block string) ([]string, bool) {
	inner, found := strings.CutPrefix(block, sourcesSentinel)
	if !found {
		return nil, false
	}
	payload, found := strings.CutSuffix(inner, sourcesSentinel)
	if !found {
		return nil, false
	}
	var parsed struct {
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, false
	}
	return parsed.Sources, true
}
