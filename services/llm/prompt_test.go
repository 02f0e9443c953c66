// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPrompt_ContainsBankNameAndSingleCurrencyRule(t *testing.T) {
	prompt := SystemPrompt("EBL")

	assert.Contains(t, prompt, "EBL")
	// The currency-preservation constraint must appear exactly once.
	assert.Equal(t, 1, strings.Count(prompt, "BDT 287.5"))
}

func TestBuildMessages_EmptyContextUsesEmptyHeader(t *testing.T) {
	messages := BuildMessages("EBL", nil, 20, "", "hello")

	require.Len(t, messages, 2)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, RoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, ContextHeaderEmpty)
	assert.Contains(t, messages[1].Content, "hello")
	assert.NotContains(t, messages[1].Content, ContextHeaderRetrieval)
}

func TestBuildMessages_RetrievalContextCarriesHeader(t *testing.T) {
	messages := BuildMessages("EBL", nil, 20, "EBL was founded in 1992.", "when was the bank founded")

	last := messages[len(messages)-1]
	assert.Contains(t, last.Content, ContextHeaderRetrieval)
	assert.Contains(t, last.Content, "EBL was founded in 1992.")
}

func TestBuildMessages_HistoryTruncatedToWindow(t *testing.T) {
	history := []Transcript{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "second"},
		{Role: RoleUser, Content: "third"},
		{Role: RoleAssistant, Content: "fourth"},
	}

	messages := BuildMessages("EBL", history, 2, "", "now")

	// system + 2 history + final user
	require.Len(t, messages, 4)
	assert.Equal(t, "third", messages[1].Content)
	assert.Equal(t, "fourth", messages[2].Content)
}

func TestBuildMessages_UnknownRoleCoercedToUser(t *testing.T) {
	history := []Transcript{{Role: "tool", Content: "x"}}

	messages := BuildMessages("EBL", history, 20, "", "q")

	assert.Equal(t, RoleUser, messages[1].Role)
}
