// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Levels
// =============================================================================

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("anything else"))
}

// =============================================================================
// File Logging
// =============================================================================

func TestFileLoggingWritesJSONWithServiceTag(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Service: "testsvc",
		Quiet:   true,
		LogDir:  dir,
	})
	logger.Info("turn completed", "route", "fee_query", "chunks", 3)
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "testsvc_"))

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "turn completed", record["msg"])
	assert.Equal(t, "testsvc", record["service"])
	assert.Equal(t, "fee_query", record["route"])
}

func TestFileLoggingFiltersBelowLevel(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Service: "testsvc",
		Level:   LevelWarn,
		Quiet:   true,
		LogDir:  dir,
	})
	logger.Debug("noise")
	logger.Info("also noise")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "\n"))
	assert.Contains(t, string(raw), "kept")
	assert.NotContains(t, string(raw), "noise")
}

func TestWithCarriesAttributes(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{Service: "testsvc", Quiet: true, LogDir: dir})
	child := logger.With("session_id", "abc-123")
	child.Info("hello")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "abc-123")
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestCloseWithoutFileIsNil(t *testing.T) {
	logger := New(Config{Quiet: true})
	assert.NoError(t, logger.Close())
}

func TestDefaultServiceName(t *testing.T) {
	logger := New(Config{Quiet: true})
	assert.Equal(t, "tellergate", logger.config.Service)
}

func TestSlogAccessorNotNil(t *testing.T) {
	logger := Default()
	assert.NotNil(t, logger.Slog())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".tellergate/logs"), expandPath("~/.tellergate/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.Equal(t, "relative/path", expandPath("relative/path"))
}
