// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func runCorrelation(t *testing.T, header string) (seen string, w *httptest.ResponseRecorder) {
	t.Helper()
	r := gin.New()
	r.Use(Correlation())
	r.GET("/", func(c *gin.Context) {
		seen = GetCorrelationID(c)
		c.Status(http.StatusOK)
	})

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(CorrelationHeader, header)
	}
	r.ServeHTTP(w, req)
	return seen, w
}

func TestCorrelationHonorsCallerID(t *testing.T) {
	seen, w := runCorrelation(t, "gateway-abc-123")
	assert.Equal(t, "gateway-abc-123", seen)
	assert.Equal(t, "gateway-abc-123", w.Header().Get(CorrelationHeader))
}

func TestCorrelationGeneratesWhenAbsent(t *testing.T) {
	seen, w := runCorrelation(t, "")
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(CorrelationHeader))
}

func TestCorrelationRejectsOversizedID(t *testing.T) {
	huge := strings.Repeat("x", 300)
	seen, _ := runCorrelation(t, huge)
	require.NotEmpty(t, seen)
	assert.NotEqual(t, huge, seen, "oversized caller IDs are replaced")
}
