// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Correlation Flow
//
//	Request
//	   │
//	   ▼
//	CorrelationMiddleware
//	   │
//	   ├─► Honor "X-Correlation-ID" when the caller sent one
//	   │
//	   ├─► Otherwise generate a UUID
//	   │
//	   └─► Store in context, echo in the response header
//	           │
//	           ▼
//	       Handler (retrieves via GetCorrelationID)
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationHeader carries the request correlation identifier on the wire.
const CorrelationHeader = "X-Correlation-ID"

// correlationKey is the gin context key for the correlation ID. A namespaced
// string key prevents collisions with other middleware.
const correlationKey = "tellergate_correlation_id"

// GetCorrelationID returns the request's correlation ID, or empty string
// when the middleware did not run.
func GetCorrelationID(c *gin.Context) string {
	if v, ok := c.Get(correlationKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// Correlation returns the middleware that assigns every request a
// correlation ID. The ID is honored from the request header when present so
// a gateway-assigned ID survives through the orchestrator's logs, and it is
// always echoed back in the response.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(correlationKey, id)
		c.Header(CorrelationHeader, id)
		c.Next()
	}
}
