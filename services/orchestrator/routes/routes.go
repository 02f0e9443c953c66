// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/TellerGate/services/orchestrator/handlers"
)

// SetupRoutes registers the public HTTP surface on the given router.
//
// The chat endpoint streams raw UTF-8 over a chunked response body; the
// sync variant aggregates the same turn into a single JSON payload for
// clients that cannot consume a stream.
func SetupRoutes(router *gin.Engine, chat *handlers.ChatHandler, health *handlers.HealthHandler) {
	router.GET("/health", health.HandleLiveness)
	router.GET("/health/detailed", health.HandleDetailed)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/chat", chat.HandleChat)
	router.POST("/chat/sync", chat.HandleChatSync)
}
