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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/handlers"
)

// SetupRoutes registers the explorer API on router.
//
// metrics may be nil, in which case /metrics is not served.
func SetupRoutes(router *gin.Engine, serviceName string, h *handlers.ExplorationHandler, metrics http.Handler) {
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/health", handlers.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/v1")
	{
		explorations := v1.Group("/explorations")
		{
			explorations.POST("", h.Start)
			explorations.GET("", h.List)
			explorations.GET("/:id", h.Get)
			explorations.POST("/:id/iterate", h.Iterate)
			explorations.POST("/:id/run", h.Run)
			explorations.GET("/:id/tree", h.Tree)
			explorations.GET("/:id/winning-path", h.WinningPath)
			explorations.GET("/:id/watch", h.Watch)
		}
	}
}
