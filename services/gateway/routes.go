// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the gating surface on the router.
func SetupRoutes(router *gin.Engine, gw *Gateway) {
	router.GET("/health", gw.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/ask-gate", gw.HandleAskGate)
		v1.POST("/ingest-gate", gw.HandleIngestGate)
		v1.POST("/response-gate", gw.HandleResponseGate)

		// Report access is POST, not GET: accessor identity and purpose
		// are mandatory and belong in the body, not the URL.
		safetyGroup := v1.Group("/safety")
		{
			safetyGroup.POST("/report/:id", gw.HandleGetReport)
			safetyGroup.POST("/reports/cleanup", gw.HandleCleanupReports)
		}
	}
}
