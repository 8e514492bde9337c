// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers all daemon API routes with the router.
//
// Endpoints:
//
//	POST /v1/session/sign-in  - Run a sign-in attempt
//	POST /v1/session/sign-out - Delete the token, return to anonymous
//	POST /v1/session/reload   - Re-authenticate from persisted credentials
//	GET  /v1/session/status   - Current committed status
//	GET  /v1/session/events   - WebSocket status stream
//	GET  /v1/models           - Synced model catalog
//	GET  /v1/endpoints        - Endpoint history, newest first
//	DELETE /v1/endpoints      - Forget one endpoint from the history
//	GET  /healthz             - Health check with the signed-in flag
//	GET  /metrics             - Prometheus metrics
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		sess := v1.Group("/session")
		{
			sess.POST("/sign-in", h.HandleSignIn)
			sess.POST("/sign-out", h.HandleSignOut)
			sess.POST("/reload", h.HandleReload)
			sess.GET("/status", h.HandleStatus)
			sess.GET("/events", h.HandleEvents)
		}

		v1.GET("/models", h.HandleModels)
		v1.GET("/endpoints", h.HandleEndpoints)
		v1.DELETE("/endpoints", h.HandleRemoveEndpoint)
	}
}
