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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianConnect/services/api/observability"
	"github.com/AleutianAI/AleutianConnect/services/modelsync"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/settings"
)

// Handlers contains the HTTP handlers for the daemon API.
type Handlers struct {
	manager  *session.Manager
	models   *modelsync.Syncer
	settings settings.Store
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewHandlers creates handlers around the given session manager.
func NewHandlers(manager *session.Manager) *Handlers {
	return &Handlers{manager: manager, logger: slog.Default()}
}

// WithModels sets the model catalog syncer backing GET /v1/models.
func (h *Handlers) WithModels(syncer *modelsync.Syncer) *Handlers {
	h.models = syncer
	return h
}

// WithSettings sets the settings store backing the endpoint history API.
func (h *Handlers) WithSettings(store settings.Store) *Handlers {
	h.settings = store
	return h
}

// WithMetrics sets the metrics instance for sign-in outcome counters.
func (h *Handlers) WithMetrics(metrics *observability.Metrics) *Handlers {
	h.metrics = metrics
	return h
}

// WithLogger sets the handler logger.
func (h *Handlers) WithLogger(logger *slog.Logger) *Handlers {
	h.logger = logger
	return h
}

// HandleSignIn handles POST /v1/session/sign-in.
//
// # Description
//
// Runs a full sign-in attempt: the endpoint is normalized, the token
// validated against the platform, and the resulting status committed and
// fanned out. A concurrent sign-in supersedes this one; the superseded
// request answers 409 and the winner's status stands.
//
// Request Body:
//
//	SignInRequest
//
// Response:
//
//	200 OK: StatusResponse (also for invalid tokens and unreachable
//	        endpoints - the outcome lives in the status itself)
//	400 Bad Request: Validation error
//	409 Conflict: A newer sign-in attempt took over
//	503 Service Unavailable: Daemon is shutting down
func (h *Handlers) HandleSignIn(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleSignIn"))

	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	status, err := h.manager.Authenticate(c.Request.Context(), req.Endpoint, req.Token,
		session.WithHeaders(req.CustomHeaders))
	if err != nil {
		h.countSignIn(errorOutcome(err))
		h.writeSessionError(c, logger, err, "SIGN_IN_FAILED")
		return
	}

	h.countSignIn(observability.SignInOutcome(status))
	c.JSON(http.StatusOK, StatusResponse{Status: status})
}

// HandleSignOut handles POST /v1/session/sign-out. The token is deleted,
// the endpoint forgotten, and the session returns to anonymous.
func (h *Handlers) HandleSignOut(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleSignOut"))

	if err := h.manager.SignOut(c.Request.Context()); err != nil {
		h.writeSessionError(c, logger, err, "SIGN_OUT_FAILED")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: h.manager.CurrentStatus()})
}

// HandleReload handles POST /v1/session/reload. Re-authenticates from
// persisted credentials, e.g. after the config file changed.
func (h *Handlers) HandleReload(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleReload"))

	status, err := h.manager.Reload(c.Request.Context())
	if err != nil {
		h.writeSessionError(c, logger, err, "RELOAD_FAILED")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: status})
}

// HandleStatus handles GET /v1/session/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: h.manager.CurrentStatus()})
}

// HandleModels handles GET /v1/models, serving the synced catalog.
func (h *Handlers) HandleModels(c *gin.Context) {
	if h.models == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "model sync is not enabled",
			Code:  "MODEL_SYNC_DISABLED",
		})
		return
	}

	resp := ModelsResponse{
		Endpoint: h.models.Endpoint(),
		Models:   h.models.Catalog(),
	}
	if resp.Models == nil {
		resp.Models = []modelsync.Model{}
	}
	if ts := h.models.SyncedAt(); !ts.IsZero() {
		resp.SyncedAt = &ts
	}
	c.JSON(http.StatusOK, resp)
}

// HandleEndpoints handles GET /v1/endpoints, listing previously used
// platform endpoints, newest first, with the active one marked.
func (h *Handlers) HandleEndpoints(c *gin.Context) {
	if h.settings == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "endpoint history is not available",
			Code:  "HISTORY_DISABLED",
		})
		return
	}

	history, err := h.settings.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "reading the endpoint history failed",
			Code:    "HISTORY_FAILED",
			Details: err.Error(),
		})
		return
	}

	resp := EndpointsResponse{Endpoints: history}
	if resp.Endpoints == nil {
		resp.Endpoints = []string{}
	}
	if status := h.manager.CurrentStatus(); status.SignedIn {
		resp.Active = status.Endpoint
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRemoveEndpoint handles DELETE /v1/endpoints?endpoint=<url>.
// Removing only forgets the history entry; it does not sign out.
func (h *Handlers) HandleRemoveEndpoint(c *gin.Context) {
	if h.settings == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "endpoint history is not available",
			Code:  "HISTORY_DISABLED",
		})
		return
	}

	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "the endpoint query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.settings.RemoveFromHistory(c.Request.Context(), endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "removing the endpoint failed",
			Code:    "HISTORY_FAILED",
			Details: err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	status := h.manager.CurrentStatus()
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		SignedIn: status.SignedIn,
		Endpoint: status.Endpoint,
	})
}

// writeSessionError maps session manager errors onto HTTP responses.
func (h *Handlers) writeSessionError(c *gin.Context, logger *slog.Logger, err error, fallbackCode string) {
	switch {
	case errors.Is(err, session.ErrAttemptSuperseded):
		logger.Info("attempt superseded by a newer sign-in")
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "a newer sign-in attempt took over",
			Code:  "SUPERSEDED",
		})
	case errors.Is(err, session.ErrManagerClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "daemon is shutting down",
			Code:  "SHUTTING_DOWN",
		})
	default:
		logger.Error("session operation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session operation failed",
			Code:    fallbackCode,
			Details: err.Error(),
		})
	}
}

func (h *Handlers) countSignIn(outcome string) {
	if h.metrics != nil {
		h.metrics.SignInsTotal.WithLabelValues(outcome).Inc()
	}
}

func errorOutcome(err error) string {
	switch {
	case errors.Is(err, session.ErrAttemptSuperseded):
		return "superseded"
	case errors.Is(err, session.ErrManagerClosed):
		return "rejected"
	default:
		return "failed"
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
