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
	"time"

	"github.com/AleutianAI/AleutianConnect/services/modelsync"
	"github.com/AleutianAI/AleutianConnect/services/session"
)

// ServiceVersion is the daemon API version.
const ServiceVersion = "0.1.0"

// SignInRequest is the body of POST /v1/session/sign-in.
type SignInRequest struct {
	// Endpoint is the platform URL to sign in to.
	Endpoint string `json:"endpoint" binding:"required"`

	// Token is the access token. Empty means an anonymous session
	// against the endpoint.
	Token string `json:"token"`

	// CustomHeaders are sent with every platform request, for deployments
	// behind header-authenticating proxies.
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
}

// StatusResponse carries the committed session status.
type StatusResponse struct {
	Status session.AuthStatus `json:"status"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	// Status is "healthy" while the daemon serves requests.
	Status string `json:"status"`

	// Version is the daemon API version.
	Version string `json:"version"`

	// SignedIn mirrors the session's signed-in flag.
	SignedIn bool `json:"signedIn"`

	// Endpoint is the active endpoint, empty when anonymous.
	Endpoint string `json:"endpoint,omitempty"`
}

// ModelsResponse is the body of GET /v1/models.
type ModelsResponse struct {
	// Endpoint the catalog was synced from. Empty when signed out.
	Endpoint string `json:"endpoint,omitempty"`

	// SyncedAt is when the catalog was last refreshed.
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	// Models is the synced catalog, sorted by ID. Empty when signed out.
	Models []modelsync.Model `json:"models"`
}

// EndpointsResponse is the body of GET /v1/endpoints.
type EndpointsResponse struct {
	// Active is the signed-in endpoint, empty when anonymous.
	Active string `json:"active,omitempty"`

	// Endpoints are previously used endpoints, newest first.
	Endpoints []string `json:"endpoints"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// Event is a message on the /v1/session/events stream.
type Event struct {
	// Type is one of the EventType constants.
	Type string `json:"type"`

	// SessionID identifies the stream connection. Set on "connected".
	SessionID string `json:"sessionId,omitempty"`

	// Status is the committed session status. Set on "status".
	Status *session.AuthStatus `json:"status,omitempty"`
}

// Event types sent on the event stream.
const (
	// EventTypeConnected is sent once, immediately after the upgrade.
	EventTypeConnected = "connected"

	// EventTypeStatus carries a committed session status. The current
	// status is sent right after "connected", then one event per change.
	EventTypeStatus = "status"
)
