// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianConnect/services/api"
	"github.com/AleutianAI/AleutianConnect/services/gateway"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/settings"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testEndpoint = "https://platform.example.com"
	testToken    = "alp_0123456789abcdef0123456789abcdef01234567"
)

type stubValidator struct{}

func (stubValidator) Validate(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error) {
	return &gateway.ValidationResult{
		Site:   gateway.SiteDescription{Version: "5.4.1", AssistantEnabled: true},
		Viewer: gateway.Viewer{Username: "alice", Email: "alice@example.com"},
	}, nil
}

// startDaemonFixture serves the real API router over a loopback listener
// and returns a client pointed at it.
func startDaemonFixture(t *testing.T) *daemonClient {
	t.Helper()

	// The manager and the handlers share one settings store so the
	// endpoint history reflects sign-ins.
	store := settings.NewMemoryStore()
	manager, err := session.NewManager(session.Config{
		Credentials: vault.NewMemoryStore(),
		Settings:    store,
		Validator:   stubValidator{},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, manager.Start(context.Background()))
	t.Cleanup(func() { manager.Close() })

	router := gin.New()
	handlers := api.NewHandlers(manager).
		WithSettings(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	api.SetupRoutes(router, handlers)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return newDaemonClient(strings.TrimPrefix(server.URL, "http://"))
}

func TestDaemonClient_AvailableProbe(t *testing.T) {
	client := startDaemonFixture(t)
	assert.True(t, client.Available())

	gone := newDaemonClient("127.0.0.1:1")
	assert.False(t, gone.Available())
}

func TestDaemonClient_SignInRoundTrip(t *testing.T) {
	client := startDaemonFixture(t)
	ctx := context.Background()

	status, err := client.SignIn(ctx, "platform.example.com", testToken, nil)
	require.NoError(t, err)
	assert.True(t, status.SignedIn)
	assert.Equal(t, testEndpoint, status.Endpoint)
	require.NotNil(t, status.Account)
	assert.Equal(t, "alice", status.Account.Username)

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.SignedIn)

	status, err = client.SignOut(ctx)
	require.NoError(t, err)
	assert.False(t, status.SignedIn)
}

func TestDaemonClient_EndpointHistory(t *testing.T) {
	client := startDaemonFixture(t)
	ctx := context.Background()

	_, err := client.SignIn(ctx, testEndpoint, testToken, nil)
	require.NoError(t, err)

	resp, err := client.Endpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, testEndpoint, resp.Active)
	assert.Equal(t, []string{testEndpoint}, resp.Endpoints)

	require.NoError(t, client.RemoveEndpoint(ctx, testEndpoint))

	resp, err = client.Endpoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, resp.Endpoints)
	// Forgetting the history entry does not sign out.
	assert.Equal(t, testEndpoint, resp.Active)
}

func TestDaemonClient_ErrorsCarryTheDaemonCode(t *testing.T) {
	client := startDaemonFixture(t)

	err := client.RemoveEndpoint(context.Background(), "")

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", apiErr.Code)
	assert.NotEmpty(t, apiErr.Error())
}

func TestDaemonClient_WatchStreamsStatusChanges(t *testing.T) {
	client := startDaemonFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan api.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- client.Watch(ctx, func(event api.Event) {
			events <- event
		})
	}()

	// connected, then the current (anonymous) status.
	require.Equal(t, api.EventTypeConnected, nextEvent(t, events).Type)
	first := nextEvent(t, events)
	require.Equal(t, api.EventTypeStatus, first.Type)
	require.NotNil(t, first.Status)
	assert.False(t, first.Status.SignedIn)

	_, err := client.SignIn(context.Background(), testEndpoint, testToken, nil)
	require.NoError(t, err)

	update := nextEvent(t, events)
	require.Equal(t, api.EventTypeStatus, update.Type)
	require.NotNil(t, update.Status)
	assert.True(t, update.Status.SignedIn)
	assert.Equal(t, testEndpoint, update.Status.Endpoint)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "a cancelled watch is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func nextEvent(t *testing.T, events <-chan api.Event) api.Event {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return api.Event{}
	}
}

func TestNewDaemonClient_DefaultsTheAddress(t *testing.T) {
	client := newDaemonClient("")
	assert.Equal(t, "http://"+api.DefaultAddr, client.base)
}

func TestAPIError_Message(t *testing.T) {
	err := &apiError{StatusCode: 500, Code: "SIGN_IN_FAILED", Message: "session operation failed: boom"}
	assert.Equal(t, "session operation failed: boom", err.Error())

	bare := &apiError{StatusCode: 502}
	assert.Contains(t, bare.Error(), "502")
}
