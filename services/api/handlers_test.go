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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianConnect/services/gateway"
	"github.com/AleutianAI/AleutianConnect/services/modelsync"
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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okValidation() *gateway.ValidationResult {
	return &gateway.ValidationResult{
		Site: gateway.SiteDescription{
			Version:          "5.4.1",
			AssistantEnabled: true,
		},
		Models: gateway.ModelDefaults{
			Provider:  "aleutian",
			ChatModel: "aleutian::deep-chat",
		},
		Viewer: gateway.Viewer{
			Username: "alice",
			Email:    "alice@example.com",
		},
	}
}

type fakeValidator struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error)
}

func (f *fakeValidator) Validate(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, endpoint, token, headers)
	}
	return okValidation(), nil
}

type fixture struct {
	manager   *session.Manager
	validator *fakeValidator
	creds     *vault.MemoryStore
	settings  *settings.MemoryStore
	handlers  *Handlers
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		validator: &fakeValidator{},
		creds:     vault.NewMemoryStore(),
		settings:  settings.NewMemoryStore(),
	}

	manager, err := session.NewManager(session.Config{
		Credentials: f.creds,
		Settings:    f.settings,
		Validator:   f.validator,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, manager.Start(context.Background()))
	t.Cleanup(func() { manager.Close() })
	f.manager = manager

	f.handlers = NewHandlers(manager).WithSettings(f.settings).WithLogger(discardLogger())
	f.router = gin.New()
	SetupRoutes(f.router, f.handlers)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) session.AuthStatus {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Status
}

func TestHandleStatus_ReturnsPlaceholder(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/session/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	status := decodeStatus(t, w)
	assert.False(t, status.SignedIn)
	assert.Empty(t, status.Endpoint)
}

func TestHandleSignIn_Success(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: "platform.example.com",
		Token:    testToken,
	})

	require.Equal(t, http.StatusOK, w.Code)
	status := decodeStatus(t, w)
	assert.True(t, status.SignedIn)
	assert.Equal(t, testEndpoint, status.Endpoint)
	require.NotNil(t, status.Account)
	assert.Equal(t, "alice", status.Account.Username)

	stored, err := f.creds.Get(context.Background(), testEndpoint)
	require.NoError(t, err)
	assert.Equal(t, testToken, stored)
}

func TestHandleSignIn_MissingEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/session/sign-in", map[string]string{"token": testToken})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestHandleSignIn_InvalidToken(t *testing.T) {
	f := newFixture(t)
	f.validator.fn = func(context.Context, string, string, map[string]string) (*gateway.ValidationResult, error) {
		return nil, &gateway.RequestError{
			Class:      gateway.ClassInvalidCredentials,
			Path:       "/.api/viewer",
			StatusCode: http.StatusUnauthorized,
		}
	}

	w := f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: testEndpoint,
		Token:    testToken,
	})

	// The request worked; the outcome rides in the status.
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeStatus(t, w)
	assert.False(t, status.SignedIn)
	assert.True(t, status.InvalidToken)
	assert.Equal(t, session.ConnectivityOnline, status.Connectivity)
}

func TestHandleSignIn_Superseded(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.validator.fn = func(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error) {
		// Only the first call gates; the superseding call resolves at once.
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return okValidation(), nil
	}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
			Endpoint: testEndpoint,
			Token:    testToken,
		})
	}()
	<-entered

	second := f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: testEndpoint,
		Token:    "alp_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	})
	close(release)
	w := <-first

	require.Equal(t, http.StatusOK, second.Code)
	assert.True(t, decodeStatus(t, second).SignedIn)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SUPERSEDED", resp.Code)
}

func TestHandleSignOut(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: testEndpoint,
		Token:    testToken,
	}).Code)

	w := f.do(t, http.MethodPost, "/v1/session/sign-out", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeStatus(t, w).SignedIn)

	_, err := f.creds.Get(context.Background(), testEndpoint)
	assert.ErrorIs(t, err, vault.ErrTokenNotFound)
}

func TestHandleReload_UsesPersistedCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.creds.Store(ctx, testEndpoint, testToken))
	require.NoError(t, f.settings.SetLastEndpoint(ctx, testEndpoint))

	w := f.do(t, http.MethodPost, "/v1/session/reload", nil)

	require.Equal(t, http.StatusOK, w.Code)
	status := decodeStatus(t, w)
	assert.True(t, status.SignedIn)
	assert.Equal(t, testEndpoint, status.Endpoint)
}

func TestHandleModels_WithoutSyncer(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/models", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MODEL_SYNC_DISABLED", resp.Code)
}

func TestHandleModels_ServesSyncedCatalog(t *testing.T) {
	f := newFixture(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/.api/llm/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "aleutian::fast-edit", "object": "model", "owned_by": "aleutian"},
				{"id": "aleutian::deep-chat", "object": "model", "owned_by": "aleutian"},
			},
		})
	})
	platform := httptest.NewServer(mux)
	t.Cleanup(platform.Close)

	ctx := context.Background()
	require.NoError(t, f.creds.Store(ctx, platform.URL, testToken))
	syncer, err := modelsync.NewSyncer(modelsync.Config{Credentials: f.creds, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, syncer.Sync(ctx, session.AuthStatus{
		Endpoint:     platform.URL,
		SignedIn:     true,
		Account:      &session.Account{Username: "alice", Authenticated: true},
		Connectivity: session.ConnectivityOnline,
	}))
	f.handlers.WithModels(syncer)

	w := f.do(t, http.MethodGet, "/v1/models", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Models, 2)
	assert.Equal(t, "aleutian::deep-chat", resp.Models[0].ID)
	assert.Equal(t, platform.URL, resp.Endpoint)
	require.NotNil(t, resp.SyncedAt)
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.False(t, resp.SignedIn)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: testEndpoint,
		Token:    testToken,
	}).Code)

	w = f.do(t, http.MethodGet, "/healthz", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.SignedIn)
	assert.Equal(t, testEndpoint, resp.Endpoint)
}

func TestHandleEndpoints_ListsHistory(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: "https://old.example.com",
		Token:    testToken,
	}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: testEndpoint,
		Token:    testToken,
	}).Code)

	w := f.do(t, http.MethodGet, "/v1/endpoints", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp EndpointsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testEndpoint, resp.Active)
	assert.Equal(t, []string{testEndpoint, "https://old.example.com"}, resp.Endpoints)
}

func TestHandleRemoveEndpoint_ForgetsWithoutSigningOut(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/session/sign-in", SignInRequest{
		Endpoint: testEndpoint,
		Token:    testToken,
	}).Code)

	query := url.Values{"endpoint": {testEndpoint}}
	w := f.do(t, http.MethodDelete, "/v1/endpoints?"+query.Encode(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/v1/endpoints", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp EndpointsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Endpoints)
	assert.Equal(t, testEndpoint, resp.Active, "removing a history entry must not sign out")
}

func TestHandleRemoveEndpoint_RequiresParam(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodDelete, "/v1/endpoints", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestHandleEndpoints_WithoutStore(t *testing.T) {
	f := newFixture(t)

	router := gin.New()
	SetupRoutes(router, NewHandlers(f.manager).WithLogger(discardLogger()))
	req, err := http.NewRequest(http.MethodGet, "/v1/endpoints", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "HISTORY_DISABLED", resp.Code)
}

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	f := newFixture(t)

	wantRoutes := []struct {
		method string
		path   string
	}{
		{"POST", "/v1/session/sign-in"},
		{"POST", "/v1/session/sign-out"},
		{"POST", "/v1/session/reload"},
		{"GET", "/v1/session/status"},
		{"GET", "/v1/session/events"},
		{"GET", "/v1/models"},
		{"GET", "/v1/endpoints"},
		{"DELETE", "/v1/endpoints"},
		{"GET", "/healthz"},
		{"GET", "/metrics"},
	}

	routes := f.router.Routes()
	for _, want := range wantRoutes {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", want.method, want.path)
	}
}
