// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/services/gateway"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/settings"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare host gets https", "platform.example.com", "https://platform.example.com"},
		{"trailing slash dropped", "https://platform.example.com/", "https://platform.example.com"},
		{"host lowercased", "https://Platform.Example.COM", "https://platform.example.com"},
		{"malformed falls back to trimmed", "  ht!tp://::bad  ", "ht!tp://::bad"},
		{"empty stays empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEndpoint(tt.raw))
		})
	}
}

func TestVaultPath_ExplicitWins(t *testing.T) {
	path, err := VaultPath(config.VaultConfig{Path: "/tmp/custom-vault"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-vault", path)
}

func TestSettingsPath_DefaultsUnderStateDir(t *testing.T) {
	dir, err := StateDir()
	require.NoError(t, err)

	path, err := SettingsPath(config.SettingsConfig{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "settings"), path)
}

func TestFlagFile_MirrorsSignedInState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signed-in")
	flag := &flagFile{path: path, logger: discardLogger()}

	flag.SetSignedIn(true)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(data))

	flag.SetSignedIn(false)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing an absent marker must stay quiet.
	flag.SetSignedIn(false)
}

type captureValidator struct {
	mu      sync.Mutex
	calls   int
	headers map[string]string
}

func (v *captureValidator) Validate(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.headers = headers
	return &gateway.ValidationResult{
		Site:   gateway.SiteDescription{Version: "5.4.1", AssistantEnabled: true},
		Viewer: gateway.Viewer{Username: "alice"},
	}, nil
}

func (v *captureValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func (v *captureValidator) lastHeaders() map[string]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.headers
}

func TestHeaderValidator_InjectsConfiguredHeaders(t *testing.T) {
	inner := &captureValidator{}
	v := &headerValidator{inner: inner, headers: map[string]string{"X-Proxy-Auth": "cfg"}}

	_, err := v.Validate(context.Background(), "https://platform.example.com", "tok", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Proxy-Auth": "cfg"}, inner.lastHeaders())

	_, err = v.Validate(context.Background(), "https://platform.example.com", "tok",
		map[string]string{"X-Proxy-Auth": "explicit"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Proxy-Auth": "explicit"}, inner.lastHeaders(),
		"per-request headers must win over configured ones")
}

func TestReloadHandler_ReactsToAuthChangesOnly(t *testing.T) {
	validator := &captureValidator{}
	manager, err := session.NewManager(session.Config{
		Credentials: vault.NewMemoryStore(),
		Settings:    settings.NewMemoryStore(),
		Validator:   validator,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	ctx := context.Background()
	require.NoError(t, manager.Start(ctx))
	_, err = manager.Authenticate(ctx, "https://platform.example.com",
		"alp_0123456789abcdef0123456789abcdef01234567")
	require.NoError(t, err)
	require.Equal(t, 1, validator.callCount())

	base := config.ConnectConfig{Endpoint: "https://platform.example.com"}
	handler := reloadHandler(ctx, manager, base, discardLogger())

	unchanged := base
	handler(&unchanged)
	assert.Equal(t, 1, validator.callCount(), "an unrelated change must not re-validate")

	changed := base
	changed.Endpoint = "https://other.example.com"
	handler(&changed)
	assert.Equal(t, 2, validator.callCount())
}
