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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

func TestPickEndpoint_Precedence(t *testing.T) {
	tests := []struct {
		name                  string
		arg, flag, configured string
		want                  string
	}{
		{"argument wins", "https://a.example.com", "https://b.example.com", "https://c.example.com", "https://a.example.com"},
		{"flag beats config", "", "https://b.example.com", "https://c.example.com", "https://b.example.com"},
		{"config is last", "", "", "https://c.example.com", "https://c.example.com"},
		{"whitespace is no input", "   ", "\t", "", ""},
		{"trims the winner", "  https://a.example.com  ", "", "", "https://a.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickEndpoint(tt.arg, tt.flag, tt.configured))
		})
	}
}

func TestResolveToken_PrefersEnvironment(t *testing.T) {
	t.Setenv(vault.EnvAccessToken, "  alp_fromenv  ")
	tokenStdin = false
	defer func() { tokenStdin = false }()

	token, err := resolveToken("https://platform.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alp_fromenv", token)
}

func TestResolveToken_EmptyWithoutTerminal(t *testing.T) {
	t.Setenv(vault.EnvAccessToken, "")
	tokenStdin = false

	// Test processes have no TTY, so the interactive prompt is skipped
	// and the sign-in proceeds anonymously.
	token, err := resolveToken("https://platform.example.com")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSeverityLabel(t *testing.T) {
	assert.Equal(t, "HIGH", severityLabel(vault.SeverityCritical))
	assert.Equal(t, "MEDIUM", severityLabel(vault.SeverityWarning))
	assert.Equal(t, "LOW", severityLabel("informational"))
}

func TestStorageDecision_AnonymousSkipsChecks(t *testing.T) {
	vcfg, sessionOnly, err := storageDecision("")
	require.NoError(t, err)
	assert.False(t, sessionOnly)
	assert.Equal(t, config.Global.Vault, vcfg)
}

func TestRequestHeaders_FlagWinsOverConfig(t *testing.T) {
	previous := config.Global.Gateway.CustomHeaders
	config.Global.Gateway.CustomHeaders = map[string]string{"X-From-Config": "1"}
	defer func() {
		config.Global.Gateway.CustomHeaders = previous
		loginHeaders = nil
	}()

	loginHeaders = nil
	assert.Equal(t, map[string]string{"X-From-Config": "1"}, requestHeaders())

	loginHeaders = map[string]string{"X-From-Flag": "1"}
	assert.Equal(t, map[string]string{"X-From-Flag": "1"}, requestHeaders())
}
