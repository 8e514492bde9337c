// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vault

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvStore_NoToken(t *testing.T) {
	t.Setenv(EnvAccessToken, "")
	t.Setenv(EnvEndpoint, "https://cloud.aleutian.ai")

	assert.Nil(t, NewEnvStore(nil, nil))
}

func TestNewEnvStore_TokenWithoutEndpoint(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_orphaned")
	t.Setenv(EnvEndpoint, "")

	assert.Nil(t, NewEnvStore(nil, nil))
}

func TestEnvStore_Get(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_from_env")
	t.Setenv(EnvEndpoint, "https://cloud.aleutian.ai/")

	store := NewEnvStore(nil, nil)
	require.NotNil(t, store)

	// Default normalization trims the trailing slash.
	assert.Equal(t, "https://cloud.aleutian.ai", store.Endpoint())
	assert.True(t, store.Covers("https://cloud.aleutian.ai"))
	assert.False(t, store.Covers("https://src.example.com"))

	token, err := store.Get(context.Background(), "https://cloud.aleutian.ai")
	require.NoError(t, err)
	assert.Equal(t, "alp_from_env", token)

	// The sealed token survives repeated opens.
	token, err = store.Get(context.Background(), "https://cloud.aleutian.ai")
	require.NoError(t, err)
	assert.Equal(t, "alp_from_env", token)
}

func TestEnvStore_GetOtherEndpoint(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_from_env")
	t.Setenv(EnvEndpoint, "https://cloud.aleutian.ai")

	store := NewEnvStore(nil, nil)
	require.NotNil(t, store)

	_, err := store.Get(context.Background(), "https://src.example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestEnvStore_CustomNormalize(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_from_env")
	t.Setenv(EnvEndpoint, "SRC.Example.COM")

	normalize := func(s string) string {
		return "https://" + strings.ToLower(s)
	}

	store := NewEnvStore(normalize, nil)
	require.NotNil(t, store)
	assert.Equal(t, "https://src.example.com", store.Endpoint())
}

func TestEnvStore_ReadOnly(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_from_env")
	t.Setenv(EnvEndpoint, "https://cloud.aleutian.ai")

	store := NewEnvStore(nil, nil)
	require.NotNil(t, store)

	ctx := context.Background()
	assert.ErrorIs(t, store.Store(ctx, "https://cloud.aleutian.ai", "alp_other"), ErrReadOnly)
	assert.ErrorIs(t, store.Delete(ctx, "https://cloud.aleutian.ai"), ErrReadOnly)
}

func TestLayeredStore_EnvWinsForItsEndpoint(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_from_env")
	t.Setenv(EnvEndpoint, "https://cloud.aleutian.ai")

	overlay := NewEnvStore(nil, nil)
	require.NotNil(t, overlay)

	backing := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Store(ctx, "https://cloud.aleutian.ai", "alp_shadowed"))
	require.NoError(t, backing.Store(ctx, "https://src.example.com", "alp_selfhosted"))

	layered := &layeredStore{overlay: overlay, backing: backing}

	token, err := layered.Get(ctx, "https://cloud.aleutian.ai")
	require.NoError(t, err)
	assert.Equal(t, "alp_from_env", token, "environment token must shadow the persisted one")

	token, err = layered.Get(ctx, "https://src.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alp_selfhosted", token, "other endpoints fall through to the backing store")
}

func TestLayeredStore_WritesAgainstEnvEndpointFail(t *testing.T) {
	t.Setenv(EnvAccessToken, "alp_from_env")
	t.Setenv(EnvEndpoint, "https://cloud.aleutian.ai")

	overlay := NewEnvStore(nil, nil)
	require.NotNil(t, overlay)

	backing := NewMemoryStore()
	layered := &layeredStore{overlay: overlay, backing: backing}
	ctx := context.Background()

	assert.ErrorIs(t, layered.Store(ctx, "https://cloud.aleutian.ai", "alp_new"), ErrReadOnly)
	assert.ErrorIs(t, layered.Delete(ctx, "https://cloud.aleutian.ai"), ErrReadOnly)

	// Other endpoints write through.
	require.NoError(t, layered.Store(ctx, "https://src.example.com", "alp_written"))
	token, err := backing.Get(ctx, "https://src.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alp_written", token)
}
