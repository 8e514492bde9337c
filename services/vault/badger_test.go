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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	err := store.Store(ctx, "https://cloud.aleutian.ai", "alp_0123456789abcdef")
	require.NoError(t, err)

	token, err := store.Get(ctx, "https://cloud.aleutian.ai")
	require.NoError(t, err)
	assert.Equal(t, "alp_0123456789abcdef", token)
}

func TestBadgerStore_GetMissing(t *testing.T) {
	store := newTestBadgerStore(t)

	_, err := store.Get(context.Background(), "https://src.example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestBadgerStore_Overwrite(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "https://src.example.com", "alp_old"))
	require.NoError(t, store.Store(ctx, "https://src.example.com", "alp_new"))

	token, err := store.Get(ctx, "https://src.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alp_new", token)
}

func TestBadgerStore_EndpointsAreIndependent(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "https://cloud.aleutian.ai", "alp_cloud"))
	require.NoError(t, store.Store(ctx, "https://src.example.com", "alp_selfhosted"))

	require.NoError(t, store.Delete(ctx, "https://src.example.com"))

	token, err := store.Get(ctx, "https://cloud.aleutian.ai")
	require.NoError(t, err)
	assert.Equal(t, "alp_cloud", token)

	_, err = store.Get(ctx, "https://src.example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestBadgerStore_DeleteMissingIsNoOp(t *testing.T) {
	store := newTestBadgerStore(t)

	err := store.Delete(context.Background(), "https://never-stored.example.com")
	assert.NoError(t, err)
}

func TestBadgerStore_RejectsEmptyInputs(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	assert.Error(t, store.Store(ctx, "", "alp_token"))
	assert.Error(t, store.Store(ctx, "https://src.example.com", ""))
}

func TestBadgerStore_Closed(t *testing.T) {
	store, err := NewBadgerStore(Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err = store.Get(ctx, "https://cloud.aleutian.ai")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Store(ctx, "https://cloud.aleutian.ai", "alp_x"), ErrStoreClosed)
	assert.ErrorIs(t, store.Delete(ctx, "https://cloud.aleutian.ai"), ErrStoreClosed)
	assert.ErrorIs(t, store.Close(), ErrStoreClosed)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, store.Store(ctx, "https://src.example.com", "alp_persisted"))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	token, err := reopened.Get(ctx, "https://src.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alp_persisted", token)
}
