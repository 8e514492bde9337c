// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package settings stores the non-secret session state: the last-used
// endpoint, the endpoint history, and the onboarding flag. Secrets live in
// the vault, never here.
package settings

import (
	"context"
	"errors"
)

const (
	// HistoryLimit caps the endpoint history, newest first.
	HistoryLimit = 10

	keyLastEndpoint = "settings/last_endpoint"
	keyHistory      = "settings/endpoint_history"
	keyOnboarded    = "settings/onboarded"
)

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("settings store is closed")

// Store is the contract for non-secret session state.
//
// A fresh install has no last endpoint; LastEndpoint returns "" without an
// error in that case, since absence is the normal signed-out state.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// LastEndpoint returns the endpoint of the active session, or "" when
	// signed out.
	LastEndpoint(ctx context.Context) (string, error)

	// SetLastEndpoint records the active endpoint and pushes it onto the
	// history (deduped, newest first, capped at HistoryLimit).
	SetLastEndpoint(ctx context.Context, endpoint string) error

	// ClearLastEndpoint forgets the active endpoint. The history is kept
	// so the next login can offer previously used servers.
	ClearLastEndpoint(ctx context.Context) error

	// History returns previously used endpoints, newest first.
	History(ctx context.Context) ([]string, error)

	// RemoveFromHistory drops one endpoint from the history. Removing an
	// absent endpoint is not an error.
	RemoveFromHistory(ctx context.Context, endpoint string) error

	// HasAuthenticatedBefore reports whether any sign-in ever succeeded on
	// this install.
	HasAuthenticatedBefore(ctx context.Context) (bool, error)

	// MarkAuthenticated records that a sign-in succeeded. Idempotent.
	MarkAuthenticated(ctx context.Context) error

	// Close releases the store. Subsequent calls return ErrStoreClosed.
	Close() error
}

// pushHistory returns history with endpoint prepended, deduped, and capped.
func pushHistory(history []string, endpoint string) []string {
	out := make([]string, 0, len(history)+1)
	out = append(out, endpoint)
	for _, e := range history {
		if e == endpoint {
			continue
		}
		out = append(out, e)
	}
	if len(out) > HistoryLimit {
		out = out[:HistoryLimit]
	}
	return out
}

// dropFromHistory returns history without the endpoint, preserving order.
func dropFromHistory(history []string, endpoint string) []string {
	out := make([]string, 0, len(history))
	for _, e := range history {
		if e == endpoint {
			continue
		}
		out = append(out, e)
	}
	return out
}
