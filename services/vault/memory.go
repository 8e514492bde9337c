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
	"errors"
	"sync"
)

// MemoryStore holds tokens for the process lifetime only.
//
// Used by tests and by session-only logins, where the user declined to
// write a token onto a weakly protected disk.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
	closed bool
}

var _ CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]string),
	}
}

// Get returns the token for the endpoint, or ErrTokenNotFound.
func (s *MemoryStore) Get(ctx context.Context, endpoint string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	token, ok := s.tokens[endpoint]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Store records the token for the endpoint.
func (s *MemoryStore) Store(ctx context.Context, endpoint, token string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if token == "" {
		return errors.New("token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.tokens[endpoint] = token
	return nil
}

// Delete removes the token for the endpoint. Absent tokens are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	delete(s.tokens, endpoint)
	return nil
}

// Close zeroes the map and marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	for k := range s.tokens {
		delete(s.tokens, k)
	}
	s.closed = true
	return nil
}
