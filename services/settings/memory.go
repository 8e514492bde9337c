// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package settings

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore holds settings for the process lifetime only. Tests use it in
// place of the persistent store.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	lastEndpoint string
	history      []string
	onboarded    bool
	closed       bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LastEndpoint(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	return s.lastEndpoint, nil
}

func (s *MemoryStore) SetLastEndpoint(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.lastEndpoint = endpoint
	s.history = pushHistory(s.history, endpoint)
	return nil
}

func (s *MemoryStore) ClearLastEndpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.lastEndpoint = ""
	return nil
}

func (s *MemoryStore) History(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make([]string, len(s.history))
	copy(out, s.history)
	return out, nil
}

func (s *MemoryStore) RemoveFromHistory(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.history = dropFromHistory(s.history, endpoint)
	return nil
}

func (s *MemoryStore) HasAuthenticatedBefore(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	return s.onboarded, nil
}

func (s *MemoryStore) MarkAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.onboarded = true
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.closed = true
	return nil
}
