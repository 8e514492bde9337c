// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modelsync keeps a local catalog of the models a signed-in
// platform offers. The platform exposes an OpenAI-compatible surface
// under /.api/llm/v1; the syncer lists it on every sign-in and hands out
// a ready-to-use client for chat components.
package modelsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

// llmAPIPath is the platform's OpenAI-compatible surface, relative to the
// session endpoint.
const llmAPIPath = "/.api/llm/v1"

// DefaultTimeout bounds one catalog listing.
const DefaultTimeout = 15 * time.Second

// ErrNotSynced is returned by Client when no session is signed in or the
// first sync has not completed yet.
var ErrNotSynced = errors.New("model catalog not synced")

// Model is one catalog entry.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"ownedBy,omitempty"`
	Created int64  `json:"created,omitempty"`

	// Default marks the site's configured chat model.
	Default bool `json:"default,omitempty"`
}

// Config wires a Syncer.
type Config struct {
	// Credentials resolves the token for the signed-in endpoint. The
	// session manager persists the token before it notifies, so the
	// lookup here always sees the winning attempt's credential.
	Credentials vault.CredentialStore

	// Timeout bounds one catalog listing. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Syncer caches the model catalog of the signed-in platform.
//
// Thread Safety: Safe for concurrent use.
type Syncer struct {
	creds   vault.CredentialStore
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	gen      uint64
	endpoint string
	client   *openai.Client
	catalog  []Model
	syncedAt time.Time
}

// NewSyncer wires a Syncer. Subscribe OnStatus to the session manager to
// keep it current.
func NewSyncer(cfg Config) (*Syncer, error) {
	if cfg.Credentials == nil {
		return nil, errors.New("modelsync: credential store is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		creds:   cfg.Credentials,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "modelsync")),
	}, nil
}

// OnStatus is the session subscription entry point. It returns
// immediately; the listing runs on its own goroutine because session
// callbacks execute inside the manager's commit section.
func (s *Syncer) OnStatus(status session.AuthStatus) {
	if !status.SignedIn {
		s.Clear()
		return
	}
	go func() {
		if err := s.Sync(context.Background(), status); err != nil {
			s.logger.Warn("model sync failed",
				slog.String("error", err.Error()),
				slog.String("endpoint", status.Endpoint))
		}
	}()
}

// Sync lists the platform's models for a signed-in status and replaces
// the cached catalog. A sync that loses to a newer status change is
// dropped silently.
func (s *Syncer) Sync(ctx context.Context, status session.AuthStatus) error {
	if !status.SignedIn {
		s.Clear()
		return nil
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	token, err := s.creds.Get(ctx, status.Endpoint)
	if err != nil {
		return fmt.Errorf("read token for %s: %w", status.Endpoint, err)
	}
	client := newPlatformClient(status.Endpoint, token, s.timeout)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	defaultChat := ""
	if status.Site != nil && status.Site.ModelDefaults != nil {
		defaultChat = status.Site.ModelDefaults.ChatModel
	}
	catalog := make([]Model, 0, len(list.Models))
	for _, m := range list.Models {
		catalog = append(catalog, Model{
			ID:      m.ID,
			OwnedBy: m.OwnedBy,
			Created: m.CreatedAt,
			Default: defaultChat != "" && m.ID == defaultChat,
		})
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].ID < catalog[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// A newer status change owns the cache now.
		return nil
	}
	s.endpoint = status.Endpoint
	s.client = client
	s.catalog = catalog
	s.syncedAt = time.Now()
	s.logger.Info("model catalog synced",
		slog.Int("models", len(catalog)),
		slog.String("endpoint", status.Endpoint))
	return nil
}

// Clear drops the cached catalog and client. Called on sign-out.
func (s *Syncer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.endpoint != "" {
		s.logger.Info("model catalog cleared", slog.String("endpoint", s.endpoint))
	}
	s.endpoint = ""
	s.client = nil
	s.catalog = nil
	s.syncedAt = time.Time{}
}

// Catalog returns a copy of the cached catalog, nil when signed out.
func (s *Syncer) Catalog() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return nil
	}
	return append([]Model(nil), s.catalog...)
}

// Client returns the ready client for the signed-in platform.
func (s *Syncer) Client() (*openai.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotSynced
	}
	return s.client, nil
}

// Endpoint returns the endpoint the cached catalog belongs to, "" when
// signed out.
func (s *Syncer) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// SyncedAt returns the time of the last successful sync.
func (s *Syncer) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncedAt
}

// newPlatformClient builds an OpenAI-compatible client rooted at the
// platform's LLM surface.
func newPlatformClient(endpoint, token string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = endpoint + llmAPIPath
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}
