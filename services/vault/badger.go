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
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/AleutianAI/AleutianConnect/pkg/logging"
	"github.com/AleutianAI/AleutianConnect/services/storage/badger"
	dgbadger "github.com/dgraph-io/badger/v4"
)

// BadgerStore persists tokens in a BadgerDB under the vault directory.
//
// Keys are "token/<endpoint>". The directory is created with mode 0700;
// the database itself is plaintext on disk, which is why NewStore runs
// the security checks and the CLI confirms before the first write on a
// weakly protected system.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ CredentialStore = (*BadgerStore)(nil)

// NewBadgerStore opens the persistent token store.
//
// Description:
//
//	Pure storage constructor: the secure-memory gate lives in NewStore so
//	tests can build a BadgerStore directly. Uses the shared storage/badger
//	helper with a vault-specific 0700 directory mode.
//
// Inputs:
//
//	cfg - Vault configuration. Path required unless InMemory is true.
//
// Outputs:
//
//	*BadgerStore - The opened store. Caller must Close().
//	error - Non-nil if the database cannot be opened.
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbCfg := badger.DefaultConfig()
	dbCfg.Path = cfg.Path
	dbCfg.DirMode = 0700
	dbCfg.InMemory = cfg.InMemory
	dbCfg.Logger = logger

	db, err := badger.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With(slog.String("component", "vault")),
	}, nil
}

func tokenKey(endpoint string) []byte {
	return []byte(tokenKeyPrefix + endpoint)
}

// Get returns the token stored for the endpoint.
func (s *BadgerStore) Get(ctx context.Context, endpoint string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	var token string
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(tokenKey(endpoint))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return ErrTokenNotFound
		}
		if err != nil {
			return err
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		token = string(val)
		memguard.WipeBytes(val)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("read token for %s: %w", endpoint, err)
	}
	return token, nil
}

// Store persists the token for the endpoint, replacing any previous one.
func (s *BadgerStore) Store(ctx context.Context, endpoint, token string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if token == "" {
		return errors.New("token is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	// Badger may reference the value slice until the transaction commits,
	// so it is wiped after WithTxn returns, not inside it.
	val := []byte(token)
	defer memguard.WipeBytes(val)

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(tokenKey(endpoint), val)
	})
	if err != nil {
		return fmt.Errorf("store token for %s: %w", endpoint, err)
	}

	s.logger.Debug("stored credential",
		slog.String("endpoint", endpoint),
		slog.String("token", logging.Redact(token)),
	)
	return nil
}

// Delete removes the token for the endpoint. Absent tokens are a no-op.
func (s *BadgerStore) Delete(ctx context.Context, endpoint string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete(tokenKey(endpoint))
	})
	if err != nil {
		return fmt.Errorf("delete token for %s: %w", endpoint, err)
	}

	s.logger.Debug("deleted credential", slog.String("endpoint", endpoint))
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.closed = true
	return s.db.Close()
}
