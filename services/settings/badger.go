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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianConnect/services/storage/badger"
	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config configures the persistent settings store.
type Config struct {
	// Path is the settings database directory.
	// Required unless InMemory is true.
	Path string

	// InMemory uses a non-persistent backing database. Tests only.
	InMemory bool

	// Logger receives store events. If nil, uses slog.Default().
	Logger *slog.Logger
}

// BadgerStore persists settings in a BadgerDB separate from the vault, so
// secret and non-secret data never share a database directory.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens the persistent settings store.
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbCfg := badger.DefaultConfig()
	dbCfg.Path = cfg.Path
	dbCfg.InMemory = cfg.InMemory
	dbCfg.Logger = logger

	db, err := badger.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With(slog.String("component", "settings")),
	}, nil
}

// LastEndpoint returns the active endpoint, or "" when signed out.
func (s *BadgerStore) LastEndpoint(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	var endpoint string
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(keyLastEndpoint))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil // Signed out; not an error
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		endpoint = string(val)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read last endpoint: %w", err)
	}
	return endpoint, nil
}

// SetLastEndpoint records the active endpoint and updates the history in
// the same transaction.
func (s *BadgerStore) SetLastEndpoint(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set([]byte(keyLastEndpoint), []byte(endpoint)); err != nil {
			return err
		}

		history, err := readHistory(txn)
		if err != nil {
			return err
		}
		return writeHistory(txn, pushHistory(history, endpoint))
	})
	if err != nil {
		return fmt.Errorf("set last endpoint: %w", err)
	}
	return nil
}

// ClearLastEndpoint forgets the active endpoint, keeping the history.
func (s *BadgerStore) ClearLastEndpoint(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete([]byte(keyLastEndpoint))
	})
	if err != nil {
		return fmt.Errorf("clear last endpoint: %w", err)
	}
	return nil
}

// History returns previously used endpoints, newest first.
func (s *BadgerStore) History(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var history []string
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		var err error
		history, err = readHistory(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read endpoint history: %w", err)
	}
	return history, nil
}

// RemoveFromHistory drops one endpoint from the history.
func (s *BadgerStore) RemoveFromHistory(ctx context.Context, endpoint string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		history, err := readHistory(txn)
		if err != nil {
			return err
		}
		return writeHistory(txn, dropFromHistory(history, endpoint))
	})
	if err != nil {
		return fmt.Errorf("remove endpoint from history: %w", err)
	}
	return nil
}

// HasAuthenticatedBefore reports whether any sign-in ever succeeded.
func (s *BadgerStore) HasAuthenticatedBefore(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}

	var onboarded bool
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		_, err := txn.Get([]byte(keyOnboarded))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		onboarded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read onboarding flag: %w", err)
	}
	return onboarded, nil
}

// MarkAuthenticated records that a sign-in succeeded. Idempotent.
func (s *BadgerStore) MarkAuthenticated(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set([]byte(keyOnboarded), []byte("1"))
	})
	if err != nil {
		return fmt.Errorf("mark authenticated: %w", err)
	}
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

func readHistory(txn *dgbadger.Txn) ([]string, error) {
	item, err := txn.Get([]byte(keyHistory))
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}

	var history []string
	if err := json.Unmarshal(val, &history); err != nil {
		return nil, fmt.Errorf("decode endpoint history: %w", err)
	}
	return history, nil
}

func writeHistory(txn *dgbadger.Txn, history []string) error {
	val, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return txn.Set([]byte(keyHistory), val)
}
