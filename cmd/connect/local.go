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
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/logging"
	"github.com/AleutianAI/AleutianConnect/services/daemon"
	"github.com/AleutianAI/AleutianConnect/services/gateway"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/settings"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

// localSession is the fallback for when no daemon is running: it opens the
// same stores connectd would and drives a one-shot session manager.
type localSession struct {
	creds   vault.CredentialStore
	store   settings.Store
	manager *session.Manager
	logger  *logging.Logger
}

// openLocalSession builds a session manager on the local stores. Pass a
// nil creds to open the vault described by vcfg; login passes its own
// store when the user chose session-only storage.
//
// The stores are lock-protected. When a daemon is up the open fails, so
// callers probe for the daemon first.
func openLocalSession(ctx context.Context, vcfg config.VaultConfig, creds vault.CredentialStore) (*localSession, error) {
	logger := newQuietLogger()
	slogger := logger.Slog()

	var err error
	if creds == nil {
		creds, err = daemon.OpenVault(vcfg, slogger)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("opening the credential vault (is another connect process running?): %w", err)
		}
	}

	store, err := daemon.OpenSettings(config.Global.Settings, slogger)
	if err != nil {
		_ = creds.Close()
		logger.Close()
		return nil, fmt.Errorf("opening the settings store: %w", err)
	}

	client, err := gateway.NewClient(gateway.Config{
		Timeout:        config.Global.Gateway.Timeout.AsDuration(),
		RateLimitRPS:   config.Global.Gateway.RateLimitRPS,
		RateLimitBurst: config.Global.Gateway.RateLimitBurst,
		Logger:         slogger,
	})
	if err != nil {
		_ = store.Close()
		_ = creds.Close()
		logger.Close()
		return nil, err
	}

	manager, err := session.NewManager(session.Config{
		Credentials: creds,
		Settings:    store,
		Validator:   client,
		Logger:      slogger,
	})
	if err == nil {
		err = manager.Start(ctx)
	}
	if err != nil {
		_ = store.Close()
		_ = creds.Close()
		logger.Close()
		return nil, err
	}

	return &localSession{creds: creds, store: store, manager: manager, logger: logger}, nil
}

// requestHeaders returns the headers for one sign-in request: explicit
// --header flags win, otherwise the configured defaults apply.
func requestHeaders() map[string]string {
	if len(loginHeaders) > 0 {
		return loginHeaders
	}
	return config.Global.Gateway.CustomHeaders
}

func (s *localSession) Close() {
	_ = s.manager.Close()
	_ = s.store.Close()
	_ = s.creds.Close()
	vault.PurgeSecureMemory()
	s.logger.Close()
}

// newQuietLogger keeps store-open noise off the terminal. Warnings and
// errors still reach the log file when one is configured.
func newQuietLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.ParseLevel("warn"),
		Service: "connect",
		Quiet:   true,
	})
}
