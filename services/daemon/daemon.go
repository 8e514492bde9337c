// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package daemon wires the credential vault, settings store, platform
// gateway, and session manager into the localhost API server. Both the
// connectd binary and `connect daemon` run this loop.
package daemon

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/services/api"
	"github.com/AleutianAI/AleutianConnect/services/api/observability"
	"github.com/AleutianAI/AleutianConnect/services/embeddings"
	"github.com/AleutianAI/AleutianConnect/services/gateway"
	"github.com/AleutianAI/AleutianConnect/services/modelsync"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/settings"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

// StateDir returns the directory holding the vault, settings, and the
// signed-in marker: ~/.aleutian/connect.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aleutian", "connect"), nil
}

// VaultPath resolves the credential vault directory for cfg.
func VaultPath(cfg config.VaultConfig) (string, error) {
	if cfg.Path != "" {
		return cfg.Path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vault"), nil
}

// SettingsPath resolves the settings database directory for cfg.
func SettingsPath(cfg config.SettingsConfig) (string, error) {
	if cfg.Path != "" {
		return cfg.Path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings"), nil
}

// OpenVault opens the credential store at the configured path. The caller
// owns the returned store and must Close it.
func OpenVault(cfg config.VaultConfig, logger *slog.Logger) (vault.CredentialStore, error) {
	path, err := VaultPath(cfg)
	if err != nil {
		return nil, err
	}
	return vault.NewStore(vault.Config{
		Path:                path,
		AllowInsecureMemory: cfg.AllowInsecureMemory,
		NormalizeEndpoint:   NormalizeEndpoint,
		Logger:              logger,
	})
}

// OpenSettings opens the settings store at the configured path. The caller
// owns the returned store and must Close it.
func OpenSettings(cfg config.SettingsConfig, logger *slog.Logger) (settings.Store, error) {
	path, err := SettingsPath(cfg)
	if err != nil {
		return nil, err
	}
	return settings.NewBadgerStore(settings.Config{Path: path, Logger: logger})
}

// NormalizeEndpoint canonicalizes an endpoint the way the session manager
// does; a malformed value falls back to a trimmed string so environment
// overrides still resolve.
func NormalizeEndpoint(raw string) string {
	normalized, err := session.NormalizeEndpoint(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return normalized
}

// Run builds the full daemon and serves the localhost API until ctx is
// cancelled. It restores the persisted session at boot, keeps the model
// catalog and the embeddings store in step with status changes, and
// re-validates when a config change touches authentication.
func Run(ctx context.Context, cfg config.ConnectConfig, logger *slog.Logger) error {
	dir, err := StateDir()
	if err != nil {
		return err
	}

	creds, err := OpenVault(cfg.Vault, logger)
	if err != nil {
		return err
	}
	defer creds.Close()
	defer vault.PurgeSecureMemory()

	store, err := OpenSettings(cfg.Settings, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := gateway.NewClient(gateway.Config{
		Timeout:        cfg.Gateway.Timeout.AsDuration(),
		RateLimitRPS:   cfg.Gateway.RateLimitRPS,
		RateLimitBurst: cfg.Gateway.RateLimitBurst,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	manager, err := session.NewManager(session.Config{
		Credentials: creds,
		Settings:    store,
		Validator:   &headerValidator{inner: client, headers: cfg.Gateway.CustomHeaders},
		Flags:       &flagFile{path: filepath.Join(dir, "signed-in"), logger: logger},
		OnFirstSignIn: func(status session.AuthStatus) {
			logger.Info("welcome to Aleutian",
				slog.String("endpoint", status.Endpoint))
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	syncer, err := modelsync.NewSyncer(modelsync.Config{Credentials: creds, Logger: logger})
	if err != nil {
		return err
	}
	manager.Subscribe(syncer.OnStatus)

	if cfg.Embeddings.Enabled {
		controller, err := embeddings.NewController(embeddings.Config{
			Host:   cfg.Embeddings.Host,
			Scheme: cfg.Embeddings.Scheme,
			APIKey: cfg.Embeddings.APIKey,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		manager.Subscribe(controller.OnStatus)
		defer controller.Teardown()
	}

	var metrics *observability.Metrics
	if cfg.Daemon.EnableMetrics {
		metrics = observability.InitMetrics()
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}
	// Restore the persisted session. Failures leave the placeholder status
	// standing; the CLI can retry with an explicit sign-in.
	if _, err := manager.Reload(ctx); err != nil {
		logger.Warn("restoring the persisted session failed", slog.String("error", err.Error()))
	}

	if configPath, err := config.DefaultPath(); err == nil {
		watcher, err := config.NewWatcher(configPath, reloadHandler(ctx, manager, cfg, logger), logger, nil)
		if err != nil {
			logger.Warn("config watching disabled", slog.String("error", err.Error()))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watching disabled", slog.String("error", err.Error()))
		} else {
			defer watcher.Stop()
		}
	}

	if interval := cfg.Models.SyncInterval.AsDuration(); interval > 0 {
		go refreshModels(ctx, manager, syncer, interval, logger)
	}

	server, err := api.NewServer(api.Config{
		Addr:     cfg.Daemon.ListenAddr,
		Manager:  manager,
		Models:   syncer,
		Settings: store,
		Metrics:  metrics,
		Debug:    strings.EqualFold(cfg.Logging.Level, "debug"),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// reloadHandler re-authenticates when a config change touches what the
// session was built from: the suggested endpoint or the validation headers.
func reloadHandler(ctx context.Context, manager *session.Manager, previous config.ConnectConfig, logger *slog.Logger) config.ReloadHandler {
	last := previous
	return func(cfg *config.ConnectConfig) {
		authChanged := cfg.Endpoint != last.Endpoint ||
			!maps.Equal(cfg.Gateway.CustomHeaders, last.Gateway.CustomHeaders)
		last = *cfg
		if !authChanged {
			return
		}
		logger.Info("config change touches authentication, reloading the session")
		if _, err := manager.Reload(ctx); err != nil {
			logger.Warn("session reload failed", slog.String("error", err.Error()))
		}
	}
}

// refreshModels re-syncs the model catalog while a session is signed in.
func refreshModels(ctx context.Context, manager *session.Manager, syncer *modelsync.Syncer, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := manager.CurrentStatus()
			if !status.SignedIn {
				continue
			}
			if err := syncer.Sync(ctx, status); err != nil {
				logger.Warn("periodic model sync failed", slog.String("error", err.Error()))
			}
		}
	}
}

// headerValidator injects the configured custom headers into validation
// requests that do not carry their own.
type headerValidator struct {
	inner   session.Validator
	headers map[string]string
}

func (v *headerValidator) Validate(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error) {
	if len(headers) == 0 {
		headers = v.headers
	}
	return v.inner.Validate(ctx, endpoint, token, headers)
}

// flagFile mirrors the signed-in state into a marker file so host
// integrations (shell prompts, editor extensions) can stat it without
// talking to the API.
type flagFile struct {
	path   string
	logger *slog.Logger
}

func (f *flagFile) SetSignedIn(signedIn bool) {
	if signedIn {
		if err := os.WriteFile(f.path, []byte("1\n"), 0o600); err != nil {
			f.logger.Warn("updating the signed-in marker failed", slog.String("error", err.Error()))
		}
		return
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("removing the signed-in marker failed", slog.String("error", err.Error()))
	}
}
