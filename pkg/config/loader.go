// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads, validates, and watches the AleutianConnect
// configuration file (~/.aleutian/connect.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global ConnectConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func loadInternal() error {
	configPath, err := DefaultPath()
	if err != nil {
		return err
	}
	// create it if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf(" First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}
	cfg, err := LoadFrom(configPath)
	if err != nil {
		return err
	}
	Global = *cfg
	return nil
}

// DefaultPath returns ~/.aleutian/connect.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "connect.yaml"), nil
}

// LoadFrom reads, overlays environment variables, defaults, and validates
// the config at the given path.
//
// # Description
//
//	Non-singleton loader used by connectd (--config flag), the config
//	watcher on reload, and tests. Load() delegates here for the default
//	path.
//
// # Inputs
//   - path: Config file path. Must exist.
//
// # Outputs
//   - *ConnectConfig: The validated config. Never nil on success.
//   - error: Non-nil on read, parse, or validation failure.
func LoadFrom(path string) (*ConnectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	var cfg ConnectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}
	applyEnvOverrides(&cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides overlays ALEUTIAN_* environment variables on the file
// config. Environment wins over the file; flags win over both.
func applyEnvOverrides(cfg *ConnectConfig) {
	if v := os.Getenv("ALEUTIAN_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("ALEUTIAN_CONNECT_ADDR"); v != "" {
		cfg.Daemon.ListenAddr = v
	}
	if v := os.Getenv("ALEUTIAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ALEUTIAN_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("ALEUTIAN_VAULT_PATH"); v != "" {
		cfg.Vault.Path = v
	}
	if v := os.Getenv("ALEUTIAN_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}
	if v := os.Getenv("ALEUTIAN_INSECURE_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Vault.AllowInsecureMemory = b
		}
	}
	if v := os.Getenv("ALEUTIAN_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.OTLPEndpoint = v
		cfg.Tracing.Enabled = true
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
