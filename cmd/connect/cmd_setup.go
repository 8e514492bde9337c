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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
	"github.com/AleutianAI/AleutianConnect/services/session"
)

func runSetup(cmd *cobra.Command, args []string) {
	if !ux.IsInteractive() {
		die(errors.New("setup is an interactive wizard; edit the config file directly instead"))
	}

	path, err := config.DefaultPath()
	if err != nil {
		die(err)
	}

	cfg := config.DefaultConfig()
	if _, statErr := os.Stat(path); statErr == nil {
		existing, loadErr := config.LoadFrom(path)
		if loadErr != nil {
			ux.Muted(fmt.Sprintf("The existing config could not be read (%v); starting from defaults.", loadErr))
		} else {
			cfg = *existing
			ux.Muted(fmt.Sprintf("Editing %s.", path))
		}
	}

	if err := promptSetup(&cfg); err != nil {
		die(err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		die(err)
	}
	if err := writeConfig(path, cfg); err != nil {
		die(err)
	}

	ux.Success(fmt.Sprintf("Wrote %s.", path))
	ux.Tip("Run 'connect login' to sign in.")
}

// promptSetup walks the wizard questions, mutating cfg in place. Empty
// answers keep the current value.
func promptSetup(cfg *config.ConnectConfig) error {
	endpoint, err := ux.PromptInput("Default platform endpoint",
		"Used when 'connect login' runs without an endpoint argument.", cfg.Endpoint)
	if err != nil {
		return err
	}
	if endpoint != "" {
		normalized, err := session.NormalizeEndpoint(endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		cfg.Endpoint = normalized
	}

	addr, err := ux.PromptInput("Daemon listen address",
		"The localhost address editors reach the daemon on. Keep it loopback.", cfg.Daemon.ListenAddr)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Daemon.ListenAddr = addr
	}

	metrics, err := ux.Confirm("Expose Prometheus metrics?",
		"Adds GET /metrics to the daemon address.")
	if err != nil {
		return err
	}
	cfg.Daemon.EnableMetrics = metrics

	embeddings, err := ux.Confirm("Enable the workspace embeddings check?",
		"Requires a reachable Weaviate instance.")
	if err != nil {
		return err
	}
	cfg.Embeddings.Enabled = embeddings
	if embeddings {
		host, err := ux.PromptInput("Weaviate address", "host:port of the Weaviate instance.",
			defaultString(cfg.Embeddings.Host, "localhost:8080"))
		if err != nil {
			return err
		}
		if host != "" {
			cfg.Embeddings.Host = host
		}
	}

	level, err := ux.SelectOption("Log level", "", logLevelOptions(cfg.Logging.Level))
	if err != nil {
		return err
	}
	cfg.Logging.Level = level
	return nil
}

func logLevelOptions(current string) []ux.PromptOption {
	levels := []struct{ value, description string }{
		{"debug", "everything, including request traces"},
		{"info", "normal operation"},
		{"warn", "problems only"},
		{"error", "failures only"},
	}
	options := make([]ux.PromptOption, 0, len(levels))
	for _, level := range levels {
		options = append(options, ux.PromptOption{
			Label:       level.value,
			Description: level.description,
			Value:       level.value,
			Recommended: level.value == current,
		})
	}
	return options
}

// writeConfig persists cfg with the same permissions the loader uses when
// it creates the file on first run.
func writeConfig(path string, cfg config.ConnectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render the config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write the config file: %w", err)
	}
	return nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
