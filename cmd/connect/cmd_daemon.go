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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/logging"
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
	"github.com/AleutianAI/AleutianConnect/services/daemon"
)

// runDaemon serves the session API in the foreground. Unlike connectd it
// honors the console logging format from the config, so a developer
// watching the terminal gets readable text output.
func runDaemon(cmd *cobra.Command, args []string) {
	cfg := config.Global

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "connect",
		JSON:    cfg.Logging.JSON,
	})
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ux.Muted(fmt.Sprintf("Serving the session API on %s (Ctrl+C to stop).", cfg.Daemon.ListenAddr))
	err := daemon.Run(ctx, cfg, logger.Slog())
	stop()
	logger.Close()
	if err != nil {
		die(err)
	}
}
