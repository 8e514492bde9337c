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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
	"github.com/AleutianAI/AleutianConnect/services/daemon"
	"github.com/AleutianAI/AleutianConnect/services/settings"
)

func runEndpointsList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newDaemonClient(config.Global.Daemon.ListenAddr)

	var active, last string
	var history []string

	if client.Available() {
		resp, err := client.Endpoints(ctx)
		if err != nil {
			die(err)
		}
		active = resp.Active
		history = resp.Endpoints
	} else {
		store, closeStore := openSettingsStore()
		defer closeStore()
		var err error
		if history, err = store.History(ctx); err != nil {
			die(err)
		}
		if last, err = store.LastEndpoint(ctx); err != nil {
			die(err)
		}
	}

	if len(history) == 0 {
		ux.Muted("No endpoints have been used yet.")
		return
	}
	for _, endpoint := range history {
		switch endpoint {
		case active:
			ux.EndpointLine(true, endpoint, "signed in")
		case last:
			ux.EndpointLine(false, endpoint, "last used")
		default:
			ux.EndpointLine(false, endpoint, "")
		}
	}
}

func runEndpointsRemove(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	endpoint := daemon.NormalizeEndpoint(args[0])
	client := newDaemonClient(config.Global.Daemon.ListenAddr)

	if client.Available() {
		if err := client.RemoveEndpoint(ctx, endpoint); err != nil {
			die(err)
		}
	} else {
		store, closeStore := openSettingsStore()
		defer closeStore()
		if err := store.RemoveFromHistory(ctx, endpoint); err != nil {
			die(err)
		}
	}
	ux.Success(fmt.Sprintf("Forgot %s.", endpoint))
	ux.Muted("Removing an endpoint does not sign you out of it.")
}

// openSettingsStore opens just the settings store for commands that never
// touch credentials. Dies on failure.
func openSettingsStore() (settings.Store, func()) {
	logger := newQuietLogger()
	store, err := daemon.OpenSettings(config.Global.Settings, logger.Slog())
	if err != nil {
		logger.Close()
		die(err)
	}
	return store, func() {
		_ = store.Close()
		logger.Close()
	}
}
