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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
	"github.com/AleutianAI/AleutianConnect/services/api"
	"github.com/AleutianAI/AleutianConnect/services/session"
)

func runLogout(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newDaemonClient(config.Global.Daemon.ListenAddr)

	// An endpoint with a rejected token still counts: logging out is how
	// the stale credential gets deleted.
	if client.Available() {
		status, err := client.Status(ctx)
		if err != nil {
			die(err)
		}
		if status.Endpoint == "" {
			ux.Muted("Not signed in.")
			return
		}
		if !confirmLogout(status.Endpoint) {
			return
		}
		if _, err := client.SignOut(ctx); err != nil {
			die(err)
		}
		ux.ShowSignedOut(status.Endpoint)
		return
	}

	local, err := openLocalSession(ctx, config.Global.Vault, nil)
	if err != nil {
		die(err)
	}
	defer local.Close()

	endpoint := local.manager.CurrentStatus().Endpoint
	if endpoint == "" {
		ux.Muted("Not signed in.")
		return
	}
	if !confirmLogout(endpoint) {
		return
	}
	if err := local.manager.SignOut(ctx); err != nil {
		die(err)
	}
	ux.ShowSignedOut(endpoint)
}

// confirmLogout double-checks unless --yes was passed. Non-interactive
// runs proceed: a script that reached this command intends to sign out.
func confirmLogout(endpoint string) bool {
	if assumeYes {
		return true
	}
	confirmed, err := ux.Confirm(
		fmt.Sprintf("Sign out of %s?", endpoint),
		"The stored access token will be deleted.")
	if err != nil {
		if errors.Is(err, ux.ErrNonInteractive) {
			return true
		}
		die(err)
	}
	if !confirmed {
		ux.Muted("Cancelled.")
	}
	return confirmed
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newDaemonClient(config.Global.Daemon.ListenAddr)
	daemonUp := client.Available()

	if statusWatch {
		if !daemonUp {
			die(errors.New("watch needs a running daemon (start it with: connect daemon)"))
		}
		watchStatus(client)
		return
	}

	var status session.AuthStatus
	if daemonUp {
		var err error
		status, err = client.Status(ctx)
		if err != nil {
			die(err)
		}
	} else {
		status = directStatus(ctx)
	}

	if statusJSON {
		printJSON(status)
		return
	}
	if !daemonUp {
		ux.Muted("The daemon is not running; status was checked directly.")
	}
	ux.ShowStatus(statusView(status))
}

// directStatus restores and re-validates the persisted session without a
// daemon. One platform round trip.
func directStatus(ctx context.Context) session.AuthStatus {
	local, err := openLocalSession(ctx, config.Global.Vault, nil)
	if err != nil {
		die(err)
	}
	defer local.Close()

	spinner := ux.NewSpinner("Checking the session")
	spinner.Start()
	status, err := local.manager.Reload(ctx)
	if err != nil {
		spinner.StopWithError("Status check failed")
		die(err)
	}
	spinner.Stop()
	return status
}

// watchStatus renders the event stream: the first status as a full card,
// every later one as a transition line. Runs until interrupted.
func watchStatus(client *daemonClient) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	first := true
	err := client.Watch(ctx, func(event api.Event) {
		switch event.Type {
		case api.EventTypeConnected:
			if !statusJSON {
				ux.Muted("Watching session changes (Ctrl+C to stop).")
			}
		case api.EventTypeStatus:
			if event.Status == nil {
				return
			}
			if statusJSON {
				printJSON(*event.Status)
				return
			}
			if first {
				first = false
				ux.ShowStatus(statusView(*event.Status))
				return
			}
			ux.ShowTransition(statusView(*event.Status))
		}
	})
	if err != nil {
		die(err)
	}
}

func printJSON(status session.AuthStatus) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		die(err)
	}
	fmt.Println(string(data))
}
