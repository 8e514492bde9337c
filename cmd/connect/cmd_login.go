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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
	"github.com/AleutianAI/AleutianConnect/services/daemon"
	"github.com/AleutianAI/AleutianConnect/services/session"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

// errLoginCancelled marks a user-initiated abort, rendered without the
// red error treatment.
var errLoginCancelled = errors.New("sign-in cancelled")

func runLogin(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	client := newDaemonClient(config.Global.Daemon.ListenAddr)
	daemonUp := client.Available()

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	endpoint, err := resolveLoginEndpoint(ctx, arg, client, daemonUp)
	if err != nil {
		die(err)
	}

	token, err := resolveToken(endpoint)
	if err != nil {
		die(err)
	}
	if token == "" {
		ux.Muted("No token provided; signing in anonymously.")
	}

	var status session.AuthStatus
	if daemonUp {
		status = loginViaDaemon(ctx, client, endpoint, token)
	} else {
		status = loginDirect(ctx, endpoint, token)
	}

	ux.ShowSignInResult(statusView(status))
	if !status.SignedIn && token != "" {
		os.Exit(1)
	}
	if !daemonUp && status.SignedIn {
		ux.Tip("Start the daemon (connect daemon) so editors can share this session.")
	}
}

// pickEndpoint returns the first explicit endpoint among the positional
// argument, the --endpoint flag, and the configured default.
func pickEndpoint(arg, flag, configured string) string {
	for _, candidate := range []string{arg, flag, configured} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// resolveLoginEndpoint picks the endpoint to sign in to. Explicit input
// wins; otherwise interactive runs get a picker over the endpoint history,
// and everything else falls back to the configured or cloud endpoint.
func resolveLoginEndpoint(ctx context.Context, arg string, client *daemonClient, daemonUp bool) (string, error) {
	if picked := pickEndpoint(arg, loginEndpoint, ""); picked != "" {
		return picked, nil
	}
	fallback := config.Global.Endpoint
	if fallback == "" {
		fallback = session.CloudEndpoint
	}
	if !ux.IsInteractive() {
		return fallback, nil
	}

	var history []string
	if daemonUp {
		if resp, err := client.Endpoints(ctx); err == nil {
			history = resp.Endpoints
		}
	}
	if len(history) > 0 {
		options := make([]ux.PromptOption, 0, len(history)+1)
		for i, ep := range history {
			options = append(options, ux.PromptOption{Label: ep, Value: ep, Recommended: i == 0})
		}
		options = append(options, ux.PromptOption{Label: "Somewhere else", Description: "enter a URL", Value: ""})
		choice, err := ux.SelectOption("Where do you want to sign in?", "", options)
		if err != nil {
			return "", err
		}
		if choice != "" {
			return choice, nil
		}
	}

	entered, err := ux.PromptInput("Platform endpoint", "", fallback)
	if err != nil {
		return "", err
	}
	if entered == "" {
		return fallback, nil
	}
	return entered, nil
}

// resolveToken reads the access token from stdin, the environment, or an
// interactive prompt, in that order. Empty means anonymous.
func resolveToken(endpoint string) (string, error) {
	if tokenStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading the token from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if token := strings.TrimSpace(os.Getenv(vault.EnvAccessToken)); token != "" {
		ux.Muted("Using the access token from " + vault.EnvAccessToken + ".")
		return token, nil
	}
	if !ux.IsInteractive() {
		return "", nil
	}
	return ux.PromptSecret("Access token",
		fmt.Sprintf("Create one at %s/settings/tokens. Leave empty for an anonymous session.", endpoint))
}

func loginViaDaemon(ctx context.Context, client *daemonClient, endpoint, token string) session.AuthStatus {
	spinner := ux.NewSpinner("Validating against " + endpoint)
	spinner.Start()
	status, err := client.SignIn(ctx, endpoint, token, requestHeaders())
	if err != nil {
		spinner.StopWithError("Sign-in failed")
		die(err)
	}
	spinner.Stop()
	return status
}

func loginDirect(ctx context.Context, endpoint, token string) session.AuthStatus {
	vcfg, sessionOnly, err := storageDecision(token)
	if errors.Is(err, errLoginCancelled) {
		ux.Muted("Sign-in cancelled; nothing was stored.")
		os.Exit(1)
	}
	if err != nil {
		die(err)
	}

	var creds vault.CredentialStore
	if sessionOnly {
		creds = vault.NewMemoryStore()
		ux.Muted("Keeping the token in memory for this run only.")
	}

	local, err := openLocalSession(ctx, vcfg, creds)
	if err != nil {
		die(err)
	}
	defer local.Close()

	spinner := ux.NewSpinner("Validating against " + endpoint)
	spinner.Start()
	status, err := local.manager.Authenticate(ctx, endpoint, token, session.WithHeaders(requestHeaders()))
	if err != nil {
		spinner.StopWithError("Sign-in failed")
		die(err)
	}
	spinner.Stop()
	return status
}

// storageDecision checks whether the vault can protect a token on this
// system and, when it cannot, lets the user abort, store anyway, or keep
// the token in memory. Anonymous sign-ins skip the check: there is
// nothing secret to store.
func storageDecision(token string) (config.VaultConfig, bool, error) {
	vcfg := config.Global.Vault
	if token == "" || vcfg.AllowInsecureMemory {
		return vcfg, false, nil
	}

	path, err := daemon.VaultPath(vcfg)
	if err != nil {
		return vcfg, false, err
	}

	var failed []ux.StorageCheck
	for _, check := range vault.RunSecurityChecks(path) {
		if check.Passed {
			continue
		}
		failed = append(failed, ux.StorageCheck{
			Name:     check.Name,
			Detail:   check.Detail,
			Severity: severityLabel(check.Severity),
		})
	}
	if len(failed) == 0 {
		return vcfg, false, nil
	}

	if !ux.IsInteractive() {
		return vcfg, false, fmt.Errorf(
			"secure credential storage is unavailable (%s); set vault.allow_insecure_memory or %s=true to store anyway",
			failed[0].Detail, "ALEUTIAN_INSECURE_MEMORY")
	}

	action, err := ux.PromptInsecureStore(ux.InsecureStorePromptOptions{
		VaultPath:       path,
		Reason:          failed[0].Detail,
		ShowSessionOnly: true,
		Checks:          failed,
	})
	if err != nil {
		return vcfg, false, err
	}
	switch action {
	case ux.StoreActionProceed:
		vcfg.AllowInsecureMemory = true
		return vcfg, false, nil
	case ux.StoreActionSession:
		return vcfg, true, nil
	default:
		return vcfg, false, errLoginCancelled
	}
}

// severityLabel maps vault check severities onto the prompt's labels.
func severityLabel(severity string) string {
	switch severity {
	case vault.SeverityCritical:
		return "HIGH"
	case vault.SeverityWarning:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
