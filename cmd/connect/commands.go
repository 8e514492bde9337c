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
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianConnect/pkg/config"
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	loginEndpoint    string
	loginHeaders     map[string]string
	tokenStdin       bool
	assumeYes        bool
	statusJSON       bool
	statusWatch      bool

	rootCmd = &cobra.Command{
		Use:   "connect",
		Short: "Sign in to an Aleutian platform and manage the local session",
		Long: `connect authenticates this machine against an Aleutian platform and
				keeps the session available to editors and other local tooling
				through the connectd daemon.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading the config: %v", err)
			}
		},
	}

	// --- Session ---
	loginCmd = &cobra.Command{
		Use:   "login [endpoint]",
		Short: "Sign in to an Aleutian platform",
		Long: `Validates an access token against the platform and stores it in the
				local credential vault. The token is read from --token-stdin, the
				ALEUTIAN_ACCESS_TOKEN environment variable, or an interactive
				prompt; it is never accepted as a command line argument.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runLogin, // Defined in cmd_login.go
	}
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Sign out and delete the stored token",
		Run:   runLogout, // Defined in cmd_session.go
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the current session status",
		Run:   runStatus, // Defined in cmd_session.go
	}

	// --- Endpoints ---
	endpointsCmd = &cobra.Command{
		Use:   "endpoints",
		Short: "Manage the endpoint history",
	}
	endpointsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List previously used endpoints, newest first",
		Run:   runEndpointsList, // Defined in cmd_endpoints.go
	}
	endpointsRemoveCmd = &cobra.Command{
		Use:   "remove [endpoint]",
		Short: "Forget an endpoint from the history (does not sign out)",
		Args:  cobra.ExactArgs(1),
		Run:   runEndpointsRemove, // Defined in cmd_endpoints.go
	}

	// --- Setup / Daemon ---
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Interactively write the connect configuration file",
		Run:   runSetup, // Defined in cmd_setup.go
	}
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Run the connect daemon in the foreground",
		Long: `Runs the same loop as the connectd binary: the credential vault,
				the session manager, and the localhost API, until interrupted.`,
		Run: runDaemon, // Defined in cmd_daemon.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich nautical), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEndpoint, "endpoint", "", "Platform URL to sign in to")
	loginCmd.Flags().BoolVar(&tokenStdin, "token-stdin", false, "Read the access token from stdin")
	loginCmd.Flags().StringToStringVar(&loginHeaders, "header", nil,
		"Custom header sent with every platform request (key=value, repeatable)")

	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status as JSON")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Stream status changes from the daemon")

	rootCmd.AddCommand(endpointsCmd)
	endpointsCmd.AddCommand(endpointsListCmd)
	endpointsCmd.AddCommand(endpointsRemoveCmd)

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(daemonCmd)
}
