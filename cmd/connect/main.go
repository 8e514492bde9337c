// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// connect is the AleutianConnect CLI: sign in to an Aleutian platform,
// inspect and watch the session, and manage the endpoint history. It talks
// to a running connectd daemon and falls back to operating on the local
// stores directly when no daemon is up.
package main

import (
	"log"
	"os"

	"github.com/AleutianAI/AleutianConnect/pkg/ux"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// die prints a styled error and exits. Command handlers use it for
// terminal failures the user must act on.
func die(err error) {
	ux.Error(err.Error())
	os.Exit(1)
}
