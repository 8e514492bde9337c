// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const e2eToken = "alp_e2e0123456789abcdef0123456789abcdef012"

// fakePlatform serves the three validation endpoints behind Bearer auth,
// standing in for a real deployment.
func fakePlatform(t *testing.T) *httptest.Server {
	t.Helper()
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+e2eToken {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.api/site", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"siteVersion":"5.4.1","assistantEnabled":true}`)
	}))
	mux.HandleFunc("/.api/settings/models", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"provider":"aleutian","chatModel":"aleutian::deep-chat"}`)
	}))
	mux.HandleFunc("/.api/viewer", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"username":"nori","email":"nori@example.com"}`)
	}))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// runConnect executes the built binary hermetically: its own HOME, its own
// store paths, no daemon on the probed address.
func runConnect(t *testing.T, home, stdin string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(cliBinary, append(args, "--personality", "machine")...)
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + home,
		"ALEUTIAN_VAULT_PATH=" + filepath.Join(home, "vault"),
		"ALEUTIAN_SETTINGS_PATH=" + filepath.Join(home, "settings"),
		"ALEUTIAN_INSECURE_MEMORY=true",
		"ALEUTIAN_CONNECT_ADDR=127.0.0.1:1",
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("running connect %v: %v\n%s", args, err, out)
		}
		return string(out), exitErr.ExitCode()
	}
	return string(out), 0
}

// statusDoc is the slice of the status JSON these tests care about. The
// tests stay a black box: only the CLI surface, no internal packages.
type statusDoc struct {
	Endpoint     string `json:"endpoint"`
	SignedIn     bool   `json:"signedIn"`
	InvalidToken bool   `json:"invalidToken"`
}

func parseStatus(t *testing.T, out string) statusDoc {
	t.Helper()
	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no JSON in output:\n%s", out)
	}
	var doc statusDoc
	if err := json.Unmarshal([]byte(out[start:]), &doc); err != nil {
		t.Fatalf("parsing status JSON: %v\n%s", err, out)
	}
	return doc
}

// TestSessionLifecycle drives login, status, endpoints, and logout through
// the real binary with no daemon running.
func TestSessionLifecycle(t *testing.T) {
	platform := fakePlatform(t)
	home := t.TempDir()

	out, code := runConnect(t, home, e2eToken, "login", platform.URL, "--token-stdin")
	if code != 0 {
		t.Fatalf("login exited %d:\n%s", code, out)
	}
	if !strings.Contains(out, "SIGNIN: ok") || !strings.Contains(out, "user=nori") {
		t.Fatalf("unexpected login output:\n%s", out)
	}

	out, code = runConnect(t, home, "", "status", "--json")
	if code != 0 {
		t.Fatalf("status exited %d:\n%s", code, out)
	}
	status := parseStatus(t, out)
	if !status.SignedIn {
		t.Errorf("expected a signed-in status, got:\n%s", out)
	}
	if status.Endpoint != platform.URL {
		t.Errorf("status endpoint = %q, want %q", status.Endpoint, platform.URL)
	}

	out, code = runConnect(t, home, "", "endpoints", "list")
	if code != 0 {
		t.Fatalf("endpoints list exited %d:\n%s", code, out)
	}
	if !strings.Contains(out, platform.URL) {
		t.Errorf("endpoint history missing %s:\n%s", platform.URL, out)
	}

	out, code = runConnect(t, home, "", "logout", "--yes")
	if code != 0 {
		t.Fatalf("logout exited %d:\n%s", code, out)
	}
	if !strings.Contains(out, "SIGNOUT:") {
		t.Errorf("unexpected logout output:\n%s", out)
	}

	out, _ = runConnect(t, home, "", "status", "--json")
	if status := parseStatus(t, out); status.SignedIn {
		t.Errorf("still signed in after logout:\n%s", out)
	}
}

// TestLoginRejectedToken checks the exit code contract: a supplied token
// that the platform rejects must fail the command.
func TestLoginRejectedToken(t *testing.T) {
	platform := fakePlatform(t)
	home := t.TempDir()

	out, code := runConnect(t, home, "alp_wrong0123456789abcdef0123456789abcdef0", "login", platform.URL, "--token-stdin")
	if code != 1 {
		t.Fatalf("expected exit 1 for a rejected token, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "SIGNIN: failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// TestAnonymousLogin checks that an empty token commits a signed-out
// session for the endpoint and succeeds. Anonymous sessions are not
// persisted, so a later status run starts from the fresh-install state.
func TestAnonymousLogin(t *testing.T) {
	platform := fakePlatform(t)
	home := t.TempDir()

	out, code := runConnect(t, home, "", "login", platform.URL)
	if code != 0 {
		t.Fatalf("anonymous login exited %d:\n%s", code, out)
	}
	if !strings.Contains(out, "state=signed-out") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, _ = runConnect(t, home, "", "status", "--json")
	status := parseStatus(t, out)
	if status.SignedIn {
		t.Errorf("anonymous session reads as signed in:\n%s", out)
	}
	if status.Endpoint != "" {
		t.Errorf("anonymous sessions must not persist an endpoint, got %q", status.Endpoint)
	}
}

// TestOfflinePlatform checks that a dead endpoint degrades to a
// signed-out status instead of an error exit.
func TestOfflinePlatform(t *testing.T) {
	home := t.TempDir()

	// A closed port: connection refused, classified as offline.
	out, code := runConnect(t, home, e2eToken, "login", "http://127.0.0.1:9", "--token-stdin")
	if code != 1 {
		t.Fatalf("expected exit 1 when the platform is unreachable, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "SIGNIN: failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
