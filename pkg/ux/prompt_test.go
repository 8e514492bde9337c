// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"strings"
	"testing"
)

// Machine personality makes every prompt non-interactive, which is the
// only branch exercisable without a terminal.

func TestSelectOption_NonInteractive(t *testing.T) {
	asLevel(t, PersonalityMachine)

	_, err := SelectOption("Endpoint", "", []PromptOption{
		{Label: "Aleutian Cloud", Value: "https://cloud.aleutian.ai", Recommended: true},
		{Label: "Self-hosted", Value: "custom"},
	})
	if !errors.Is(err, ErrNonInteractive) {
		t.Errorf("err = %v, want ErrNonInteractive", err)
	}
}

func TestSelectOption_RejectsEmptyOptions(t *testing.T) {
	asLevel(t, PersonalityMachine)

	// An empty option set is a programming error, reported before the
	// interactivity check.
	_, err := SelectOption("Endpoint", "", nil)
	if err == nil || errors.Is(err, ErrNonInteractive) {
		t.Errorf("err = %v, want a validation error", err)
	}
}

func TestConfirm_NonInteractive(t *testing.T) {
	asLevel(t, PersonalityMachine)

	confirmed, err := Confirm("Sign out of https://cloud.aleutian.ai?", "")
	if !errors.Is(err, ErrNonInteractive) {
		t.Errorf("err = %v, want ErrNonInteractive", err)
	}
	if confirmed {
		t.Error("non-interactive Confirm answered yes")
	}
}

func TestPromptInput_NonInteractive(t *testing.T) {
	asLevel(t, PersonalityMachine)

	value, err := PromptInput("Endpoint", "", "https://cloud.aleutian.ai")
	if !errors.Is(err, ErrNonInteractive) {
		t.Errorf("err = %v, want ErrNonInteractive", err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestPromptSecret_NonInteractive(t *testing.T) {
	asLevel(t, PersonalityMachine)

	value, err := PromptSecret("Access token", "")
	if !errors.Is(err, ErrNonInteractive) {
		t.Errorf("err = %v, want ErrNonInteractive", err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestPromptInsecureStore_NonInteractiveAborts(t *testing.T) {
	asLevel(t, PersonalityMachine)

	action, err := PromptInsecureStore(InsecureStorePromptOptions{
		VaultPath: "/home/user/.aleutian/vault",
		Reason:    "locked memory unavailable",
	})
	if !errors.Is(err, ErrNonInteractive) {
		t.Errorf("err = %v, want ErrNonInteractive", err)
	}
	if action != StoreActionAbort {
		t.Errorf("action = %q, want abort: a silent proceed would store a token insecurely", action)
	}
}

func TestRenderStorageChecks_ListsEveryCheck(t *testing.T) {
	asLevel(t, PersonalityFull)

	checks := []StorageCheck{
		{Name: "memlock", Detail: "RLIMIT_MEMLOCK is 64 KB", Severity: "HIGH"},
		{Name: "swap", Detail: "swap is enabled without encryption", Severity: "MEDIUM"},
	}
	out := captureStdout(func() { renderStorageChecks(checks) })

	for _, want := range []string{"memlock", "RLIMIT_MEMLOCK", "swap", "Storage checks"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered checks missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 40, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a managed endpoint operated by Aleutian for teams", 20, "a managed endpoin..."},
		{"abcdef", 3, "..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
