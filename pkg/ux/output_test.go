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
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout runs f with stdout redirected into a buffer.
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// captureStderr runs f with stderr redirected into a buffer.
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func asLevel(t *testing.T, level PersonalityLevel) {
	t.Helper()
	orig := GetPersonality()
	t.Cleanup(func() { SetPersonality(orig) })
	SetPersonality(Personality{Level: level, ShowTips: true})
}

func TestIconRender_NeverEmpty(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow, IconBullet} {
		if icon.Render() == "" {
			t.Errorf("icon %q rendered empty", string(icon))
		}
	}
}

func TestSuccess_MachineContract(t *testing.T) {
	asLevel(t, PersonalityMachine)

	out := captureStdout(func() { Success("Signed in") })
	if out != "OK: Signed in\n" {
		t.Errorf("Success output = %q, want OK line on stdout", out)
	}
}

func TestWarning_MachineWritesStderr(t *testing.T) {
	asLevel(t, PersonalityMachine)

	errOut := captureStderr(func() { Warning("endpoint unreachable") })
	if errOut != "WARN: endpoint unreachable\n" {
		t.Errorf("Warning stderr = %q", errOut)
	}
}

func TestError_MachineWritesStderr(t *testing.T) {
	asLevel(t, PersonalityMachine)

	errOut := captureStderr(func() { Error("invalid access token") })
	if errOut != "ERROR: invalid access token\n" {
		t.Errorf("Error stderr = %q", errOut)
	}
}

func TestError_FullModeCarriesMessage(t *testing.T) {
	asLevel(t, PersonalityFull)

	out := captureStdout(func() { Error("invalid access token") })
	if !strings.Contains(out, "invalid access token") {
		t.Errorf("full-mode error %q lost the message", out)
	}
}

func TestMuted_SilentInMachineMode(t *testing.T) {
	asLevel(t, PersonalityMachine)

	out := captureStdout(func() { Muted("The daemon is not running.") })
	if out != "" {
		t.Errorf("machine-mode Muted printed %q", out)
	}
}

func TestMuted_PrintsOtherwise(t *testing.T) {
	asLevel(t, PersonalityStandard)

	out := captureStdout(func() { Muted("The daemon is not running.") })
	if !strings.Contains(out, "The daemon is not running.") {
		t.Errorf("Muted output = %q", out)
	}
}

func TestBox_MachineCollapsesToOneLine(t *testing.T) {
	asLevel(t, PersonalityMachine)

	out := captureStdout(func() { Box("Session", "endpoint https://platform.example.com") })
	if out != "Session: endpoint https://platform.example.com\n" {
		t.Errorf("machine Box output = %q", out)
	}
}

func TestBox_FullModeDrawsBorder(t *testing.T) {
	asLevel(t, PersonalityFull)

	out := captureStdout(func() { Box("Session", "endpoint https://platform.example.com") })
	if !strings.Contains(out, "Session") || !strings.Contains(out, "╭") {
		t.Errorf("full Box output = %q, want bordered content", out)
	}
}

func TestWarningBox_MachineWritesStderr(t *testing.T) {
	asLevel(t, PersonalityMachine)

	errOut := captureStderr(func() { WarningBox("Storage checks", "swap is enabled") })
	if errOut != "WARN Storage checks: swap is enabled\n" {
		t.Errorf("machine WarningBox = %q", errOut)
	}
}

func TestEndpointLine_MachineTabSeparated(t *testing.T) {
	asLevel(t, PersonalityMachine)

	out := captureStdout(func() {
		EndpointLine(true, "https://platform.example.com", "signed in")
		EndpointLine(false, "https://old.example.com", "")
	})

	want := "*\thttps://platform.example.com\tsigned in\n-\thttps://old.example.com\t\n"
	if out != want {
		t.Errorf("machine endpoint lines = %q, want %q", out, want)
	}
}

func TestEndpointLine_FullModeMarksActive(t *testing.T) {
	asLevel(t, PersonalityFull)

	out := captureStdout(func() {
		EndpointLine(true, "https://platform.example.com", "signed in")
	})
	if !strings.Contains(out, "https://platform.example.com") || !strings.Contains(out, "signed in") {
		t.Errorf("endpoint line %q lost endpoint or annotation", out)
	}
}

func TestTip_RespectsShowTips(t *testing.T) {
	orig := GetPersonality()
	t.Cleanup(func() { SetPersonality(orig) })

	SetPersonality(Personality{Level: PersonalityFull, ShowTips: false})
	out := captureStdout(func() { Tip("Run 'connect login' to sign in.") })
	if out != "" {
		t.Errorf("tip printed with ShowTips off: %q", out)
	}

	SetPersonality(Personality{Level: PersonalityFull, ShowTips: true})
	out = captureStdout(func() { Tip("Run 'connect login' to sign in.") })
	if !strings.Contains(out, "connect login") {
		t.Errorf("tip output = %q", out)
	}
}

func TestTip_SuppressedBelowFull(t *testing.T) {
	for _, level := range []PersonalityLevel{PersonalityMinimal, PersonalityMachine} {
		asLevel(t, level)
		if out := captureStdout(func() { Tip("hint") }); out != "" {
			t.Errorf("%s personality printed tip %q", level, out)
		}
	}
}
