// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare host gets https", "platform.example.com", "https://platform.example.com"},
		{"explicit http kept", "http://localhost:3080", "http://localhost:3080"},
		{"trailing slash stripped", "https://platform.example.com/", "https://platform.example.com"},
		{"deep path trailing slash stripped", "https://example.com/instance/", "https://example.com/instance"},
		{"host lowercased", "https://Platform.Example.COM", "https://platform.example.com"},
		{"path case kept", "https://example.com/Instance", "https://example.com/Instance"},
		{"surrounding whitespace trimmed", "  https://example.com  ", "https://example.com"},
		{"query dropped", "https://example.com/?utm=1", "https://example.com"},
		{"fragment dropped", "https://example.com#settings", "https://example.com"},
		{"port kept", "example.com:3443", "https://example.com:3443"},
		{"app alias maps to cloud", "app.aleutian.ai", "https://cloud.aleutian.ai"},
		{"app alias over http maps to cloud https", "http://app.aleutian.ai/", "https://cloud.aleutian.ai"},
		{"cloud endpoint round trips", "https://cloud.aleutian.ai/", CloudEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEndpoint(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeEndpoint(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeEndpoint_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"prefixed token", "alp_0123456789abcdef0123456789abcdef01234567"},
		{"bare hex token", strings.Repeat("ab", 20)},
		{"longer bare hex token", strings.Repeat("0f", 32)},
		{"unsupported scheme", "ftp://example.com"},
		{"scheme only", "https://"},
		{"unparseable", "https://exa mple.com/%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEndpoint(tt.raw)
			if !errors.Is(err, ErrMalformedEndpoint) {
				t.Fatalf("NormalizeEndpoint(%q) = (%q, %v), want ErrMalformedEndpoint", tt.raw, got, err)
			}
		})
	}
}

func TestNormalizeEndpoint_ShortHexIsAHost(t *testing.T) {
	// Hex-looking strings under the token length are legitimate hosts,
	// e.g. container IDs on a dev box.
	got, err := NormalizeEndpoint("abcdef012345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://abcdef012345" {
		t.Errorf("got %q", got)
	}
}

func TestIsCloudEndpoint(t *testing.T) {
	if !IsCloudEndpoint(CloudEndpoint) {
		t.Error("CloudEndpoint not recognized as cloud")
	}
	for _, endpoint := range []string{
		"https://platform.example.com",
		"http://cloud.aleutian.ai",
		"",
	} {
		if IsCloudEndpoint(endpoint) {
			t.Errorf("IsCloudEndpoint(%q) = true, want false", endpoint)
		}
	}
}
