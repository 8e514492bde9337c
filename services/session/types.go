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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianConnect/pkg/logging"
)

// Connectivity classifies the session's last contact with the platform.
type Connectivity int

const (
	// ConnectivityUnknown means no validation has run yet.
	ConnectivityUnknown Connectivity = iota

	// ConnectivityOnline means the platform answered the last validation,
	// even if it rejected the token.
	ConnectivityOnline

	// ConnectivityOffline means the platform was unreachable.
	ConnectivityOffline

	// ConnectivityError means the platform answered with a failure that
	// is neither an auth rejection nor a transport problem.
	ConnectivityError
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityOnline:
		return "online"
	case ConnectivityOffline:
		return "offline"
	case ConnectivityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the connectivity as its string form so daemon API
// clients never see bare ordinals.
func (c Connectivity) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Connectivity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "unknown":
		*c = ConnectivityUnknown
	case "online":
		*c = ConnectivityOnline
	case "offline":
		*c = ConnectivityOffline
	case "error":
		*c = ConnectivityError
	default:
		return fmt.Errorf("unknown connectivity %q", s)
	}
	return nil
}

// Credentials is the input of one sign-in attempt. An empty token means
// anonymous browsing. The token never appears in logs or JSON.
type Credentials struct {
	Endpoint      string            `json:"endpoint"`
	Token         string            `json:"-"`
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
}

// LogValue renders the credentials with the token redacted, so passing a
// Credentials value to slog can never leak the secret.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", c.Endpoint),
		slog.String("token", logging.Redact(c.Token)),
	)
}

// Account identifies the user a token authenticates as.
type Account struct {
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
	PrimaryEmail  string `json:"primaryEmail,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	AvatarURL     string `json:"avatarURL,omitempty"`
}

// ModelDefaults is the site-configured LLM selection carried on a
// validated status. Zero fields mean the server left them unset.
type ModelDefaults struct {
	Provider                 string `json:"provider,omitempty"`
	ChatModel                string `json:"chatModel,omitempty"`
	ChatModelMaxTokens       int    `json:"chatModelMaxTokens,omitempty"`
	FastChatModel            string `json:"fastChatModel,omitempty"`
	FastChatModelMaxTokens   int    `json:"fastChatModelMaxTokens,omitempty"`
	CompletionModel          string `json:"completionModel,omitempty"`
	CompletionModelMaxTokens int    `json:"completionModelMaxTokens,omitempty"`
	SmartContext             bool   `json:"smartContext,omitempty"`
}

// SiteInfo describes the deployment a status was validated against.
type SiteInfo struct {
	Version          string         `json:"version"`
	APIVersion       APIVersion     `json:"apiVersion"`
	AssistantEnabled bool           `json:"assistantEnabled"`
	ModelDefaults    *ModelDefaults `json:"modelDefaults,omitempty"`
}

// AuthStatus is the authoritative session snapshot. Statuses are
// immutable: the manager replaces the whole value on every commit, so
// holders may read fields freely but must never mutate pointer targets.
type AuthStatus struct {
	Endpoint     string       `json:"endpoint"`
	IsCloud      bool         `json:"isCloud"`
	SignedIn     bool         `json:"signedIn"`
	Account      *Account     `json:"account,omitempty"`
	Site         *SiteInfo    `json:"site,omitempty"`
	InvalidToken bool         `json:"invalidToken"`
	Connectivity Connectivity `json:"connectivity"`
}

// SignedOut returns the anonymous status for endpoint. An empty endpoint
// is the fresh-install state.
func SignedOut(endpoint string) AuthStatus {
	return AuthStatus{
		Endpoint: endpoint,
		IsCloud:  IsCloudEndpoint(endpoint),
	}
}

// Equal reports deep equality with other. Commits producing an equal
// status are deduplicated by the notification stream.
func (s AuthStatus) Equal(other AuthStatus) bool {
	if s.Endpoint != other.Endpoint ||
		s.IsCloud != other.IsCloud ||
		s.SignedIn != other.SignedIn ||
		s.InvalidToken != other.InvalidToken ||
		s.Connectivity != other.Connectivity {
		return false
	}
	if !equalAccount(s.Account, other.Account) {
		return false
	}
	return equalSite(s.Site, other.Site)
}

func equalAccount(a, b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalSite(a, b *SiteInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Version != b.Version ||
		a.APIVersion != b.APIVersion ||
		a.AssistantEnabled != b.AssistantEnabled {
		return false
	}
	if a.ModelDefaults == nil || b.ModelDefaults == nil {
		return a.ModelDefaults == b.ModelDefaults
	}
	return *a.ModelDefaults == *b.ModelDefaults
}
