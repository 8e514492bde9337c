// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

// SiteDescription is the platform's answer to GET /.api/site.
type SiteDescription struct {
	// Version is the server release, e.g. "5.4.1". Cloud deploys report
	// build identifiers that do not parse as semver.
	Version string `json:"siteVersion"`

	// AssistantEnabled reports whether the assistant product is licensed
	// and switched on for this deployment.
	AssistantEnabled bool `json:"assistantEnabled"`
}

// ModelDefaults is the platform's answer to GET /.api/settings/models:
// the server-configured model identifiers and token budgets for this
// deployment. Zero values mean the server left the field unset and the
// client should fall back to its own defaults.
type ModelDefaults struct {
	Provider                 string `json:"provider"`
	ChatModel                string `json:"chatModel"`
	ChatModelMaxTokens       int    `json:"chatModelMaxTokens"`
	FastChatModel            string `json:"fastChatModel"`
	FastChatModelMaxTokens   int    `json:"fastChatModelMaxTokens"`
	CompletionModel          string `json:"completionModel"`
	CompletionModelMaxTokens int    `json:"completionModelMaxTokens"`
	SmartContext             bool   `json:"smartContext"`
}

// Viewer is the platform's answer to GET /.api/viewer: the account the
// presented token authenticates as.
type Viewer struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarURL"`
}

// ValidationResult aggregates the three validation calls for one
// endpoint+token pair.
type ValidationResult struct {
	Site   SiteDescription
	Models ModelDefaults
	Viewer Viewer
}
