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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianConnect/services/session"
)

func TestStatusView_SignedIn(t *testing.T) {
	status := session.AuthStatus{
		Endpoint:     "https://platform.example.com",
		SignedIn:     true,
		Connectivity: session.ConnectivityOnline,
		Account: &session.Account{
			Username:     "alice",
			DisplayName:  "Alice Example",
			PrimaryEmail: "alice@example.com",
		},
		Site: &session.SiteInfo{
			Version:          "5.4.1",
			AssistantEnabled: true,
			ModelDefaults: &session.ModelDefaults{
				ChatModel:     "aleutian::deep-chat",
				FastChatModel: "aleutian::fast-chat",
			},
		},
	}

	view := statusView(status)

	assert.Equal(t, "signed-in", view.State)
	assert.Equal(t, "https://platform.example.com", view.Endpoint)
	assert.Equal(t, "alice", view.User)
	assert.Equal(t, "Alice Example", view.DisplayName)
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Equal(t, "5.4.1", view.SiteVersion)
	assert.Equal(t, "aleutian::deep-chat", view.ChatModel)
	assert.Equal(t, "aleutian::fast-chat", view.FastModel)
	assert.Equal(t, "online", view.Connectivity)
	assert.Empty(t, view.Reason)
}

func TestStatusView_InvalidTokenReadsAsError(t *testing.T) {
	view := statusView(session.AuthStatus{
		Endpoint:     "https://platform.example.com",
		InvalidToken: true,
		Connectivity: session.ConnectivityOnline,
	})

	assert.Equal(t, "error", view.State)
	assert.Contains(t, view.Reason, "rejected")
}

func TestStatusView_OfflineReadsAsSignedOut(t *testing.T) {
	view := statusView(session.AuthStatus{
		Endpoint:     "https://platform.example.com",
		Connectivity: session.ConnectivityOffline,
	})

	assert.Equal(t, "signed-out", view.State)
	assert.Contains(t, view.Reason, "unreachable")
}

func TestStatusView_AssistantDisabled(t *testing.T) {
	view := statusView(session.AuthStatus{
		Endpoint:     "https://platform.example.com",
		Connectivity: session.ConnectivityOnline,
		Site:         &session.SiteInfo{Version: "5.4.1", AssistantEnabled: false},
	})

	assert.Equal(t, "signed-out", view.State)
	assert.Contains(t, view.Reason, "disabled")
}

func TestStatusView_AnonymousPlaceholder(t *testing.T) {
	view := statusView(session.SignedOut(""))

	assert.Equal(t, "signed-out", view.State)
	assert.Empty(t, view.Endpoint)
	assert.Empty(t, view.User)
	assert.Empty(t, view.Reason)
}
