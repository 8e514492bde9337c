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
	"github.com/AleutianAI/AleutianConnect/pkg/ux"
	"github.com/AleutianAI/AleutianConnect/services/session"
)

// statusView maps a committed session status onto the terminal view.
func statusView(status session.AuthStatus) ux.SessionView {
	view := ux.SessionView{
		Endpoint:     status.Endpoint,
		Connectivity: status.Connectivity.String(),
	}
	if status.Account != nil {
		view.User = status.Account.Username
		view.DisplayName = status.Account.DisplayName
		view.Email = status.Account.PrimaryEmail
	}
	if status.Site != nil {
		view.SiteVersion = status.Site.Version
		if md := status.Site.ModelDefaults; md != nil {
			view.ChatModel = md.ChatModel
			view.FastModel = md.FastChatModel
		}
	}

	switch {
	case status.SignedIn:
		view.State = "signed-in"
	case status.InvalidToken:
		view.State = "error"
		view.Reason = "the platform rejected the stored access token"
	case status.Connectivity == session.ConnectivityOffline:
		view.State = "signed-out"
		view.Reason = "the platform is unreachable"
	case status.Site != nil && !status.Site.AssistantEnabled:
		view.State = "signed-out"
		view.Reason = "the Aleutian assistant is disabled on this server"
	default:
		view.State = "signed-out"
	}
	return view
}
