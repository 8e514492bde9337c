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
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// SessionView is the display-ready projection of an authentication status.
//
// # Description
//
// SessionView carries only what the terminal needs to render a session:
// plain strings, no service types. Commands map their domain status into
// this view before handing it to a SessionUI.
//
// # Fields
//
//   - State: "signed-in", "signed-out", "validating", or "error".
//   - Endpoint: Normalized endpoint URL. May be empty before first sign-in.
//   - User: Account username. Empty when signed out.
//   - DisplayName: Human-friendly account name. May be empty.
//   - Email: Primary account email. May be empty.
//   - SiteVersion: Server version string reported by the endpoint.
//   - Connectivity: "online", "offline", or "unknown".
//   - ChatModel: Default chat model advertised by the endpoint.
//   - FastModel: Default fast-chat model advertised by the endpoint.
//   - Reason: Failure detail for signed-out and error states.
//   - CheckedAt: Unix milliseconds of the last validation. Zero if never.
type SessionView struct {
	State        string `json:"state"`
	Endpoint     string `json:"endpoint,omitempty"`
	User         string `json:"user,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Email        string `json:"email,omitempty"`
	SiteVersion  string `json:"site_version,omitempty"`
	Connectivity string `json:"connectivity,omitempty"`
	ChatModel    string `json:"chat_model,omitempty"`
	FastModel    string `json:"fast_model,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CheckedAt    int64  `json:"checked_at,omitempty"`
}

// SessionUI defines the interface for session status rendering.
// Implementations handle rendering to different outputs.
type SessionUI interface {
	// Status displays the full current session status.
	Status(view SessionView)

	// Transition displays a single status change line for watch mode.
	Transition(view SessionView)

	// SignInResult displays the outcome of a sign-in attempt.
	SignInResult(view SessionView)

	// SignedOut displays confirmation that credentials were removed.
	SignedOut(endpoint string)

	// Error displays a session error message.
	Error(err error)
}

// terminalSessionUI implements SessionUI for terminal output
type terminalSessionUI struct {
	writer      io.Writer
	personality PersonalityLevel
}

// write is a helper that writes formatted output and handles errors.
// Errors are silently ignored as there's no meaningful recovery for terminal output.
func (u *terminalSessionUI) write(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(u.writer, format, args...); err != nil {
		// Terminal write errors are non-recoverable; silently ignore
		return
	}
}

// writeln is a helper that writes a line and handles errors.
func (u *terminalSessionUI) writeln(args ...interface{}) {
	if _, err := fmt.Fprintln(u.writer, args...); err != nil {
		// Terminal write errors are non-recoverable; silently ignore
		return
	}
}

// NewSessionUI creates a new terminal-based SessionUI
func NewSessionUI() SessionUI {
	return &terminalSessionUI{
		writer:      os.Stdout,
		personality: GetPersonality().Level,
	}
}

// NewSessionUIWithWriter creates a SessionUI with a custom writer (for testing)
func NewSessionUIWithWriter(w io.Writer, personality PersonalityLevel) SessionUI {
	return &terminalSessionUI{
		writer:      w,
		personality: personality,
	}
}

// stateBadge returns the styled indicator for a session state.
func stateBadge(state string) string {
	switch state {
	case "signed-in":
		return fmt.Sprintf("%s %s", IconSuccess.Render(), Styles.Success.Render("Signed in"))
	case "validating":
		return fmt.Sprintf("%s %s", IconPending.Render(), Styles.Warning.Render("Validating"))
	case "error":
		return fmt.Sprintf("%s %s", IconError.Render(), Styles.Error.Render("Error"))
	default:
		return fmt.Sprintf("%s %s", IconPending.Render(), Styles.Muted.Render("Signed out"))
	}
}

// Status displays the full current session status.
//
// # Description
//
// Renders the status box with state, endpoint, account, server, and model
// information. Adapts output based on personality level.
func (u *terminalSessionUI) Status(view SessionView) {
	if u.personality == PersonalityMachine {
		u.statusMachine(view)
		return
	}

	if u.personality == PersonalityMinimal {
		u.statusMinimal(view)
		return
	}

	u.statusFull(view)
}

// statusMachine renders the status in machine-readable format.
func (u *terminalSessionUI) statusMachine(view SessionView) {
	parts := []string{fmt.Sprintf("state=%s", view.State)}
	if view.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", view.Endpoint))
	}
	if view.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", view.User))
	}
	if view.Connectivity != "" {
		parts = append(parts, fmt.Sprintf("connectivity=%s", view.Connectivity))
	}
	if view.SiteVersion != "" {
		parts = append(parts, fmt.Sprintf("site_version=%s", view.SiteVersion))
	}
	if view.Reason != "" {
		parts = append(parts, fmt.Sprintf("reason=%q", view.Reason))
	}
	u.write("STATUS: %s\n", strings.Join(parts, " "))
}

// statusMinimal renders the status in minimal format.
func (u *terminalSessionUI) statusMinimal(view SessionView) {
	u.write("%s\n", strings.TrimSpace(stateBadge(view.State)))
	if view.Endpoint != "" {
		u.write("Endpoint: %s\n", view.Endpoint)
	}
	if view.User != "" {
		u.write("Account: %s\n", view.User)
	}
	if view.Reason != "" {
		u.write("Reason: %s\n", view.Reason)
	}
}

// statusFull renders the status with full styling.
func (u *terminalSessionUI) statusFull(view SessionView) {
	var content strings.Builder
	content.WriteString(stateBadge(view.State))

	if view.Endpoint != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Endpoint: %s", Styles.Highlight.Render(view.Endpoint)))
	}

	if view.User != "" {
		content.WriteString("\n")
		account := view.User
		if view.Email != "" {
			account = fmt.Sprintf("%s %s", account, Styles.Muted.Render("<"+view.Email+">"))
		}
		content.WriteString(fmt.Sprintf("Account:  %s", account))
	}

	if view.SiteVersion != "" {
		content.WriteString("\n")
		server := Styles.Success.Render(view.SiteVersion)
		if view.Connectivity != "" {
			server = fmt.Sprintf("%s %s", server, Styles.Muted.Render("("+view.Connectivity+")"))
		}
		content.WriteString(fmt.Sprintf("Server:   %s", server))
	} else if view.Connectivity != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Network:  %s", Styles.Muted.Render(view.Connectivity)))
	}

	if view.ChatModel != "" {
		content.WriteString("\n")
		models := view.ChatModel
		if view.FastModel != "" && view.FastModel != view.ChatModel {
			models = fmt.Sprintf("%s %s", models, Styles.Muted.Render("(fast: "+view.FastModel+")"))
		}
		content.WriteString(fmt.Sprintf("Models:   %s", models))
	}

	if view.Reason != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Reason:   %s", Styles.Warning.Render(view.Reason)))
	}

	if view.CheckedAt > 0 {
		content.WriteString("\n")
		content.WriteString(Styles.Muted.Render(fmt.Sprintf("Checked:  %s", formatRelativeTime(view.CheckedAt))))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
}

// Transition displays a single status change line for watch mode.
//
// Each line carries a wall-clock timestamp so a long-running watch
// session reads as an event log.
func (u *terminalSessionUI) Transition(view SessionView) {
	if u.personality == PersonalityMachine {
		parts := []string{fmt.Sprintf("state=%s", view.State)}
		if view.Endpoint != "" {
			parts = append(parts, fmt.Sprintf("endpoint=%s", view.Endpoint))
		}
		if view.User != "" {
			parts = append(parts, fmt.Sprintf("user=%s", view.User))
		}
		if view.Reason != "" {
			parts = append(parts, fmt.Sprintf("reason=%q", view.Reason))
		}
		u.write("TRANSITION: %s\n", strings.Join(parts, " "))
		return
	}

	stamp := Styles.Muted.Render(time.Now().Format("15:04:05"))
	detail := view.Endpoint
	if view.User != "" {
		detail = fmt.Sprintf("%s as %s", detail, view.User)
	}
	if view.Reason != "" {
		detail = fmt.Sprintf("%s %s", detail, Styles.Muted.Render("("+truncate(view.Reason, 48)+")"))
	}
	u.write("%s %s %s\n", stamp, stateBadge(view.State), detail)
}

// SignInResult displays the outcome of a sign-in attempt.
func (u *terminalSessionUI) SignInResult(view SessionView) {
	if u.personality == PersonalityMachine {
		if view.State == "signed-in" {
			u.write("SIGNIN: ok endpoint=%s user=%s\n", view.Endpoint, view.User)
		} else {
			u.write("SIGNIN: failed state=%s reason=%q\n", view.State, view.Reason)
		}
		return
	}

	if view.State == "signed-in" {
		who := view.User
		if view.DisplayName != "" && view.DisplayName != view.User {
			who = fmt.Sprintf("%s (%s)", view.DisplayName, view.User)
		}
		u.write("%s %s\n", IconSuccess.Render(),
			Styles.Success.Render(fmt.Sprintf("Signed in to %s as %s", view.Endpoint, who)))
		if u.personality != PersonalityMinimal && view.SiteVersion != "" {
			u.write("%s %s\n", Styles.Muted.Render("│"),
				Styles.Muted.Render(fmt.Sprintf("server %s", view.SiteVersion)))
		}
		return
	}

	reason := view.Reason
	if reason == "" {
		reason = "sign-in failed"
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(reason))
}

// SignedOut displays confirmation that credentials were removed.
func (u *terminalSessionUI) SignedOut(endpoint string) {
	if u.personality == PersonalityMachine {
		u.write("SIGNOUT: endpoint=%s\n", endpoint)
		return
	}
	if endpoint == "" {
		u.write("%s %s\n", IconSuccess.Render(), Styles.Success.Render("Signed out"))
		return
	}
	u.write("%s %s\n", IconSuccess.Render(),
		Styles.Success.Render(fmt.Sprintf("Signed out of %s", endpoint)))
}

// Error displays a session error message.
func (u *terminalSessionUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(err.Error()))
}

// formatRelativeTime converts a Unix milliseconds timestamp to a relative time string.
//
// # Description
//
// Converts a timestamp to a human-friendly relative time like "2h ago",
// "3 days ago", etc. Adapts the unit based on the time difference.
//
// # Inputs
//
//   - unixMs: Unix timestamp in milliseconds
//
// # Outputs
//
//   - string: Relative time string (e.g., "2h ago", "3 days ago")
//
// # Limitations
//
//   - Returns "just now" for times within the last minute
//   - Does not handle future times specially
func formatRelativeTime(unixMs int64) string {
	if unixMs == 0 {
		return "unknown"
	}

	t := time.UnixMilli(unixMs)
	diff := time.Since(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	}
	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	if diff < 30*24*time.Hour {
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	}

	// For older times, show the date
	return t.Format("Jan 2, 2006")
}

// getDefaultSessionUI returns a SessionUI bound to the current personality.
func getDefaultSessionUI() SessionUI {
	return NewSessionUI()
}

// ShowStatus renders a session status using the default UI.
func ShowStatus(view SessionView) {
	getDefaultSessionUI().Status(view)
}

// ShowTransition renders a watch-mode status change using the default UI.
func ShowTransition(view SessionView) {
	getDefaultSessionUI().Transition(view)
}

// ShowSignInResult renders a sign-in outcome using the default UI.
func ShowSignInResult(view SessionView) {
	getDefaultSessionUI().SignInResult(view)
}

// ShowSignedOut renders a sign-out confirmation using the default UI.
func ShowSignedOut(endpoint string) {
	getDefaultSessionUI().SignedOut(endpoint)
}
