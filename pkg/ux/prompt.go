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
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrNonInteractive is returned when a prompt is requested without a terminal.
var ErrNonInteractive = errors.New("interactive prompt requires a terminal")

// PromptOption represents a single choice in a selection prompt
type PromptOption struct {
	// Label is the text shown to the user
	Label string

	// Description is optional secondary text shown below the label
	Description string

	// Value is returned when this option is selected
	Value string

	// Recommended marks the option the prompt suggests by default
	Recommended bool
}

// StorageCheck describes one failed precondition for secure credential storage.
type StorageCheck struct {
	// Name identifies the check (e.g. "memlock", "keyring")
	Name string

	// Detail explains what was found
	Detail string

	// Severity is HIGH, MEDIUM, or LOW
	Severity string
}

// InsecureStorePromptOptions configures the insecure-storage confirmation prompt.
//
// Shown when the credential vault cannot lock memory or otherwise falls back
// to a weaker storage mode, before any token is written.
type InsecureStorePromptOptions struct {
	// VaultPath is where the token would be stored
	VaultPath string

	// Reason summarizes why secure storage is unavailable
	Reason string

	// ShowSessionOnly offers keeping the token in memory for this run only
	ShowSessionOnly bool

	// Checks lists the individual failed preconditions
	Checks []StorageCheck
}

// StoreAction is the user's decision for an insecure-storage prompt
type StoreAction string

const (
	// StoreActionAbort cancels the sign-in without storing anything
	StoreActionAbort StoreAction = "abort"

	// StoreActionProceed stores the token despite the weaker protection
	StoreActionProceed StoreAction = "proceed"

	// StoreActionSession keeps the token in memory for this process only
	StoreActionSession StoreAction = "session"

	// StoreActionShowMore displays the failed checks and re-prompts
	StoreActionShowMore StoreAction = "show"
)

// aleutianTheme returns the huh form theme in the Aleutian palette.
func aleutianTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = t.Focused.Title.Foreground(ColorTealBright).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorSlate)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorTealBright).SetString("→ ")
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorTealBright)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(ColorTealPrimary)
	t.Focused.BlurredButton = t.Focused.BlurredButton.Background(ColorAbyss)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorTealBright)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(ColorTealPrimary)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)

	t.Blurred.Title = t.Blurred.Title.Foreground(ColorTealOcean)
	t.Blurred.Description = t.Blurred.Description.Foreground(ColorSlate)

	return t
}

// truncate shortens a string to maxLen, appending "..." when truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}

// SelectOption presents a themed selection prompt and returns the chosen value.
//
// # Description
//
// Renders a huh select with the Aleutian theme. Recommended options are
// annotated and sorted first by the caller. Returns ErrNonInteractive when
// stdout is not a terminal or personality is machine.
//
// # Inputs
//
//   - title: Prompt title shown above the options.
//   - description: Optional secondary text. Empty to omit.
//   - options: The choices. Must be non-empty.
//
// # Outputs
//
//   - string: The Value of the selected option.
//   - error: ErrNonInteractive, a validation error, or the user aborting.
func SelectOption(title, description string, options []PromptOption) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options to select from")
	}
	if !IsInteractive() {
		return "", ErrNonInteractive
	}

	huhOptions := make([]huh.Option[string], 0, len(options))
	for _, opt := range options {
		label := opt.Label
		if opt.Recommended {
			label = fmt.Sprintf("%s %s", label, Styles.Muted.Render("(recommended)"))
		}
		if opt.Description != "" {
			label = fmt.Sprintf("%s %s", label, Styles.Muted.Render("- "+truncate(opt.Description, 40)))
		}
		huhOptions = append(huhOptions, huh.NewOption(label, opt.Value))
	}

	var selected string
	field := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Value(&selected)
	if description != "" {
		field = field.Description(description)
	}

	form := huh.NewForm(huh.NewGroup(field)).WithTheme(aleutianTheme())
	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

// Confirm presents a themed yes/no prompt.
//
// Returns ErrNonInteractive when no terminal is attached; callers decide
// whether that means proceed or abort.
func Confirm(title, description string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNonInteractive
	}

	var confirmed bool
	field := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)
	if description != "" {
		field = field.Description(description)
	}

	form := huh.NewForm(huh.NewGroup(field)).WithTheme(aleutianTheme())
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// PromptInsecureStore asks the user how to handle credential storage when
// secure storage preconditions failed.
//
// # Description
//
// Presents the abort/proceed choices, optionally a session-only choice, and
// a "show details" choice that lists the failed checks and re-prompts. The
// token itself is never shown.
//
// # Inputs
//
//   - opts: Prompt configuration. Reason should be a one-line summary.
//
// # Outputs
//
//   - StoreAction: The decision. Never StoreActionShowMore.
//   - error: ErrNonInteractive or the user aborting the form. Callers should
//     treat an error as StoreActionAbort.
func PromptInsecureStore(opts InsecureStorePromptOptions) (StoreAction, error) {
	if !IsInteractive() {
		return StoreActionAbort, ErrNonInteractive
	}

	title := "Secure credential storage is unavailable"
	description := opts.Reason
	if opts.VaultPath != "" {
		description = fmt.Sprintf("%s\nToken would be stored at %s", description, opts.VaultPath)
	}

	for {
		options := []huh.Option[string]{
			huh.NewOption("Abort sign-in", string(StoreActionAbort)),
			huh.NewOption("Store anyway (weaker protection)", string(StoreActionProceed)),
		}
		if opts.ShowSessionOnly {
			options = append(options,
				huh.NewOption("Keep in memory for this session only", string(StoreActionSession)))
		}
		if len(opts.Checks) > 0 {
			options = append(options,
				huh.NewOption(fmt.Sprintf("Show details (%d checks failed)", len(opts.Checks)), string(StoreActionShowMore)))
		}

		var selected string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Description(description).
				Options(options...).
				Value(&selected),
		)).WithTheme(aleutianTheme())

		if err := form.Run(); err != nil {
			return StoreActionAbort, err
		}

		action := StoreAction(selected)
		if action != StoreActionShowMore {
			return action, nil
		}

		renderStorageChecks(opts.Checks)
	}
}

// renderStorageChecks prints the failed storage preconditions.
func renderStorageChecks(checks []StorageCheck) {
	var content strings.Builder
	for i, check := range checks {
		if i > 0 {
			content.WriteString("\n")
		}
		severity := Styles.Muted.Render(check.Severity)
		switch check.Severity {
		case "HIGH":
			severity = Styles.Error.Render(check.Severity)
		case "MEDIUM":
			severity = Styles.Warning.Render(check.Severity)
		}
		content.WriteString(fmt.Sprintf("%s %s: %s", severity, Styles.Bold.Render(check.Name), check.Detail))
	}
	WarningBox("Storage checks", content.String())
}

// PromptInput presents a themed single-line input prompt.
//
// Returns ErrNonInteractive when no terminal is attached. The placeholder
// is shown inside the empty field; an empty submission returns "".
func PromptInput(title, description, placeholder string) (string, error) {
	if !IsInteractive() {
		return "", ErrNonInteractive
	}

	var value string
	field := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value)
	if description != "" {
		field = field.Description(description)
	}

	form := huh.NewForm(huh.NewGroup(field)).WithTheme(aleutianTheme())
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// PromptSecret presents a themed input prompt that never echoes the typed
// value. Used for access tokens; the value is returned trimmed and is
// never written to the screen or logs.
func PromptSecret(title, description string) (string, error) {
	if !IsInteractive() {
		return "", ErrNonInteractive
	}

	var value string
	field := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value)
	if description != "" {
		field = field.Description(description)
	}

	form := huh.NewForm(huh.NewGroup(field)).WithTheme(aleutianTheme())
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
