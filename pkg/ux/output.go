// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders the connect CLI's terminal output. Every helper
// honors the active personality: full and standard get the styled
// rendering, minimal drops the colors, and machine emits stable
// KEY: value lines that scripts can grep.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian brand palette, deep ocean teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorTealOcean   = lipgloss.Color("#157483")
	ColorAbyss       = lipgloss.Color("#0C424E")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Styles holds the shared lipgloss styles.
var Styles = struct {
	Title      lipgloss.Style
	Bold       lipgloss.Style
	Muted      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Highlight  lipgloss.Style
	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon colored by its severity.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Success reports a completed action. Machine mode writes "OK: ..." to
// stdout.
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning reports a recoverable problem. Machine mode writes "WARN: ..."
// to stderr.
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error reports a failure. Machine mode writes "ERROR: ..." to stderr.
func Error(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconError.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Muted prints secondary text. Machine mode drops it: muted lines are
// commentary, and scripts only see the KEY: value contract.
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints content under a styled title inside a rounded border.
func Box(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	fmt.Println(Styles.Box.Width(60).Render(Styles.Title.Render(title) + "\n" + content))
}

// WarningBox prints content inside a warning-colored border.
func WarningBox(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(os.Stderr, "WARN %s: %s\n", title, content)
		return
	}
	fmt.Println(Styles.WarningBox.Width(60).Render(Styles.Warning.Bold(true).Render(title) + "\n" + content))
}

// EndpointLine prints one endpoint history entry. The active endpoint
// gets an arrow marker and highlight; machine mode emits a tab-separated
// marker/endpoint/annotation triple.
func EndpointLine(active bool, endpoint, annotation string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		marker := "-"
		if active {
			marker = "*"
		}
		fmt.Printf("%s\t%s\t%s\n", marker, endpoint, annotation)
	case PersonalityMinimal:
		marker := " "
		if active {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, endpoint)
	default:
		marker := Styles.Muted.Render(string(IconBullet))
		rendered := endpoint
		if active {
			marker = Styles.Success.Render(string(IconArrow))
			rendered = Styles.Highlight.Render(endpoint)
		}
		if annotation != "" {
			fmt.Printf("%s %s %s\n", marker, rendered, Styles.Muted.Render("("+annotation+")"))
			return
		}
		fmt.Printf("%s %s\n", marker, rendered)
	}
}

// Tip prints an optional hint. Suppressed below full personality and when
// tips are turned off.
func Tip(text string) {
	p := GetPersonality()
	if p.Level == PersonalityMachine || p.Level == PersonalityMinimal || !p.ShowTips {
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("tip:"), Styles.Muted.Render(text))
}
