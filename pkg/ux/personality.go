// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel selects how much visual output the CLI produces.
type PersonalityLevel string

const (
	// PersonalityFull renders boxes, colors, and tips.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard renders colors and icons without the extras.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal renders icons and plain text.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine renders stable KEY: value lines for scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality is the process-wide output configuration.
type Personality struct {
	Level PersonalityLevel

	// ShowTips gates the optional hint lines under full personality.
	ShowTips bool
}

var (
	personalityMu sync.RWMutex
	personality   = Personality{Level: PersonalityFull, ShowTips: true}
)

// GetPersonality returns the active personality.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return personality
}

// SetPersonality replaces the active personality.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	personality = p
}

// SetPersonalityLevel changes the level and keeps the other settings.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	personality.Level = level
}

// ParsePersonalityLevel maps a flag or env value onto a level. Unknown
// values fall back to standard rather than erroring: output verbosity is
// not worth failing a command over.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(s) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the startup personality: the ALEUTIAN_PERSONALITY
// variable wins, then piped output forces machine, then a terminal gets
// the full experience.
func InitPersonality() {
	if env := os.Getenv("ALEUTIAN_PERSONALITY"); env != "" {
		SetPersonalityLevel(ParsePersonalityLevel(env))
		return
	}
	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityFull)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// IsInteractive reports whether prompting the user makes sense: stdout is
// a terminal and the output contract is not machine-parsed.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && isTerminal()
}
