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
	"sync"
	"time"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a one-line indicator while a validation call is in
// flight. Machine personality gets a single PROGRESS line instead, so the
// line stays greppable for scripts.
type Spinner struct {
	message string

	mu      sync.Mutex
	running bool
	cancel  chan struct{}
	idle    chan struct{}
}

// NewSpinner returns a stopped spinner labelled with message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		cancel:  make(chan struct{}),
		idle:    make(chan struct{}),
	}
}

// Start begins the animation. Starting twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("PROGRESS: %s\n", s.message)
		return
	}

	go s.animate()
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-s.cancel:
			// Erase the animation line before handing the terminal back.
			fmt.Print("\r\033[K")
			close(s.idle)
			return
		case <-ticker.C:
			fmt.Printf("\r%s %s", Styles.Highlight.Render(spinnerFrames[frame]), s.message)
		}
	}
}

// Stop halts the animation and clears its line. Stopping a spinner that
// never started, or stopping twice, is safe.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Machine mode never started the goroutine.
	if GetPersonality().Level == PersonalityMachine {
		return
	}

	close(s.cancel)
	<-s.idle
}

// StopWithError stops the spinner and reports message as an error.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}
