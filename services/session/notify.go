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

import "sync"

// subscriber pairs a registration id with its callback so removal stays
// idempotent even after the slice has been compacted.
type subscriber struct {
	id int
	fn func(AuthStatus)
}

// notifier fans committed statuses out to subscribers in registration
// order. Delivery is synchronous on the committing goroutine. Dedupe by
// deep equality lives here, so every subscriber sees each distinct status
// exactly once.
type notifier struct {
	mu     sync.Mutex
	subs   []subscriber
	nextID int
	last   *AuthStatus
}

// subscribe registers fn and returns its removal func. Calling the
// removal func more than once is safe.
func (n *notifier) subscribe(fn func(AuthStatus)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs = append(n.subs, subscriber{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// publish delivers status unless it deep-equals the previously published
// one. Callbacks run outside the notifier lock, so a callback may
// subscribe or unsubscribe; re-entrancy rules beyond that are documented
// on Manager.Subscribe.
func (n *notifier) publish(status AuthStatus) {
	n.mu.Lock()
	if n.last != nil && n.last.Equal(status) {
		n.mu.Unlock()
		return
	}
	n.last = &status
	fns := make([]func(AuthStatus), len(n.subs))
	for i, s := range n.subs {
		fns[i] = s.fn
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}
