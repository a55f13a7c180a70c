// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

// Settlement describes one committed status change. It is published after the
// owning transaction commits, never from inside it, so listeners observe only
// durable state.
type Settlement struct {
	EventID    string          `json:"event_id"`
	UserID     string          `json:"user_id"`
	AttendeeID string          `json:"attendee_id"`
	Type       attendee.Type   `json:"attendee_type"`
	Old        attendee.Status `json:"old_status"`
	New        attendee.Status `json:"new_status"`

	// Promoted marks a transition performed by the promotion sweep rather
	// than by the attendee themselves.
	Promoted bool `json:"promoted,omitempty"`

	// Removed marks a withdrawal: the attendee document was deleted and
	// New is empty.
	Removed bool `json:"removed,omitempty"`
}

// FreesCapacity reports whether this settlement released a seat that the
// promotion sweep should try to fill. Only primaries hold seats; a primary
// frees one by leaving going for any other state or by being removed while
// going.
func (s Settlement) FreesCapacity() bool {
	if s.Type != attendee.TypePrimary || s.Old != attendee.StatusGoing {
		return false
	}
	return s.Removed || s.New != attendee.StatusGoing
}

// MirrorsToDependents reports whether this settlement must fan out to the
// primary's dependents. Removals are handled inline by withdrawal and do not
// fan out.
func (s Settlement) MirrorsToDependents() bool {
	return s.Type == attendee.TypePrimary && !s.Removed && s.Old != s.New
}

// Listener receives settlements in commit order. Listeners must not block for
// long; dispatch is synchronous on the committing goroutine.
type Listener func(ctx context.Context, s Settlement)

// Hooks is the post-commit settlement bus. The engine registers its own
// cascade and promotion listeners at construction; callers may register
// additional observers (audit, metrics) before serving traffic.
//
// Thread Safety: Register and Notify are safe for concurrent use.
type Hooks struct {
	mu        sync.Mutex
	listeners []Listener
	queue     []Settlement
	draining  bool
}

// NewHooks creates an empty settlement bus.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Register appends a listener. Each settlement is delivered to listeners in
// registration order.
func (h *Hooks) Register(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Notify delivers settlements to every listener in commit order.
//
// Dispatch is queued rather than recursive: a listener that commits its own
// transactions (promotion, cascade) publishes follow-up settlements, and
// those are delivered after the settlement that caused them, never before.
// Observers therefore always see a cause before its effects. When a dispatch
// is already draining the queue on another goroutine, Notify enqueues and
// returns; the drainer delivers the settlement.
func (h *Hooks) Notify(ctx context.Context, s Settlement) {
	h.mu.Lock()
	h.queue = append(h.queue, s)
	if h.draining {
		h.mu.Unlock()
		return
	}
	h.draining = true
	for len(h.queue) > 0 {
		next := h.queue[0]
		h.queue = h.queue[1:]
		listeners := make([]Listener, len(h.listeners))
		copy(listeners, h.listeners)
		h.mu.Unlock()

		for _, l := range listeners {
			l(ctx, next)
		}
		h.mu.Lock()
	}
	h.draining = false
	h.mu.Unlock()
}
