// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// Notification is one member-facing message about an RSVP outcome.
//
// The service produces notifications; delivery (push, email, SMS) is a
// deployment concern behind the Notifier interface. The payload carries
// enough for any channel to render a message without calling back into
// the service.
type Notification struct {
	// Kind categorizes the outcome. Values:
	//   - "waitlist.promoted": freed capacity admitted this member
	//   - "waitlist.placed": a going request landed on the waitlist
	Kind string

	// UserID is the member to notify.
	UserID string

	// EventID is the event the outcome belongs to.
	EventID string

	// AttendeeID is the registration the outcome settled.
	AttendeeID string

	// Position is the assigned waitlist position for "waitlist.placed";
	// zero otherwise.
	Position int

	// OccurredAt is when the outcome settled (UTC).
	OccurredAt time.Time
}

// Notifier delivers RSVP outcomes to members.
//
// Implementations must be safe for concurrent use. Send is invoked from
// the settlement hook bus after commits; a slow channel must buffer
// internally rather than block the caller. Delivery is best-effort: the
// admission decision is already durable when Send runs, and a failed send
// never rolls it back.
//
// The default NopNotifier discards all notifications. Hosted deployments
// plug in their push or email gateways here.
type Notifier interface {
	// Send delivers one notification.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - n: The notification to deliver
	//
	// Returns:
	//   - error: nil on success or best-effort acceptance
	Send(ctx context.Context, n Notification) error
}

// NopNotifier is the default notifier for open source.
//
// It discards all notifications.
//
// Thread-safe: This implementation has no mutable state.
type NopNotifier struct{}

// Send discards the notification.
func (n *NopNotifier) Send(ctx context.Context, note Notification) error {
	return nil
}

// Compile-time interface compliance check.
var _ Notifier = (*NopNotifier)(nil)
