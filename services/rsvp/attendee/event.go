// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attendee

import "time"

// EventConfig is the capacity configuration of one event as seen by the
// admission engine. It is owned by the events subsystem and consumed here
// through the EventDirectory seam.
type EventConfig struct {
	EventID string `json:"event_id" validate:"required,safeid"`

	// Capacity is the maximum count of primaries with status going.
	// Nil means unlimited. Zero is a valid capacity: every primary
	// admission either waitlists or is rejected.
	Capacity *int `json:"capacity" validate:"omitempty,gte=0"`

	// WaitlistEnabled turns a full-capacity admission into a waitlist
	// placement instead of a rejection.
	WaitlistEnabled bool `json:"waitlist_enabled"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Unlimited reports whether the event has no capacity bound.
func (c EventConfig) Unlimited() bool {
	return c.Capacity == nil
}

// HasRoom reports whether one more primary admission fits under the
// configured capacity given the current going count.
func (c EventConfig) HasRoom(goingCount int) bool {
	return c.Capacity == nil || goingCount < *c.Capacity
}

// Validate checks the config against its validate tags.
func (c EventConfig) Validate() error {
	return Validate(c)
}
