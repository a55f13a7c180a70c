// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package attendee defines the domain types for the RSVP admission and
// waitlist engine: attendees, RSVP statuses, membership tiers, and per-event
// capacity configuration.
//
// An Attendee is one document per (event, person). Primary attendees are the
// RSVP'ing account holders; dependent attendees are family members registered
// under a primary and always mirror the primary's settled status. All
// mutation goes through the engine package; this package only carries state
// and the small invariant-preserving helpers the engine builds on.
package attendee

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Status
// =============================================================================

// Status is the RSVP status of an attendee.
type Status string

const (
	// StatusPending is the initial state of a newly created attendee that
	// has not settled a decision yet.
	StatusPending Status = "pending"

	// StatusGoing marks an admitted attendee. Admitted primaries consume
	// event capacity; dependents do not.
	StatusGoing Status = "going"

	// StatusNotGoing marks a declined or cancelled attendee.
	StatusNotGoing Status = "not-going"

	// StatusWaitlisted marks an attendee queued for admission. Waitlisted
	// attendees hold a 1-based position; see WaitlistPosition.
	StatusWaitlisted Status = "waitlisted"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusGoing, StatusNotGoing, StatusWaitlisted:
		return true
	}
	return false
}

// Requestable reports whether s may be requested directly by a caller.
// Waitlisted is an admission outcome and pending an initial state; neither
// can be asked for.
func (s Status) Requestable() bool {
	return s == StatusGoing || s == StatusNotGoing
}

// =============================================================================
// Type
// =============================================================================

// Type distinguishes account holders from their family members.
type Type string

const (
	// TypePrimary is the RSVP'ing account holder for an event.
	TypePrimary Type = "primary"

	// TypeDependent is a family member registered under a primary. A
	// dependent carries the primary's UserID and is identified by its own
	// AttendeeID.
	TypeDependent Type = "dependent"
)

// Valid reports whether t is a known attendee type.
func (t Type) Valid() bool {
	return t == TypePrimary || t == TypeDependent
}

// =============================================================================
// Actors
// =============================================================================

// Reserved ChangedBy actors for engine-driven transitions. Caller-driven
// transitions record the acting user ID instead.
const (
	// ChangedByCascade marks history entries written by the dependent
	// fan-out after a primary settles.
	ChangedByCascade = "cascade"

	// ChangedByPromotion marks history entries written when freed capacity
	// promotes the head of the waitlist.
	ChangedByPromotion = "promotion"
)

// StatusChange is one entry of an attendee's append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// =============================================================================
// Attendee
// =============================================================================

// Attendee is one RSVP document per (event, person).
//
// # Description
//
// Attendee carries the settled RSVP state plus the waitlist bookkeeping the
// engine's invariants are stated over:
//
//   - WaitlistPosition is non-nil iff Status == StatusWaitlisted. Across all
//     waitlisted attendees of one event the positions are exactly {1..M}.
//   - WaitlistJoinedAt is set on the first waitlist entry and preserved
//     across re-joins; leave/recalculate order by it so re-joining never
//     costs an attendee their arrival slot.
//   - History is append-only; every settled transition adds one entry.
//
// # Thread Safety
//
// Attendee is a plain document. Concurrent access is serialized by the
// store's transactions, never by the struct itself.
type Attendee struct {
	AttendeeID string `json:"attendee_id"`
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	Type       Type   `json:"attendee_type"`

	// DisplayName names a dependent family member. Empty for primaries.
	DisplayName string `json:"display_name,omitempty"`

	Status Status `json:"rsvp_status"`

	// WaitlistPosition is the 1-based queue rank. Non-nil iff Status is
	// StatusWaitlisted.
	WaitlistPosition *int `json:"waitlist_position,omitempty"`

	// WaitlistJoinedAt is the first time this attendee entered the
	// waitlist. Zero until the first join; retained after leaving so a
	// re-join keeps the original fairness tiebreak.
	WaitlistJoinedAt time.Time `json:"waitlist_joined_at"`

	// PromotedAt is set when freed capacity promotes this attendee from
	// the waitlist to going.
	PromotedAt *time.Time `json:"promoted_at,omitempty"`

	History []StatusChange `json:"status_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an attendee in StatusPending with a fresh AttendeeID.
func New(eventID, userID string, typ Type, now time.Time) *Attendee {
	return &Attendee{
		AttendeeID: uuid.NewString(),
		EventID:    eventID,
		UserID:     userID,
		Type:       typ,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Settle transitions the attendee to status and appends a history entry.
// It does not touch waitlist bookkeeping; see PlaceAt and ClearWaitlist.
func (a *Attendee) Settle(status Status, changedBy string, now time.Time) {
	a.Status = status
	a.UpdatedAt = now
	a.History = append(a.History, StatusChange{
		Status:    status,
		ChangedBy: changedBy,
		ChangedAt: now,
	})
}

// IsWaitlisted reports whether the attendee currently holds a waitlist slot.
func (a *Attendee) IsWaitlisted() bool {
	return a.Status == StatusWaitlisted
}

// Position returns the waitlist position, or 0 when the attendee holds none.
func (a *Attendee) Position() int {
	if a.WaitlistPosition == nil {
		return 0
	}
	return *a.WaitlistPosition
}

// PlaceAt assigns a waitlist position. The first placement stamps
// WaitlistJoinedAt; re-joins keep the original timestamp.
func (a *Attendee) PlaceAt(pos int, now time.Time) {
	p := pos
	a.WaitlistPosition = &p
	if a.WaitlistJoinedAt.IsZero() {
		a.WaitlistJoinedAt = now
	}
}

// ClearWaitlist drops the position. WaitlistJoinedAt is retained so a later
// re-join preserves arrival-order fairness.
func (a *Attendee) ClearWaitlist() {
	a.WaitlistPosition = nil
}

// MarkPromoted records the promotion instant.
func (a *Attendee) MarkPromoted(now time.Time) {
	t := now
	a.PromotedAt = &t
}

// Clone returns a deep copy. Engine results hand out clones so callers can
// never mutate a document that a later transaction will re-read.
func (a *Attendee) Clone() *Attendee {
	cp := *a
	if a.WaitlistPosition != nil {
		p := *a.WaitlistPosition
		cp.WaitlistPosition = &p
	}
	if a.PromotedAt != nil {
		t := *a.PromotedAt
		cp.PromotedAt = &t
	}
	cp.History = make([]StatusChange, len(a.History))
	copy(cp.History, a.History)
	return &cp
}
