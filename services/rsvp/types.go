// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rsvp

import (
	"time"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/engine"
)

// =============================================================================
// Request Types
// =============================================================================

// StatusRequest is the body for PUT /v1/events/:eventID/rsvp.
//
// A request without AttendeeID addresses the caller's own primary row,
// creating it on first contact. AttendeeID addresses a specific row (a
// dependent, or an explicit primary reference); AttendeeType and DisplayName
// only matter when the row does not exist yet.
type StatusRequest struct {
	// UserID is the account holder making the request.
	UserID string `json:"userId" binding:"required"`

	// AttendeeID addresses an existing registration row. Optional.
	AttendeeID string `json:"attendeeId,omitempty"`

	// AttendeeType selects what to create when the row does not exist.
	// "primary" (default) or "dependent".
	AttendeeType string `json:"attendeeType,omitempty" binding:"omitempty,oneof=primary dependent"`

	// DisplayName names a newly created dependent. Ignored otherwise.
	DisplayName string `json:"displayName,omitempty" binding:"max=200"`

	// Status is the requested settled status: "going" or "not-going".
	// Waitlisted is never requested directly; a full event assigns it.
	Status string `json:"status" binding:"required,oneof=going not-going"`
}

// JoinWaitlistRequest is the body for POST /v1/events/:eventID/waitlist/join.
type JoinWaitlistRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// LeaveWaitlistRequest is the body for POST /v1/events/:eventID/waitlist/leave.
type LeaveWaitlistRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// EventConfigRequest is the body for PUT /v1/events/:eventID/config.
type EventConfigRequest struct {
	// Capacity is the maximum number of going primaries. Null means
	// unlimited; zero is valid and waitlists or rejects every admission.
	Capacity *int `json:"capacity" binding:"omitempty,gte=0"`

	// WaitlistEnabled turns full-capacity admissions into waitlist
	// placements instead of rejections.
	WaitlistEnabled bool `json:"waitlistEnabled"`
}

// =============================================================================
// Response Types
// =============================================================================

// StatusResponse is the settled outcome of an RSVP request. Status may be
// "waitlisted" for a going request against a full event.
type StatusResponse struct {
	AttendeeID string `json:"attendeeId"`

	Status string `json:"status"`

	// WaitlistPosition is set iff Status is "waitlisted".
	WaitlistPosition *int `json:"waitlistPosition,omitempty"`

	// Created reports that this request created the registration row.
	Created bool `json:"created"`

	// Changed is false when the request was an idempotent repeat.
	Changed bool `json:"changed"`
}

// JoinWaitlistResponse carries the assigned tier-adjusted position.
type JoinWaitlistResponse struct {
	Position int `json:"position"`
}

// PositionResponse is the display read of a user's waitlist position.
// Position is null when the user has no registration or is not waitlisted.
type PositionResponse struct {
	Position *int `json:"position"`
}

// RecalculateResponse reports the waitlist size after the manual
// repair sweep.
type RecalculateResponse struct {
	Count int `json:"count"`
}

// WaitlistEntry is one row of the waitlist snapshot, ordered by position.
type WaitlistEntry struct {
	Position    int       `json:"position"`
	AttendeeID  string    `json:"attendeeId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// WaitlistResponse is the full ordered waitlist for one event.
type WaitlistResponse struct {
	EventID string          `json:"eventId"`
	Entries []WaitlistEntry `json:"entries"`
}

// StatusChangeView is one entry of an attendee's status history.
type StatusChangeView struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

// AttendeeResponse is the full registration document with history.
type AttendeeResponse struct {
	AttendeeID       string             `json:"attendeeId"`
	EventID          string             `json:"eventId"`
	UserID           string             `json:"userId"`
	AttendeeType     string             `json:"attendeeType"`
	DisplayName      string             `json:"displayName,omitempty"`
	Status           string             `json:"status"`
	WaitlistPosition *int               `json:"waitlistPosition,omitempty"`
	WaitlistJoinedAt *time.Time         `json:"waitlistJoinedAt,omitempty"`
	PromotedAt       *time.Time         `json:"promotedAt,omitempty"`
	History          []StatusChangeView `json:"history"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// EventConfigResponse is the stored capacity configuration plus the
// advisory occupancy snapshot. GoingCount and HasRoom are display values
// read outside any transaction and may trail in-flight commits.
type EventConfigResponse struct {
	EventID         string    `json:"eventId"`
	Capacity        *int      `json:"capacity"`
	WaitlistEnabled bool      `json:"waitlistEnabled"`
	GoingCount      int       `json:"goingCount"`
	HasRoom         bool      `json:"hasRoom"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PurgeResponse reports how many registration documents an event purge
// removed. The config document is dropped without being counted.
type PurgeResponse struct {
	EventID string `json:"eventId"`
	Removed int    `json:"removed"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /ready.
type ReadyResponse struct {
	// Ready is true if the service is ready to accept requests.
	Ready bool `json:"ready"`

	// StoreOK is true if the document store is open and writable.
	StoreOK bool `json:"store_ok"`

	// CacheOK is true if the position cache is reachable. Always true
	// when no cache is configured; the cache is optional.
	CacheOK bool `json:"cache_ok"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// =============================================================================
// View Builders
// =============================================================================

// NewAttendeeResponse maps the stored document to its wire form.
func NewAttendeeResponse(a *attendee.Attendee) AttendeeResponse {
	resp := AttendeeResponse{
		AttendeeID:       a.AttendeeID,
		EventID:          a.EventID,
		UserID:           a.UserID,
		AttendeeType:     string(a.Type),
		DisplayName:      a.DisplayName,
		Status:           string(a.Status),
		WaitlistPosition: a.WaitlistPosition,
		PromotedAt:       a.PromotedAt,
		History:          make([]StatusChangeView, 0, len(a.History)),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if !a.WaitlistJoinedAt.IsZero() {
		t := a.WaitlistJoinedAt
		resp.WaitlistJoinedAt = &t
	}
	for _, h := range a.History {
		resp.History = append(resp.History, StatusChangeView{
			Status:    string(h.Status),
			ChangedBy: h.ChangedBy,
			ChangedAt: h.ChangedAt,
		})
	}
	return resp
}

// NewStatusResponse maps an engine result to its wire form.
func NewStatusResponse(res *engine.Result) StatusResponse {
	resp := StatusResponse{
		AttendeeID: res.Attendee.AttendeeID,
		Status:     string(res.Status),
		Created:    res.Created,
		Changed:    res.Changed,
	}
	if res.Status == attendee.StatusWaitlisted && res.Position > 0 {
		p := res.Position
		resp.WaitlistPosition = &p
	}
	return resp
}

// NewWaitlistResponse maps the ordered snapshot to its wire form.
func NewWaitlistResponse(eventID string, entries []*attendee.Attendee) WaitlistResponse {
	resp := WaitlistResponse{
		EventID: eventID,
		Entries: make([]WaitlistEntry, 0, len(entries)),
	}
	for _, a := range entries {
		resp.Entries = append(resp.Entries, WaitlistEntry{
			Position:    a.Position(),
			AttendeeID:  a.AttendeeID,
			UserID:      a.UserID,
			DisplayName: a.DisplayName,
			JoinedAt:    a.WaitlistJoinedAt,
		})
	}
	return resp
}
