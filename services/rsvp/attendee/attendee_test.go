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

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Status Tests
// =============================================================================

func TestStatus_Valid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusGoing, true},
		{StatusNotGoing, true},
		{StatusWaitlisted, true},
		{Status("maybe"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatus_Requestable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusGoing, true},
		{StatusNotGoing, true},
		{StatusPending, false},
		{StatusWaitlisted, false},
		{Status("maybe"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Requestable(); got != tt.want {
				t.Errorf("Status(%q).Requestable() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tier Tests
// =============================================================================

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
	}{
		{"vip", TierVIP},
		{"VIP", TierVIP},
		{" Premium ", TierPremium},
		{"basic", TierBasic},
		{"free", TierFree},
		{"", TierFree},
		{"platinum", TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeTier(tt.in); got != tt.want {
				t.Errorf("NormalizeTier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Attendee Lifecycle Tests
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := New("evt-1", "user-1", TypePrimary, now)

	if a.AttendeeID == "" {
		t.Error("New() did not assign an AttendeeID")
	}
	if a.Status != StatusPending {
		t.Errorf("Status = %q, want %q", a.Status, StatusPending)
	}
	if a.WaitlistPosition != nil {
		t.Error("new attendee must not hold a waitlist position")
	}
	if !a.CreatedAt.Equal(now) || !a.UpdatedAt.Equal(now) {
		t.Error("CreatedAt/UpdatedAt not stamped with now")
	}
	if len(a.History) != 0 {
		t.Errorf("History = %d entries, want 0", len(a.History))
	}
}

func TestSettle_AppendsHistory(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := New("evt-1", "user-1", TypePrimary, now)

	a.Settle(StatusGoing, "user-1", now.Add(time.Minute))
	a.Settle(StatusNotGoing, "user-1", now.Add(2*time.Minute))

	if a.Status != StatusNotGoing {
		t.Errorf("Status = %q, want %q", a.Status, StatusNotGoing)
	}
	if len(a.History) != 2 {
		t.Fatalf("History = %d entries, want 2", len(a.History))
	}
	if a.History[0].Status != StatusGoing || a.History[1].Status != StatusNotGoing {
		t.Error("history entries out of order")
	}
	if a.History[1].ChangedBy != "user-1" {
		t.Errorf("ChangedBy = %q, want user-1", a.History[1].ChangedBy)
	}
}

func TestPlaceAt_PreservesJoinedAtAcrossRejoin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := New("evt-1", "user-1", TypePrimary, now)

	a.PlaceAt(3, now)
	if a.Position() != 3 {
		t.Fatalf("Position() = %d, want 3", a.Position())
	}
	if !a.WaitlistJoinedAt.Equal(now) {
		t.Fatal("first placement must stamp WaitlistJoinedAt")
	}

	a.ClearWaitlist()
	if a.Position() != 0 {
		t.Errorf("Position() after clear = %d, want 0", a.Position())
	}
	if a.WaitlistJoinedAt.IsZero() {
		t.Error("ClearWaitlist must retain WaitlistJoinedAt")
	}

	later := now.Add(time.Hour)
	a.PlaceAt(1, later)
	if !a.WaitlistJoinedAt.Equal(now) {
		t.Error("re-join must keep the original WaitlistJoinedAt")
	}
}

func TestClone_IsDeep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := New("evt-1", "user-1", TypePrimary, now)
	a.PlaceAt(2, now)
	a.Settle(StatusWaitlisted, "user-1", now)
	a.MarkPromoted(now)

	cp := a.Clone()
	*cp.WaitlistPosition = 9
	*cp.PromotedAt = now.Add(time.Hour)
	cp.History[0].ChangedBy = "someone-else"

	if *a.WaitlistPosition != 2 {
		t.Error("clone shares WaitlistPosition with original")
	}
	if !a.PromotedAt.Equal(now) {
		t.Error("clone shares PromotedAt with original")
	}
	if a.History[0].ChangedBy != "user-1" {
		t.Error("clone shares History with original")
	}
}

// =============================================================================
// EventConfig Tests
// =============================================================================

func TestEventConfig_HasRoom(t *testing.T) {
	two := 2
	zero := 0
	tests := []struct {
		name  string
		cfg   EventConfig
		going int
		want  bool
	}{
		{"unlimited", EventConfig{EventID: "e"}, 1000, true},
		{"below capacity", EventConfig{EventID: "e", Capacity: &two}, 1, true},
		{"at capacity", EventConfig{EventID: "e", Capacity: &two}, 2, false},
		{"zero capacity", EventConfig{EventID: "e", Capacity: &zero}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.HasRoom(tt.going); got != tt.want {
				t.Errorf("HasRoom(%d) = %v, want %v", tt.going, got, tt.want)
			}
		})
	}
}

func TestEventConfig_Validate(t *testing.T) {
	neg := -1
	ok := EventConfig{EventID: "evt-1", WaitlistEnabled: true}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	missing := EventConfig{}
	if err := missing.Validate(); err == nil {
		t.Error("Validate() accepted a config without EventID")
	}

	bad := EventConfig{EventID: "evt-1", Capacity: &neg}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted a negative capacity")
	}

	unsafe := EventConfig{EventID: "evt:1"}
	if err := unsafe.Validate(); err == nil {
		t.Error("Validate() accepted an EventID containing the key separator")
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "evt-summer-gala", false},
		{"uuid", "a1b2c3d4-e5f6-7890-abcd-ef0123456789", false},
		{"single char", "e", false},
		{"dots and underscores", "team_a.2026", false},
		{"max length", strings.Repeat("a", 64), false},

		{"empty", "", true},
		{"key separator", "evt:1", true},
		{"path separator", "evt/1", true},
		{"leading dot", ".evt", true},
		{"leading hyphen", "-evt", true},
		{"whitespace", "evt 1", true},
		{"control byte", "evt\x001", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("event id", tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
