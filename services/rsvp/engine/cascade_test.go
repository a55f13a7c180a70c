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
	"errors"
	"fmt"
	"testing"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

func addDependent(t *testing.T, env *testEnv, eventID, userID, name string) *Result {
	t.Helper()
	res, err := env.eng.RequestStatus(context.Background(), Request{
		EventID:     eventID,
		UserID:      userID,
		Type:        attendee.TypeDependent,
		DisplayName: name,
		Status:      attendee.StatusGoing,
	})
	if err != nil {
		t.Fatalf("register dependent %s: %v", name, err)
	}
	return res
}

func dependentsOf(t *testing.T, env *testEnv, eventID, userID string) []*attendee.Attendee {
	t.Helper()
	all, err := env.eng.Attendees(context.Background(), eventID)
	if err != nil {
		t.Fatalf("list attendees: %v", err)
	}
	var out []*attendee.Attendee
	for _, a := range all {
		if a.Type == attendee.TypeDependent && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func TestDependent_RequiresGoingPrimary(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, true)

	// No primary registration at all.
	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID: "evt", UserID: "alice", Type: attendee.TypeDependent,
		DisplayName: "junior", Status: attendee.StatusGoing,
	})
	if !errors.Is(err, ErrPrimaryNotGoing) {
		t.Errorf("error = %v, want ErrPrimaryNotGoing without a primary", err)
	}

	// A primary that exists but is not going is just as ineligible.
	env.request(t, "evt", "alice", attendee.StatusNotGoing)
	_, err = env.eng.RequestStatus(context.Background(), Request{
		EventID: "evt", UserID: "alice", Type: attendee.TypeDependent,
		DisplayName: "junior", Status: attendee.StatusGoing,
	})
	if !errors.Is(err, ErrPrimaryNotGoing) {
		t.Errorf("error = %v, want ErrPrimaryNotGoing for a declined primary", err)
	}
}

func TestDependent_FamilyLimit(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, true)
	env.request(t, "evt", "alice", attendee.StatusGoing)

	var last *Result
	for i := 0; i < DefaultMaxDependents; i++ {
		last = addDependent(t, env, "evt", "alice", fmt.Sprintf("kid-%d", i))
	}

	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID: "evt", UserID: "alice", Type: attendee.TypeDependent,
		DisplayName: "one-too-many", Status: attendee.StatusGoing,
	})
	if !errors.Is(err, ErrFamilyLimitExceeded) {
		t.Errorf("error = %v, want ErrFamilyLimitExceeded at the ceiling", err)
	}

	// Re-admitting an existing dependent does not count against the limit.
	res, err := env.eng.RequestStatus(context.Background(), Request{
		EventID:    "evt",
		UserID:     "alice",
		AttendeeID: last.Attendee.AttendeeID,
		Status:     attendee.StatusGoing,
	})
	if err != nil {
		t.Fatalf("re-admit existing dependent: %v", err)
	}
	if res.Changed {
		t.Error("idempotent dependent re-admit reported a change")
	}
}

func TestDependent_CapacityExempt(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, false)
	env.request(t, "evt", "alice", attendee.StatusGoing) // fills the event

	res := addDependent(t, env, "evt", "alice", "junior")
	if res.Status != attendee.StatusGoing {
		t.Errorf("dependent at a full event = %s, want going", res.Status)
	}

	// Capacity still counts primaries only.
	state, err := env.eng.Capacity(context.Background(), "evt")
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if state.GoingCount != 1 {
		t.Errorf("going count = %d, want 1 (dependents exempt)", state.GoingCount)
	}
	env.checkInvariants(t, "evt")
}

func TestCascade_MirrorsPrimaryCancellation(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, true)
	env.request(t, "evt", "alice", attendee.StatusGoing)
	addDependent(t, env, "evt", "alice", "junior")
	addDependent(t, env, "evt", "alice", "senior")

	env.request(t, "evt", "alice", attendee.StatusNotGoing)

	deps := dependentsOf(t, env, "evt", "alice")
	if len(deps) != 2 {
		t.Fatalf("dependents = %d, want 2", len(deps))
	}
	for _, d := range deps {
		if d.Status != attendee.StatusNotGoing {
			t.Errorf("dependent %s = %s, want not-going", d.DisplayName, d.Status)
		}
		last := d.History[len(d.History)-1]
		if last.ChangedBy != attendee.ChangedByCascade {
			t.Errorf("dependent %s last change by %q, want %q",
				d.DisplayName, last.ChangedBy, attendee.ChangedByCascade)
		}
	}
	env.checkInvariants(t, "evt")
}

func TestCascade_PromotionRemirrorsDependents(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	env.request(t, "evt", "alice", attendee.StatusGoing)
	addDependent(t, env, "evt", "alice", "junior")

	// Alice cancels, re-requests while blocker holds the seat, and queues.
	// The cascade mirrors junior to not-going both times.
	env.request(t, "evt", "alice", attendee.StatusNotGoing)
	env.request(t, "evt", "blocker", attendee.StatusGoing)
	res := env.request(t, "evt", "alice", attendee.StatusGoing)
	if res.Status != attendee.StatusWaitlisted {
		t.Fatalf("alice = %s, want waitlisted behind blocker", res.Status)
	}
	for _, d := range dependentsOf(t, env, "evt", "alice") {
		if d.Status != attendee.StatusNotGoing {
			t.Fatalf("dependent = %s while primary waitlisted, want not-going", d.Status)
		}
	}

	// The blocker leaves; promotion admits alice and the cascade brings the
	// family back.
	env.request(t, "evt", "blocker", attendee.StatusNotGoing)

	if going := env.goingPrimaries(t, "evt"); !going["alice"] {
		t.Fatalf("going = %v, want alice promoted", going)
	}
	for _, d := range dependentsOf(t, env, "evt", "alice") {
		if d.Status != attendee.StatusGoing {
			t.Errorf("dependent = %s after promotion, want going", d.Status)
		}
	}
	env.checkInvariants(t, "evt")
}

func TestFanOut_WaitlistedMirrorsAsNotGoing(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, true)
	env.request(t, "evt", "alice", attendee.StatusGoing)
	addDependent(t, env, "evt", "alice", "junior")

	n, err := env.eng.cascade.FanOut(context.Background(), "evt", "alice", attendee.StatusWaitlisted)
	if err != nil {
		t.Fatalf("fan out: %v", err)
	}
	if n != 1 {
		t.Errorf("written = %d, want 1", n)
	}
	for _, d := range dependentsOf(t, env, "evt", "alice") {
		if d.Status != attendee.StatusNotGoing {
			t.Errorf("dependent = %s, want not-going for a waitlisted primary", d.Status)
		}
	}

	// Repeating the same fan-out writes nothing.
	n, err = env.eng.cascade.FanOut(context.Background(), "evt", "alice", attendee.StatusWaitlisted)
	if err != nil {
		t.Fatalf("repeat fan out: %v", err)
	}
	if n != 0 {
		t.Errorf("repeat written = %d, want 0", n)
	}
}
