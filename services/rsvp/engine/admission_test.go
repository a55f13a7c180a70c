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
	"testing"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

func TestRequestStatus_AdmitsUnderCapacity(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 2, false)

	res := env.request(t, "evt", "alice", attendee.StatusGoing)
	if res.Status != attendee.StatusGoing {
		t.Errorf("status = %s, want going", res.Status)
	}
	if !res.Created || !res.Changed {
		t.Errorf("created/changed = %v/%v, want true/true", res.Created, res.Changed)
	}
	if len(res.Attendee.History) != 1 || res.Attendee.History[0].ChangedBy != "alice" {
		t.Errorf("history = %+v, want one entry by alice", res.Attendee.History)
	}
	env.checkInvariants(t, "evt")
}

func TestRequestStatus_WaitlistsWhenFull(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	env.request(t, "evt", "alice", attendee.StatusGoing)

	res := env.request(t, "evt", "bob", attendee.StatusGoing)
	if res.Status != attendee.StatusWaitlisted {
		t.Errorf("status = %s, want waitlisted", res.Status)
	}
	if res.Position != 1 {
		t.Errorf("position = %d, want 1", res.Position)
	}
	env.checkInvariants(t, "evt")
}

func TestRequestStatus_RejectsWhenNoWaitlist(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, false)

	env.request(t, "evt", "alice", attendee.StatusGoing)

	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID: "evt", UserID: "bob", Status: attendee.StatusGoing,
	})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("error = %v, want ErrCapacityExceeded", err)
	}

	// The rejected user must leave no record behind.
	if _, ok := env.goingPrimaries(t, "evt")["bob"]; ok {
		t.Error("rejected user was admitted")
	}
	all, err := env.eng.Attendees(context.Background(), "evt")
	if err != nil {
		t.Fatalf("list attendees: %v", err)
	}
	for _, a := range all {
		if a.UserID == "bob" {
			t.Errorf("rejected user left a %s record", a.Status)
		}
	}
}

func TestRequestStatus_IdempotentRepeats(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, false)

	first := env.request(t, "evt", "alice", attendee.StatusGoing)
	again := env.request(t, "evt", "alice", attendee.StatusGoing)
	if again.Changed {
		t.Error("repeated going request reported a change")
	}
	if len(again.Attendee.History) != len(first.Attendee.History) {
		t.Errorf("history grew from %d to %d on an idempotent repeat",
			len(first.Attendee.History), len(again.Attendee.History))
	}

	env.request(t, "evt", "alice", attendee.StatusNotGoing)
	again = env.request(t, "evt", "alice", attendee.StatusNotGoing)
	if again.Changed {
		t.Error("repeated not-going request reported a change")
	}
}

func TestRequestStatus_WaitlistedKeepsSlotWhenFull(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	env.request(t, "evt", "alice", attendee.StatusGoing)
	env.request(t, "evt", "bob", attendee.StatusGoing) // waitlisted 1

	res := env.request(t, "evt", "bob", attendee.StatusGoing)
	if res.Status != attendee.StatusWaitlisted || res.Position != 1 {
		t.Errorf("retry while full = %s@%d, want waitlisted@1", res.Status, res.Position)
	}
	if res.Changed {
		t.Error("retry while full reported a change")
	}
}

func TestRequestStatus_WaitlistedAdmittedAfterCapacityRaise(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	env.request(t, "evt", "alice", attendee.StatusGoing)
	env.request(t, "evt", "bob", attendee.StatusGoing)   // waitlisted 1
	env.request(t, "evt", "carol", attendee.StatusGoing) // waitlisted 2

	env.addEvent("evt", 3, true)

	res := env.request(t, "evt", "bob", attendee.StatusGoing)
	if res.Status != attendee.StatusGoing {
		t.Errorf("status after raise = %s, want going", res.Status)
	}
	if !res.Changed {
		t.Error("admission after raise reported no change")
	}
	if res.Attendee.WaitlistPosition != nil {
		t.Errorf("admitted attendee still holds position %d", res.Position)
	}

	// The remaining entry closes the gap.
	pos := env.positions(t, "evt")
	if len(pos) != 1 || pos["carol"] != 1 {
		t.Errorf("positions = %v, want carol@1", pos)
	}
	env.checkInvariants(t, "evt")
}

func TestRequestStatus_DeclineReleasesSeat(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, false)

	env.request(t, "evt", "alice", attendee.StatusGoing)
	res := env.request(t, "evt", "alice", attendee.StatusNotGoing)
	if res.Status != attendee.StatusNotGoing || !res.Changed {
		t.Errorf("decline = %s changed=%v, want not-going changed=true", res.Status, res.Changed)
	}

	res = env.request(t, "evt", "bob", attendee.StatusGoing)
	if res.Status != attendee.StatusGoing {
		t.Errorf("bob after freed seat = %s, want going", res.Status)
	}
}

func TestRequestStatus_FirstContactNotGoing(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, false)

	res := env.request(t, "evt", "alice", attendee.StatusNotGoing)
	if res.Status != attendee.StatusNotGoing || !res.Created {
		t.Errorf("first decline = %s created=%v, want not-going created=true", res.Status, res.Created)
	}
}

func TestRequestStatus_Validation(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, true)

	tests := []struct {
		name    string
		req     Request
		wantErr error // nil means any error is acceptable
	}{
		{"missing event", Request{UserID: "u", Status: attendee.StatusGoing}, nil},
		{"missing user", Request{EventID: "evt", Status: attendee.StatusGoing}, nil},
		{"bad type", Request{EventID: "evt", UserID: "u", Type: "gremlin", Status: attendee.StatusGoing}, nil},
		{"request pending", Request{EventID: "evt", UserID: "u", Status: attendee.StatusPending}, ErrInvalidStatusTransition},
		{"request waitlisted", Request{EventID: "evt", UserID: "u", Status: attendee.StatusWaitlisted}, ErrInvalidStatusTransition},
		{"empty status", Request{EventID: "evt", UserID: "u"}, ErrInvalidStatusTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.eng.RequestStatus(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestStatus_UnknownEvent(t *testing.T) {
	env := newTestEngine(t)

	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID: "ghost", UserID: "alice", Status: attendee.StatusGoing,
	})
	if !errors.Is(err, ErrEventNotFound) {
		t.Errorf("error = %v, want ErrEventNotFound", err)
	}
}

func TestRequestStatus_AttendeeIDOwnership(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, false)

	res := env.request(t, "evt", "alice", attendee.StatusGoing)

	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID:    "evt",
		UserID:     "mallory",
		AttendeeID: res.Attendee.AttendeeID,
		Status:     attendee.StatusNotGoing,
	})
	if !errors.Is(err, ErrAttendeeNotFound) {
		t.Errorf("error = %v, want ErrAttendeeNotFound for foreign attendee ID", err)
	}

	// The rightful owner can address the same row.
	got, err := env.eng.RequestStatus(context.Background(), Request{
		EventID:    "evt",
		UserID:     "alice",
		AttendeeID: res.Attendee.AttendeeID,
		Status:     attendee.StatusNotGoing,
	})
	if err != nil {
		t.Fatalf("owner request: %v", err)
	}
	if got.Status != attendee.StatusNotGoing {
		t.Errorf("status = %s, want not-going", got.Status)
	}
}

func TestRequestStatus_UnknownAttendeeID(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 5, false)

	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID:    "evt",
		UserID:     "alice",
		AttendeeID: "no-such-row",
		Status:     attendee.StatusGoing,
	})
	if !errors.Is(err, ErrAttendeeNotFound) {
		t.Errorf("error = %v, want ErrAttendeeNotFound", err)
	}
}

// =============================================================================
// Withdraw
// =============================================================================

func TestWithdraw_PrimaryRemovesFamilyAndPromotes(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	res := env.request(t, "evt", "alice", attendee.StatusGoing)
	_, err := env.eng.RequestStatus(context.Background(), Request{
		EventID:     "evt",
		UserID:      "alice",
		Type:        attendee.TypeDependent,
		DisplayName: "junior",
		Status:      attendee.StatusGoing,
	})
	if err != nil {
		t.Fatalf("register dependent: %v", err)
	}
	env.request(t, "evt", "bob", attendee.StatusGoing) // waitlisted 1

	if err := env.eng.Withdraw(context.Background(), "evt", res.Attendee.AttendeeID, "alice"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	all, err := env.eng.Attendees(context.Background(), "evt")
	if err != nil {
		t.Fatalf("list attendees: %v", err)
	}
	for _, a := range all {
		if a.UserID == "alice" {
			t.Errorf("withdrawn family left a %s %s record", a.Type, a.Status)
		}
	}

	// The freed seat went to the waitlist head.
	if going := env.goingPrimaries(t, "evt"); !going["bob"] {
		t.Errorf("going = %v, want bob promoted", going)
	}
	if pos := env.positions(t, "evt"); len(pos) != 0 {
		t.Errorf("waitlist = %v, want empty", pos)
	}
	env.checkInvariants(t, "evt")
}

func TestWithdraw_WaitlistedCompactsWithoutPromotion(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	env.request(t, "evt", "alice", attendee.StatusGoing)
	bob := env.request(t, "evt", "bob", attendee.StatusGoing) // waitlisted 1
	env.request(t, "evt", "carol", attendee.StatusGoing)      // waitlisted 2

	if err := env.eng.Withdraw(context.Background(), "evt", bob.Attendee.AttendeeID, "bob"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	pos := env.positions(t, "evt")
	if len(pos) != 1 || pos["carol"] != 1 {
		t.Errorf("positions = %v, want carol@1", pos)
	}
	if going := env.goingPrimaries(t, "evt"); len(going) != 1 || !going["alice"] {
		t.Errorf("going = %v, want alice only", going)
	}
	env.checkInvariants(t, "evt")
}

func TestWithdraw_NotFound(t *testing.T) {
	env := newTestEngine(t)
	env.addEvent("evt", 1, true)

	err := env.eng.Withdraw(context.Background(), "evt", "no-such-row", "admin")
	if !errors.Is(err, ErrAttendeeNotFound) {
		t.Errorf("error = %v, want ErrAttendeeNotFound", err)
	}
}
