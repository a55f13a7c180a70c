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
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/AleutianAI/AleutianGather/pkg/extensions"
	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/engine"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// recordingAuditLogger captures audit events for assertions.
type recordingAuditLogger struct {
	mu      sync.Mutex
	events  []extensions.AuditEvent
	flushed bool
}

func (r *recordingAuditLogger) Log(_ context.Context, event extensions.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditLogger) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = true
	return nil
}

func (r *recordingAuditLogger) types() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]int, len(r.events))
	for _, e := range r.events {
		seen[e.EventType]++
	}
	return seen
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []extensions.Notification
}

func (r *recordingNotifier) Send(_ context.Context, n extensions.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) byKind(kind string) []extensions.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []extensions.Notification
	for _, n := range r.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func newObservedService(t *testing.T, opts extensions.ServiceOptions) *Service {
	t.Helper()

	cfg := DefaultServiceConfig()
	cfg.Store = store.InMemoryConfig()

	svc, err := NewService(cfg, opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestService_AuditTrail(t *testing.T) {
	ctx := context.Background()
	audit := &recordingAuditLogger{}

	cfg := DefaultServiceConfig()
	cfg.Store = store.InMemoryConfig()
	svc, err := NewService(cfg, extensions.DefaultOptions().WithAudit(audit))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.SetEventConfig(ctx, "evt-audit", intPtr(1), true); err != nil {
		t.Fatalf("SetEventConfig: %v", err)
	}

	first, err := svc.RequestStatus(ctx, engine.Request{
		EventID: "evt-audit", UserID: "user-1", Status: attendee.StatusGoing,
	})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := svc.RequestStatus(ctx, engine.Request{
		EventID: "evt-audit", UserID: "user-2", Status: attendee.StatusGoing,
	}); err != nil {
		t.Fatalf("waitlist: %v", err)
	}
	if err := svc.Withdraw(ctx, "evt-audit", first.Attendee.AttendeeID, "user-1"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	seen := audit.types()
	for _, want := range []string{"event.config", "rsvp.settle", "waitlist.join", "rsvp.withdraw", "waitlist.promote"} {
		if seen[want] == 0 {
			t.Errorf("expected an audit event of type %q, saw %v", want, seen)
		}
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !audit.flushed {
		t.Error("expected Close to flush the audit trail")
	}
}

func TestService_NotifiesPlacementAndPromotion(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc := newObservedService(t, extensions.DefaultOptions().WithNotifier(notifier))

	if _, err := svc.SetEventConfig(ctx, "evt-note", intPtr(1), true); err != nil {
		t.Fatalf("SetEventConfig: %v", err)
	}
	first, err := svc.RequestStatus(ctx, engine.Request{
		EventID: "evt-note", UserID: "user-1", Status: attendee.StatusGoing,
	})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := svc.RequestStatus(ctx, engine.Request{
		EventID: "evt-note", UserID: "user-2", Status: attendee.StatusGoing,
	}); err != nil {
		t.Fatalf("waitlist: %v", err)
	}

	placed := notifier.byKind("waitlist.placed")
	if len(placed) != 1 {
		t.Fatalf("expected 1 placement notification, got %d", len(placed))
	}
	if placed[0].UserID != "user-2" {
		t.Errorf("expected placement for user-2, got %q", placed[0].UserID)
	}
	if placed[0].Position != 1 {
		t.Errorf("expected placement position 1, got %d", placed[0].Position)
	}

	if err := svc.Withdraw(ctx, "evt-note", first.Attendee.AttendeeID, "user-1"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	promoted := notifier.byKind("waitlist.promoted")
	if len(promoted) != 1 {
		t.Fatalf("expected 1 promotion notification, got %d", len(promoted))
	}
	if promoted[0].UserID != "user-2" {
		t.Errorf("expected promotion for user-2, got %q", promoted[0].UserID)
	}
	if promoted[0].EventID != "evt-note" {
		t.Errorf("expected promotion for evt-note, got %q", promoted[0].EventID)
	}
}

func TestService_PositionCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := DefaultServiceConfig()
	cfg.Store = store.InMemoryConfig()
	cfg.RedisAddr = mr.Addr()

	svc, err := NewService(cfg, extensions.DefaultOptions())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	if _, err := svc.SetEventConfig(ctx, "evt-cache", intPtr(0), true); err != nil {
		t.Fatalf("SetEventConfig: %v", err)
	}
	if _, err := svc.JoinWaitlist(ctx, "evt-cache", "user-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// First read fills the cache, second is served from it.
	for i := 0; i < 2; i++ {
		pos, err := svc.WaitlistPosition(ctx, "evt-cache", "user-1")
		if err != nil {
			t.Fatalf("position read %d: %v", i+1, err)
		}
		if pos == nil || *pos != 1 {
			t.Fatalf("position read %d: expected 1, got %v", i+1, pos)
		}
	}

	// Leaving settles a new state and invalidates, so the next read sees
	// the absence rather than the cached position.
	if err := svc.LeaveWaitlist(ctx, "evt-cache", "user-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	pos, err := svc.WaitlistPosition(ctx, "evt-cache", "user-1")
	if err != nil {
		t.Fatalf("position after leave: %v", err)
	}
	if pos != nil {
		t.Errorf("expected nil position after leave, got %d", *pos)
	}
}

func TestService_ReadyReportsCacheOutage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := DefaultServiceConfig()
	cfg.Store = store.InMemoryConfig()
	cfg.RedisAddr = mr.Addr()

	svc, err := NewService(cfg, extensions.DefaultOptions())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	storeOK, cacheOK := svc.Ready(ctx)
	if !storeOK || !cacheOK {
		t.Fatalf("expected both probes healthy, got store=%v cache=%v", storeOK, cacheOK)
	}

	mr.Close()
	storeOK, cacheOK = svc.Ready(ctx)
	if !storeOK {
		t.Error("store probe should stay healthy")
	}
	if cacheOK {
		t.Error("cache probe should fail after the backend went away")
	}
}

func TestNewService_RejectsBadEngineConfig(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Store = store.InMemoryConfig()
	cfg.MaxDependents = -1

	if _, err := NewService(cfg, extensions.DefaultOptions()); err == nil {
		t.Fatal("expected an error for negative MaxDependents")
	}
}
