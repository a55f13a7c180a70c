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
	"log/slog"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// WaitlistLedger owns the waitlist ordering invariant: across all waitlisted
// attendees of one event, positions are exactly {1..M} with no gaps and no
// duplicates. Join, Leave, and Recalculate each run as one serializable
// transaction; the transaction primitives place, removeAndCompact, and
// compact are shared with admission and promotion so every mutation path
// restores the invariant before committing.
//
// Positions are recomputed per transaction from the occupied set rather than
// drawn from a monotonic counter, so the numbering never grows past M and
// never needs offline compaction.
type WaitlistLedger struct {
	eng *Engine
}

// Join queues a primary attendee on the event's waitlist.
//
// # Description
//
// The joiner's raw position is the smallest positive integer not currently
// occupied; the membership tier then adjusts it toward the front (see
// Adjust). When the adjusted slot is occupied, every incumbent at that slot
// or beyond shifts back by one, so a priority join costs each displaced
// incumbent exactly one rank and the sequence stays gap-free.
//
// Re-joining while already waitlisted is idempotent: the held position is
// returned unchanged, and the original WaitlistJoinedAt survives any number
// of leave/join round trips.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - eventID: Event whose waitlist to join.
//   - userID: The joining account holder.
//
// # Outputs
//
//   - int: The settled 1-based position.
//   - error: ErrEventNotFound, ErrInvalidStatusTransition when the waitlist
//     is disabled or the user is already going, ErrWaitlistConflict after a
//     lost optimistic race, or a store failure.
func (l *WaitlistLedger) Join(ctx context.Context, eventID, userID string) (int, error) {
	cfg, err := l.eng.eventConfig(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !cfg.WaitlistEnabled {
		return 0, fmt.Errorf("waitlist disabled for event %s: %w", eventID, ErrInvalidStatusTransition)
	}
	tier := l.eng.userTier(ctx, userID)

	var pos int
	var st *Settlement
	err = l.eng.runTxn(ctx, "ledger.Join", eventID, func(txn *badger.Txn) error {
		pos = 0
		st = nil
		now := l.eng.now()

		att, err := store.FindPrimary(txn, eventID, userID)
		if errors.Is(err, store.ErrNotFound) {
			att = attendee.New(eventID, userID, attendee.TypePrimary, now)
		} else if err != nil {
			return err
		}

		if att.Status == attendee.StatusGoing {
			return fmt.Errorf("user %s already admitted to event %s: %w",
				userID, eventID, ErrInvalidStatusTransition)
		}
		if att.IsWaitlisted() {
			pos = att.Position()
			return nil
		}

		p, err := l.place(txn, att, tier, now)
		if err != nil {
			return err
		}
		old := att.Status
		att.Settle(attendee.StatusWaitlisted, userID, now)
		if err := store.PutAttendee(txn, att); err != nil {
			return err
		}

		pos = p
		st = &Settlement{
			EventID:    eventID,
			UserID:     userID,
			AttendeeID: att.AttendeeID,
			Type:       att.Type,
			Old:        old,
			New:        attendee.StatusWaitlisted,
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if st != nil {
		l.eng.metrics.WaitlistJoinsTotal.Add(ctx, 1)
		l.eng.logger.InfoContext(ctx, "waitlist join",
			slog.String("event_id", eventID),
			slog.String("user_id", userID),
			slog.String("tier", string(tier)),
			slog.Int("position", pos))
		l.eng.hooks.Notify(ctx, *st)
	}
	return pos, nil
}

// Leave removes a primary attendee from the waitlist and settles them as
// not-going. The remaining entries are renumbered 1..M by arrival order in
// the same transaction, so the gap closes atomically with the departure.
// Leaving while not waitlisted is a no-op.
func (l *WaitlistLedger) Leave(ctx context.Context, eventID, userID string) error {
	var st *Settlement
	err := l.eng.runTxn(ctx, "ledger.Leave", eventID, func(txn *badger.Txn) error {
		st = nil
		now := l.eng.now()

		att, err := store.FindPrimary(txn, eventID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no registration for user %s on event %s: %w",
				userID, eventID, ErrAttendeeNotFound)
		}
		if err != nil {
			return err
		}
		if !att.IsWaitlisted() {
			return nil
		}

		if err := l.removeAndCompact(txn, att, now); err != nil {
			return err
		}
		att.Settle(attendee.StatusNotGoing, userID, now)
		if err := store.PutAttendee(txn, att); err != nil {
			return err
		}

		st = &Settlement{
			EventID:    eventID,
			UserID:     userID,
			AttendeeID: att.AttendeeID,
			Type:       att.Type,
			Old:        attendee.StatusWaitlisted,
			New:        attendee.StatusNotGoing,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if st != nil {
		l.eng.metrics.WaitlistLeavesTotal.Add(ctx, 1)
		l.eng.logger.InfoContext(ctx, "waitlist leave",
			slog.String("event_id", eventID),
			slog.String("user_id", userID))
		l.eng.hooks.Notify(ctx, *st)
	}
	return nil
}

// Recalculate re-derives every waitlist position for the event from arrival
// order and clears stray waitlist fields from non-waitlisted rows. It is the
// designated repair path for anomalies detected out of band (duplicate or
// missing positions) and is idempotent: running it any number of times on a
// healthy list writes nothing.
//
// Returns the number of waitlisted attendees after the repair.
func (l *WaitlistLedger) Recalculate(ctx context.Context, eventID string) (int, error) {
	var count int
	err := l.eng.runTxn(ctx, "ledger.Recalculate", eventID, func(txn *badger.Txn) error {
		count = 0
		now := l.eng.now()

		n, err := l.compact(txn, eventID, "", now)
		if err != nil {
			return err
		}
		count = n

		all, err := store.ListAttendees(txn, eventID)
		if err != nil {
			return err
		}
		for _, a := range all {
			if a.IsWaitlisted() || a.WaitlistPosition == nil {
				continue
			}
			a.ClearWaitlist()
			a.UpdatedAt = now
			if err := store.PutAttendee(txn, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.eng.metrics.WaitlistRecalculationsTotal.Add(ctx, 1)
	l.eng.logger.InfoContext(ctx, "waitlist recalculated",
		slog.String("event_id", eventID),
		slog.Int("waitlisted", count))
	return count, nil
}

// =============================================================================
// Transaction primitives
// =============================================================================

// place computes the joiner's final position inside the caller's transaction
// and writes any displaced incumbents. The joiner itself is placed but not
// written; the caller settles its status and writes it once.
func (l *WaitlistLedger) place(txn *badger.Txn, att *attendee.Attendee, tier attendee.Tier, now time.Time) (int, error) {
	entries, err := store.ListWaitlisted(txn, att.EventID)
	if err != nil {
		return 0, err
	}

	occupied := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.AttendeeID == att.AttendeeID {
			continue
		}
		occupied[e.Position()] = true
	}

	raw := 1
	for occupied[raw] {
		raw++
	}

	adjusted := Adjust(tier, raw)
	if adjusted < 1 {
		adjusted = 1
	}

	if occupied[adjusted] {
		// The tier landed the joiner on a taken slot: every incumbent
		// from that slot on shifts back one, which keeps the sequence
		// gap-free and costs each displaced entry exactly one rank.
		for _, e := range entries {
			if e.AttendeeID == att.AttendeeID || e.Position() < adjusted {
				continue
			}
			e.PlaceAt(e.Position()+1, now)
			e.UpdatedAt = now
			if err := store.PutAttendee(txn, e); err != nil {
				return 0, err
			}
		}
	}

	att.PlaceAt(adjusted, now)
	return adjusted, nil
}

// removeAndCompact clears the departing attendee's slot and renumbers the
// remaining entries 1..M. The departing attendee is not written; the caller
// settles its new status and writes it in the same transaction.
func (l *WaitlistLedger) removeAndCompact(txn *badger.Txn, att *attendee.Attendee, now time.Time) error {
	att.ClearWaitlist()
	_, err := l.compact(txn, att.EventID, att.AttendeeID, now)
	return err
}

// compact reassigns waitlist positions 1..M in WaitlistJoinedAt order,
// oldest first, skipping the excluded attendee ID. Ordering by arrival time
// rather than by the old numeric position preserves fairness: an attendee
// displaced by priority joins never falls behind someone who arrived later.
// Entries already holding their target position are left unwritten.
func (l *WaitlistLedger) compact(txn *badger.Txn, eventID, exclude string, now time.Time) (int, error) {
	entries, err := store.ListWaitlisted(txn, eventID)
	if err != nil {
		return 0, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.AttendeeID == exclude {
			continue
		}
		kept = append(kept, e)
	}
	sortByArrival(kept)

	for i, e := range kept {
		want := i + 1
		if e.Position() == want {
			continue
		}
		e.PlaceAt(want, now)
		e.UpdatedAt = now
		if err := store.PutAttendee(txn, e); err != nil {
			return 0, err
		}
	}
	return len(kept), nil
}

// sortByArrival orders entries by first waitlist entry time, oldest first,
// with AttendeeID as a deterministic tiebreak for identical timestamps.
func sortByArrival(entries []*attendee.Attendee) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WaitlistJoinedAt.Equal(entries[j].WaitlistJoinedAt) {
			return entries[i].AttendeeID < entries[j].AttendeeID
		}
		return entries[i].WaitlistJoinedAt.Before(entries[j].WaitlistJoinedAt)
	})
}
