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
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// PromotionTrigger fills freed capacity from the waitlist. It runs as a
// synchronous reaction to capacity-freeing settlements, not on a schedule:
// there is no background poller to race with.
type PromotionTrigger struct {
	eng *Engine
}

// Run promotes waitlist heads while the event has room.
//
// # Description
//
// Each iteration is one serializable transaction: re-read the capacity
// state, pop the attendee at position 1, re-verify the room still exists
// under the same isolation, settle them as going with PromotedAt stamped,
// and renumber the remainder. At most one attendee moves per transaction,
// so a sweep of a long waitlist never holds one giant transaction open.
//
// Losing an optimistic race to a concurrent admission ends the sweep
// without error: the candidate stays waitlisted and the next
// capacity-freeing settlement tries again. The loop is bounded because
// every successful iteration shrinks the waitlist by one.
//
// # Outputs
//
//   - int: The number of attendees promoted.
//   - error: Store failures. A lost race and an unknown event both return
//     (n, nil); neither is an error condition for the sweep.
func (p *PromotionTrigger) Run(ctx context.Context, eventID string) (int, error) {
	cfg, err := p.eng.eventConfig(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		// The event was deleted with settlements still in flight;
		// there is nothing to promote into.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	promoted := 0
	for {
		var st *Settlement
		err := p.eng.runTxn(ctx, "promotion.Promote", eventID, func(txn *badger.Txn) error {
			st = nil
			now := p.eng.now()

			state, err := p.eng.oracle.State(txn, cfg)
			if err != nil {
				return err
			}
			if !state.HasRoom {
				return nil
			}

			head, err := waitlistHead(txn, eventID)
			if err != nil {
				return err
			}
			if head == nil {
				return nil
			}

			old := head.Status
			if err := p.eng.ledger.removeAndCompact(txn, head, now); err != nil {
				return err
			}
			head.MarkPromoted(now)
			head.Settle(attendee.StatusGoing, attendee.ChangedByPromotion, now)
			if err := store.PutAttendee(txn, head); err != nil {
				return err
			}

			st = &Settlement{
				EventID:    eventID,
				UserID:     head.UserID,
				AttendeeID: head.AttendeeID,
				Type:       head.Type,
				Old:        old,
				New:        attendee.StatusGoing,
				Promoted:   true,
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrWaitlistConflict) {
				p.eng.metrics.PromotionRacesLostTotal.Add(ctx, 1)
				p.eng.logger.WarnContext(ctx, "promotion race lost; waiting for next capacity event",
					slog.String("event_id", eventID),
					slog.Int("promoted", promoted))
				return promoted, nil
			}
			return promoted, err
		}
		if st == nil {
			return promoted, nil
		}

		promoted++
		p.eng.metrics.PromotionsTotal.Add(ctx, 1)
		p.eng.logger.InfoContext(ctx, "promoted from waitlist",
			slog.String("event_id", eventID),
			slog.String("user_id", st.UserID),
			slog.String("attendee_id", st.AttendeeID))
		p.eng.hooks.Notify(ctx, *st)
	}
}

// waitlistHead returns the waitlisted attendee holding the lowest position,
// or nil when the waitlist is empty. On a healthy list this is position 1;
// scanning for the minimum keeps promotion working even mid-repair.
func waitlistHead(txn *badger.Txn, eventID string) (*attendee.Attendee, error) {
	entries, err := store.ListWaitlisted(txn, eventID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	head := entries[0]
	for _, e := range entries[1:] {
		if e.Position() < head.Position() {
			head = e
		}
	}
	return head, nil
}
