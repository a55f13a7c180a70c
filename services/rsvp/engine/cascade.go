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

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// CascadeEngine keeps dependents in lockstep with their primary. It gates
// dependent admission (preAdmit) and mirrors a primary's committed status
// change onto every dependent in one batch transaction (FanOut).
//
// Dependents are exempt from capacity and never enter the waitlist: families
// are not split by a full event. A primary's waitlisted status therefore
// mirrors onto dependents as not-going.
type CascadeEngine struct {
	eng           *Engine
	maxDependents int
}

// preAdmit validates a dependent admission inside the caller's transaction.
// The primary must currently be going, and the dependent count for this
// (event, user) pair must be under the ceiling. The count excludes selfID so
// re-admitting an existing dependent never trips the limit.
func (ce *CascadeEngine) preAdmit(txn *badger.Txn, eventID, userID, selfID string) error {
	primary, err := store.FindPrimary(txn, eventID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no primary registration for user %s on event %s: %w",
			userID, eventID, ErrPrimaryNotGoing)
	}
	if err != nil {
		return err
	}
	if primary.Status != attendee.StatusGoing {
		return fmt.Errorf("primary for user %s is %s: %w",
			userID, primary.Status, ErrPrimaryNotGoing)
	}

	deps, err := store.ListDependents(txn, eventID, userID)
	if err != nil {
		return err
	}
	count := 0
	for _, d := range deps {
		if d.AttendeeID == selfID {
			continue
		}
		count++
	}
	if count >= ce.maxDependents {
		return fmt.Errorf("user %s already has %d dependents on event %s: %w",
			userID, count, eventID, ErrFamilyLimitExceeded)
	}
	return nil
}

// FanOut mirrors a primary's settled status onto its dependents in one batch
// transaction. A primary settling as waitlisted mirrors as not-going, since
// dependents never hold waitlist slots. Dependents already carrying the
// target status are left unwritten, which makes repeated fan-outs of the
// same settlement harmless.
//
// Returns the number of dependents written. Each mirrored change is
// published on the settlement bus so audit observers see the full family,
// while the bus's own filters keep dependents from re-triggering cascade or
// promotion.
func (ce *CascadeEngine) FanOut(ctx context.Context, eventID, userID string, settled attendee.Status) (int, error) {
	target := settled
	if target == attendee.StatusWaitlisted {
		target = attendee.StatusNotGoing
	}

	var changed []Settlement
	err := ce.eng.runTxn(ctx, "cascade.FanOut", eventID, func(txn *badger.Txn) error {
		changed = changed[:0]
		now := ce.eng.now()

		deps, err := store.ListDependents(txn, eventID, userID)
		if err != nil {
			return err
		}
		for _, d := range deps {
			if d.Status == target {
				continue
			}
			old := d.Status
			d.Settle(target, attendee.ChangedByCascade, now)
			if err := store.PutAttendee(txn, d); err != nil {
				return err
			}
			changed = append(changed, Settlement{
				EventID:    eventID,
				UserID:     userID,
				AttendeeID: d.AttendeeID,
				Type:       d.Type,
				Old:        old,
				New:        target,
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(changed) > 0 {
		ce.eng.metrics.CascadeWritesTotal.Add(ctx, int64(len(changed)))
		ce.eng.logger.InfoContext(ctx, "dependents mirrored",
			slog.String("event_id", eventID),
			slog.String("user_id", userID),
			slog.String("status", string(target)),
			slog.Int("dependents", len(changed)))
	}
	for _, s := range changed {
		ce.eng.hooks.Notify(ctx, s)
	}
	return len(changed), nil
}
