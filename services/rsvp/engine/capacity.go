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
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// CapacityState is one reading of an event's admission headroom.
type CapacityState struct {
	// Capacity is the configured maximum of going primaries; nil means
	// unlimited.
	Capacity *int `json:"capacity"`

	// GoingCount is the number of primary attendees currently going.
	// Dependents are exempt from capacity and excluded here.
	GoingCount int `json:"going_count"`

	// HasRoom reports whether one more primary may be admitted.
	HasRoom bool `json:"has_room"`
}

// CapacityOracle reads event capacity against the current going count.
//
// A reading taken via State inside a write transaction is authoritative for
// that transaction: the store's isolation guarantees the count cannot change
// under the commit. A reading taken via Advisory is for display only and
// must never gate a commit.
type CapacityOracle struct {
	db     *store.DB
	events EventDirectory
}

// State counts going primaries inside the caller's transaction and compares
// the count to the configured capacity. The transaction's read tracking
// makes a later commit fail if a concurrent writer changed the attendee set.
func (o *CapacityOracle) State(txn *badger.Txn, cfg attendee.EventConfig) (CapacityState, error) {
	all, err := store.ListAttendees(txn, cfg.EventID)
	if err != nil {
		return CapacityState{}, fmt.Errorf("capacity state for event %s: %w", cfg.EventID, err)
	}

	going := 0
	for _, a := range all {
		if a.Type == attendee.TypePrimary && a.Status == attendee.StatusGoing {
			going++
		}
	}

	return CapacityState{
		Capacity:   cfg.Capacity,
		GoingCount: going,
		HasRoom:    cfg.HasRoom(going),
	}, nil
}

// Advisory returns a display-only capacity snapshot from its own read
// transaction. It may be stale the moment it returns.
func (o *CapacityOracle) Advisory(ctx context.Context, eventID string) (CapacityState, error) {
	cfg, err := o.events.EventConfig(ctx, eventID)
	if err != nil {
		return CapacityState{}, err
	}

	var state CapacityState
	err = o.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		state, err = o.State(txn, cfg)
		return err
	})
	if err != nil {
		return CapacityState{}, err
	}
	return state, nil
}
