// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package directory implements the engine's lookup collaborators: event
// capacity configuration backed by the attendee store, and membership tiers
// backed by a static table. Both are narrow interfaces onto subsystems the
// engine does not own.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/engine"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// Events resolves and administers per-event capacity configuration. It
// satisfies engine.EventDirectory.
type Events struct {
	db *store.DB
}

// NewEvents creates an event directory over the given store.
func NewEvents(db *store.DB) (*Events, error) {
	if db == nil {
		return nil, fmt.Errorf("events directory: store is required")
	}
	return &Events{db: db}, nil
}

// EventConfig returns the event's capacity configuration. Unknown events
// report engine.ErrEventNotFound.
func (e *Events) EventConfig(ctx context.Context, eventID string) (attendee.EventConfig, error) {
	var cfg attendee.EventConfig
	err := e.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		cfg, err = store.GetEventConfig(txn, eventID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return attendee.EventConfig{}, fmt.Errorf("event %s: %w", eventID, engine.ErrEventNotFound)
	}
	if err != nil {
		return attendee.EventConfig{}, fmt.Errorf("event config: %w", err)
	}
	return cfg, nil
}

// Upsert validates and writes an event's capacity configuration, stamping
// UpdatedAt. Raising capacity does not promote anyone by itself; callers
// that raise capacity should follow with a promotion sweep.
func (e *Events) Upsert(ctx context.Context, cfg attendee.EventConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("event config: %w", err)
	}
	cfg.UpdatedAt = time.Now()
	err := e.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return store.PutEventConfig(txn, cfg)
	})
	if err != nil {
		return fmt.Errorf("upsert event config: %w", err)
	}
	return nil
}

// Purge deletes every record for the event: attendees, configuration, and
// the version fence. Returns the number of attendee rows removed.
func (e *Events) Purge(ctx context.Context, eventID string) (int, error) {
	return e.db.PurgeEvent(ctx, eventID)
}
