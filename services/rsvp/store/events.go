// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

// GetEventConfig loads an event's capacity config inside txn.
//
// Outputs:
//
//	attendee.EventConfig - The stored config.
//	error - ErrNotFound when the event has no config document.
func GetEventConfig(txn *badger.Txn, eventID string) (attendee.EventConfig, error) {
	var cfg attendee.EventConfig

	item, err := txn.Get(eventKey(eventID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return cfg, fmt.Errorf("event config %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return cfg, fmt.Errorf("get event config %s: %w", eventID, err)
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return cfg, fmt.Errorf("read event config %s: %w", eventID, err)
	}
	if err := json.Unmarshal(val, &cfg); err != nil {
		return cfg, fmt.Errorf("decode event config %s: %w", eventID, err)
	}
	return cfg, nil
}

// PutEventConfig writes an event's capacity config inside txn.
func PutEventConfig(txn *badger.Txn, cfg attendee.EventConfig) error {
	val, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode event config %s: %w", cfg.EventID, err)
	}
	if err := txn.Set(eventKey(cfg.EventID), val); err != nil {
		return fmt.Errorf("put event config %s: %w", cfg.EventID, err)
	}
	return nil
}

// purgeChunk is the number of attendee documents deleted per transaction
// during an event purge. Keeps each transaction well under Badger's size
// limit.
const purgeChunk = 256

// PurgeEvent deletes an event's config and every attendee document.
//
// Description:
//
//	Event deletion cascade-deletes all rows for that event. The purge runs
//	in chunks of purgeChunk documents, one transaction per chunk, so large
//	events cannot exceed transaction size limits. The purge is idempotent
//	and safe to re-run after a partial failure; each chunk is atomic.
//
// Outputs:
//
//	int - Number of attendee documents deleted.
//	error - Non-nil if a chunk fails; already-deleted chunks stay deleted.
func (d *DB) PurgeEvent(ctx context.Context, eventID string) (int, error) {
	deleted := 0

	for {
		var keys [][]byte

		err := d.WithTxn(ctx, func(txn *badger.Txn) error {
			keys = keys[:0]

			opts := badger.DefaultIteratorOptions
			opts.Prefix = attendeeScanPrefix(eventID)
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid() && len(keys) < purgeChunk; it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}

			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return fmt.Errorf("purge attendee %s: %w", k, err)
				}
			}

			if len(keys) < purgeChunk {
				// Final chunk: drop the config and version documents too.
				if err := txn.Delete(eventKey(eventID)); err != nil {
					return fmt.Errorf("purge event config %s: %w", eventID, err)
				}
				if err := txn.Delete(versionKey(eventID)); err != nil {
					return fmt.Errorf("purge event version %s: %w", eventID, err)
				}
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}

		deleted += len(keys)
		if len(keys) < purgeChunk {
			return deleted, nil
		}
	}
}
