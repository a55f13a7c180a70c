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
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

// GetAttendee loads one attendee document inside txn.
//
// Outputs:
//
//	*attendee.Attendee - The document, freshly unmarshalled.
//	error - ErrNotFound when the key does not exist.
func GetAttendee(txn *badger.Txn, eventID, attendeeID string) (*attendee.Attendee, error) {
	item, err := txn.Get(attendeeKey(eventID, attendeeID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("attendee %s/%s: %w", eventID, attendeeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attendee %s/%s: %w", eventID, attendeeID, err)
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read attendee %s/%s: %w", eventID, attendeeID, err)
	}

	var a attendee.Attendee
	if err := json.Unmarshal(val, &a); err != nil {
		return nil, fmt.Errorf("decode attendee %s/%s: %w", eventID, attendeeID, err)
	}
	return &a, nil
}

// PutAttendee writes one attendee document inside txn.
func PutAttendee(txn *badger.Txn, a *attendee.Attendee) error {
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attendee %s/%s: %w", a.EventID, a.AttendeeID, err)
	}
	if err := txn.Set(attendeeKey(a.EventID, a.AttendeeID), val); err != nil {
		return fmt.Errorf("put attendee %s/%s: %w", a.EventID, a.AttendeeID, err)
	}
	return nil
}

// DeleteAttendee removes one attendee document inside txn. Deleting a missing
// document is a no-op.
func DeleteAttendee(txn *badger.Txn, eventID, attendeeID string) error {
	if err := txn.Delete(attendeeKey(eventID, attendeeID)); err != nil {
		return fmt.Errorf("delete attendee %s/%s: %w", eventID, attendeeID, err)
	}
	return nil
}

// ListAttendees loads every attendee document of one event inside txn, in
// key order. The engine filters and sorts; the store only scans.
func ListAttendees(txn *badger.Txn, eventID string) ([]*attendee.Attendee, error) {
	prefix := attendeeScanPrefix(eventID)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*attendee.Attendee
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read attendee %s: %w", item.Key(), err)
		}
		var a attendee.Attendee
		if err := json.Unmarshal(val, &a); err != nil {
			return nil, fmt.Errorf("decode attendee %s: %w", item.Key(), err)
		}
		out = append(out, &a)
	}
	return out, nil
}

// ListWaitlisted returns the event's attendees with status waitlisted,
// unsorted.
func ListWaitlisted(txn *badger.Txn, eventID string) ([]*attendee.Attendee, error) {
	all, err := ListAttendees(txn, eventID)
	if err != nil {
		return nil, err
	}
	var out []*attendee.Attendee
	for _, a := range all {
		if a.IsWaitlisted() {
			out = append(out, a)
		}
	}
	return out, nil
}

// FindPrimary returns the primary attendee row for (event, user), or
// ErrNotFound when the user has no row yet.
func FindPrimary(txn *badger.Txn, eventID, userID string) (*attendee.Attendee, error) {
	all, err := ListAttendees(txn, eventID)
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.Type == attendee.TypePrimary && a.UserID == userID {
			return a, nil
		}
	}
	return nil, fmt.Errorf("primary for %s/%s: %w", eventID, userID, ErrNotFound)
}

// ListDependents returns the dependents registered under (event, user).
func ListDependents(txn *badger.Txn, eventID, userID string) ([]*attendee.Attendee, error) {
	all, err := ListAttendees(txn, eventID)
	if err != nil {
		return nil, err
	}
	var out []*attendee.Attendee
	for _, a := range all {
		if a.Type == attendee.TypeDependent && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// BumpEventVersion read-modify-writes the event's mutation version and
// returns the new value.
//
// Description:
//
//	Badger records read conflicts per key, including reads of keys that do
//	not exist yet, but a prefix scan over an empty range reads nothing.
//	Every transaction that mutates an event's attendee set bumps this key
//	so that two concurrent mutators always overlap on it: the first commit
//	wins, the second gets badger.ErrConflict and goes through the retry
//	policy. Read-only display transactions never touch it.
func BumpEventVersion(txn *badger.Txn, eventID string) (uint64, error) {
	current, err := EventVersion(txn, eventID)
	if err != nil {
		return 0, err
	}

	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := txn.Set(versionKey(eventID), buf); err != nil {
		return 0, fmt.Errorf("bump event version %s: %w", eventID, err)
	}
	return next, nil
}

// EventVersion reads the event's mutation version; zero when the event has
// never been mutated.
func EventVersion(txn *badger.Txn, eventID string) (uint64, error) {
	item, err := txn.Get(versionKey(eventID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get event version %s: %w", eventID, err)
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, fmt.Errorf("read event version %s: %w", eventID, err)
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("event version %s: malformed value of %d bytes", eventID, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}
