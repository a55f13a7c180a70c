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

import "fmt"

// Key layout. One event's documents share a prefix so that an event is one
// contiguous key range:
//
//	att:<eventID>:<attendeeID>  attendee document (JSON)
//	evt:<eventID>               event capacity config (JSON)
//	ver:<eventID>               event mutation version (uint64, big endian)
const (
	attendeePrefix = "att:"
	eventPrefix    = "evt:"
	versionPrefix  = "ver:"
)

func attendeeKey(eventID, attendeeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", attendeePrefix, eventID, attendeeID))
}

func attendeeScanPrefix(eventID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", attendeePrefix, eventID))
}

func eventKey(eventID string) []byte {
	return []byte(fmt.Sprintf("%s%s", eventPrefix, eventID))
}

func versionKey(eventID string) []byte {
	return []byte(fmt.Sprintf("%s%s", versionPrefix, eventID))
}
