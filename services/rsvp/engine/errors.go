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

import "errors"

// -----------------------------------------------------------------------------
// Error taxonomy
// -----------------------------------------------------------------------------
//
// Business-rule violations are terminal and carry a specific reason; they are
// never downgraded or swallowed. ErrWaitlistConflict is the one retryable
// error: it surfaces after the local retry budget is exhausted and the caller
// decides whether to resubmit.

var (
	// ErrCapacityExceeded rejects a primary "going" request when the event
	// is full and has no waitlist.
	ErrCapacityExceeded = errors.New("event capacity exceeded")

	// ErrPrimaryNotGoing gates dependent admission: dependents can only be
	// created or admitted while their primary's settled status is going.
	ErrPrimaryNotGoing = errors.New("primary attendee is not going")

	// ErrFamilyLimitExceeded rejects a dependent when the primary already
	// has the configured maximum of dependents.
	ErrFamilyLimitExceeded = errors.New("dependent limit reached for primary")

	// ErrWaitlistConflict reports an optimistic-concurrency conflict that
	// survived the local retry. Retryable: resubmitting the identical
	// request is safe.
	ErrWaitlistConflict = errors.New("waitlist transaction conflict")

	// ErrAttendeeNotFound reports a missing attendee document.
	ErrAttendeeNotFound = errors.New("attendee not found")

	// ErrInvalidStatusTransition rejects a request for a status that cannot
	// be asked for directly (pending, waitlisted) or an operation the
	// attendee's current state does not allow.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrEventNotFound reports an event with no capacity configuration.
	ErrEventNotFound = errors.New("event not found")
)
