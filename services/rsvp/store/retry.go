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
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultMaxAttempts is the engine-wide transaction attempt budget: the
// initial attempt plus exactly one retry. Conflicts surviving the retry are
// surfaced to the caller as retryable.
const DefaultMaxAttempts = 2

// conflictBackoffCeiling bounds the randomized wait before a conflict retry.
const conflictBackoffCeiling = time.Second

// WithOptimisticRetry executes fn up to maxAttempts times, retrying only on
// badger.ErrConflict.
//
// Description:
//
//	This is the one conflict-retry helper shared by every mutating engine
//	operation (join, leave, admit, promote, recalculate, withdraw). fn is
//	expected to open, run, and commit one transaction per call. A conflict
//	triggers a randomized backoff in [0, 1s) before the next attempt, so
//	two colliding writers do not collide again in lockstep. Any error
//	other than a commit conflict aborts immediately and is returned
//	unwrapped. When attempts run out the last conflict is returned wrapped
//	with the operation name; errors.Is(err, badger.ErrConflict) still
//	holds, and the engine maps it onto its retryable error.
//
// Inputs:
//
//	ctx - Cancels the backoff wait between attempts.
//	op - Operation name for error context.
//	maxAttempts - Total attempts including the first. Values < 1 mean 1.
//	fn - The transaction body. Must be safe to re-execute from scratch.
//
// Outputs:
//
//	error - nil on success, the conflict (wrapped) after the last attempt,
//	or fn's own error unchanged.
func WithOptimisticRetry(ctx context.Context, op string, maxAttempts int, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: context cancelled: %w", op, ctxErr)
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(rand.Int63n(int64(conflictBackoffCeiling)))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context cancelled: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("%s: conflict after %d attempts: %w", op, maxAttempts, err)
}
