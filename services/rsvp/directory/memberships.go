// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package directory

import (
	"context"
	"sync"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

// Memberships resolves user membership tiers from a static table seeded at
// startup. Users without an entry are free tier. It satisfies
// engine.MembershipDirectory.
//
// The table stands in for the membership subsystem, which lives outside this
// service; deployments that run one swap in a client hitting it instead.
// Tier lookups only influence waitlist ordering, so a deployment running on
// the static table degrades to arrival-order fairness for unknown users and
// nothing else.
//
// Thread Safety: Safe for concurrent use.
type Memberships struct {
	mu    sync.RWMutex
	tiers map[string]attendee.Tier
}

// NewMemberships builds the directory from a userID -> tier name seed.
// Unknown tier names normalize to free.
func NewMemberships(seed map[string]string) *Memberships {
	tiers := make(map[string]attendee.Tier, len(seed))
	for userID, name := range seed {
		tiers[userID] = attendee.NormalizeTier(name)
	}
	return &Memberships{tiers: tiers}
}

// UserTier returns the user's membership tier, free when unlisted.
func (m *Memberships) UserTier(_ context.Context, userID string) (attendee.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tier, ok := m.tiers[userID]; ok {
		return tier, nil
	}
	return attendee.TierFree, nil
}

// SetTier updates one user's tier at runtime.
func (m *Memberships) SetTier(userID string, tier attendee.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !tier.Valid() {
		tier = attendee.TierFree
	}
	m.tiers[userID] = tier
}
