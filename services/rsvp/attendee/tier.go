// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attendee

import "strings"

// Tier is a membership level that shifts a user's waitlist placement toward
// the front of the queue. Tiers are owned by the membership subsystem; the
// engine only ever reads them through the MembershipDirectory seam.
type Tier string

const (
	TierVIP     Tier = "vip"
	TierPremium Tier = "premium"
	TierBasic   Tier = "basic"
	TierFree    Tier = "free"
)

// Valid reports whether t is a known membership tier.
func (t Tier) Valid() bool {
	switch t {
	case TierVIP, TierPremium, TierBasic, TierFree:
		return true
	}
	return false
}

// NormalizeTier maps an arbitrary tier string onto a known Tier. Unknown or
// empty values fall back to TierFree, which carries no placement advantage.
func NormalizeTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TierFree
}
