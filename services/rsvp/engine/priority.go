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

import "github.com/AleutianAI/AleutianGather/services/rsvp/attendee"

// RawPositionNew is the raw position handed to Adjust for a joiner with no
// existing waitlist entry.
const RawPositionNew = 0

// Adjust maps a membership tier and a raw queue position to a tier-adjusted
// one. Raw is the smallest free position the ledger computed for the joiner,
// or RawPositionNew when no raw position exists yet.
//
// All arithmetic is integer division with floor semantics:
//
//	vip:     raw/10, or 1 when raw is RawPositionNew
//	premium: max(1, raw*3/10)
//	basic:   max(1, raw*7/10)
//	free:    raw
//
// The vip rule returns 0 for raw 1..9; the ledger clamps placement to
// position 1, so 0 means "front of the line". Adjust is pure, persists
// nothing, and is recomputed on every placement.
func Adjust(tier attendee.Tier, raw int) int {
	switch tier {
	case attendee.TierVIP:
		if raw == RawPositionNew {
			return 1
		}
		return raw / 10
	case attendee.TierPremium:
		return max(1, raw*3/10)
	case attendee.TierBasic:
		return max(1, raw*7/10)
	default:
		return raw
	}
}
