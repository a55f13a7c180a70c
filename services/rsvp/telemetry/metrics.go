// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the Gather RSVP service.
//
// Description:
//
//	Provides counters and histograms for admissions, waitlist churn,
//	promotions, dependent fan-out, and transaction health. All metrics use
//	the "rsvp_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Admission Metrics ---

	// AdmissionsTotal counts settled status requests by decision
	// (admitted, waitlisted, declined, unchanged).
	AdmissionsTotal metric.Int64Counter

	// --- Waitlist Metrics ---

	// WaitlistJoinsTotal counts successful waitlist joins.
	WaitlistJoinsTotal metric.Int64Counter

	// WaitlistLeavesTotal counts successful waitlist departures.
	WaitlistLeavesTotal metric.Int64Counter

	// WaitlistRecalculationsTotal counts administrative position repairs.
	WaitlistRecalculationsTotal metric.Int64Counter

	// --- Promotion Metrics ---

	// PromotionsTotal counts attendees promoted from waitlist to going.
	PromotionsTotal metric.Int64Counter

	// PromotionRacesLostTotal counts promotion sweeps abandoned after
	// losing an optimistic race to a concurrent admission.
	PromotionRacesLostTotal metric.Int64Counter

	// --- Cascade Metrics ---

	// CascadeWritesTotal counts dependent rows rewritten by fan-out.
	CascadeWritesTotal metric.Int64Counter

	// --- Transaction Metrics ---

	// TxnConflictsTotal counts conflicts that survived the local retry,
	// by operation.
	TxnConflictsTotal metric.Int64Counter

	// TxnDuration records mutating transaction duration in seconds, by
	// operation, including retries.
	TxnDuration metric.Float64Histogram

	// --- Cache Metrics ---

	// PositionCacheHitsTotal counts position lookups served from cache.
	PositionCacheHitsTotal metric.Int64Counter

	// PositionCacheMissesTotal counts position lookups that fell through
	// to the store, including cache backend failures.
	PositionCacheMissesTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if metric registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- Admission Metrics ---
	m.AdmissionsTotal, err = meter.Int64Counter(
		"rsvp_admissions_total",
		metric.WithDescription("Settled status requests by decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create admissions_total: %w", err)
	}

	// --- Waitlist Metrics ---
	m.WaitlistJoinsTotal, err = meter.Int64Counter(
		"rsvp_waitlist_joins_total",
		metric.WithDescription("Successful waitlist joins"),
		metric.WithUnit("{join}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create waitlist_joins_total: %w", err)
	}

	m.WaitlistLeavesTotal, err = meter.Int64Counter(
		"rsvp_waitlist_leaves_total",
		metric.WithDescription("Successful waitlist departures"),
		metric.WithUnit("{leave}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create waitlist_leaves_total: %w", err)
	}

	m.WaitlistRecalculationsTotal, err = meter.Int64Counter(
		"rsvp_waitlist_recalculations_total",
		metric.WithDescription("Administrative waitlist position repairs"),
		metric.WithUnit("{repair}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create waitlist_recalculations_total: %w", err)
	}

	// --- Promotion Metrics ---
	m.PromotionsTotal, err = meter.Int64Counter(
		"rsvp_promotions_total",
		metric.WithDescription("Attendees promoted from waitlist to going"),
		metric.WithUnit("{promotion}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create promotions_total: %w", err)
	}

	m.PromotionRacesLostTotal, err = meter.Int64Counter(
		"rsvp_promotion_races_lost_total",
		metric.WithDescription("Promotion sweeps abandoned after a lost optimistic race"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create promotion_races_lost_total: %w", err)
	}

	// --- Cascade Metrics ---
	m.CascadeWritesTotal, err = meter.Int64Counter(
		"rsvp_cascade_writes_total",
		metric.WithDescription("Dependent rows rewritten by status fan-out"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cascade_writes_total: %w", err)
	}

	// --- Transaction Metrics ---
	m.TxnConflictsTotal, err = meter.Int64Counter(
		"rsvp_txn_conflicts_total",
		metric.WithDescription("Transaction conflicts that survived the local retry"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create txn_conflicts_total: %w", err)
	}

	m.TxnDuration, err = meter.Float64Histogram(
		"rsvp_txn_duration_seconds",
		metric.WithDescription("Mutating transaction duration in seconds, including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("create txn_duration: %w", err)
	}

	// --- Cache Metrics ---
	m.PositionCacheHitsTotal, err = meter.Int64Counter(
		"rsvp_position_cache_hits_total",
		metric.WithDescription("Waitlist position lookups served from cache"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create position_cache_hits_total: %w", err)
	}

	m.PositionCacheMissesTotal, err = meter.Int64Counter(
		"rsvp_position_cache_misses_total",
		metric.WithDescription("Waitlist position lookups that fell through to the store"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create position_cache_misses_total: %w", err)
	}

	return m, nil
}
