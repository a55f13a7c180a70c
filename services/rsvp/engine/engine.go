// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements capacity-constrained RSVP admission and waitlist
// ordering for events.
//
// The engine decides whether a requested "going" status is granted
// immediately, queued on a priority-weighted waitlist, or rejected. It owns
// the waitlist ordering invariant (positions are exactly 1..M, gap-free, no
// duplicates), mirrors a primary attendee's settled status onto dependents,
// and promotes the head of the waitlist whenever capacity frees up.
//
// Every mutating operation runs as one serializable transaction scoped to a
// single event's attendee set. Conflicting writers are serialized by the
// store's optimistic concurrency control plus a per-event version fence;
// a conflict is retried once locally and then surfaced as the retryable
// ErrWaitlistConflict. Operations on different events never contend.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
	"github.com/AleutianAI/AleutianGather/services/rsvp/telemetry"
)

var engineTracer = otel.Tracer("rsvp.engine")

// DefaultMaxDependents is the per-primary dependent ceiling applied when the
// configuration does not override it.
const DefaultMaxDependents = 4

// EventDirectory resolves an event's capacity configuration.
//
// Implementations return an error satisfying errors.Is(err, ErrEventNotFound)
// for unknown events. The configuration is read once per operation, outside
// the mutating transaction: capacity and waitlist flags are administrative
// settings, not contended state; the going count that gates admission is
// always re-read inside the transaction.
type EventDirectory interface {
	EventConfig(ctx context.Context, eventID string) (attendee.EventConfig, error)
}

// MembershipDirectory resolves a user's membership tier for waitlist
// priority. Lookup failures are not fatal: the engine degrades the user to
// the free tier and logs, preferring availability over priority.
type MembershipDirectory interface {
	UserTier(ctx context.Context, userID string) (attendee.Tier, error)
}

// Config controls engine behavior.
type Config struct {
	// MaxDependents caps how many dependents one primary may register per
	// event. Zero disables dependents entirely.
	MaxDependents int

	// TxnAttempts is the total number of tries for a conflicted
	// transaction, including the first. The default retries once.
	TxnAttempts int

	// Logger receives structured engine logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives engine instrumentation. When nil the engine
	// registers its own instruments against the global meter, which is a
	// no-op unless a meter provider is installed.
	Metrics *telemetry.Metrics

	// Clock supplies timestamps for settlement records. Defaults to
	// time.Now; tests inject a fixed clock.
	Clock func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxDependents: DefaultMaxDependents,
		TxnAttempts:   store.DefaultMaxAttempts,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxDependents < 0 {
		return fmt.Errorf("max dependents must be >= 0, got %d", c.MaxDependents)
	}
	if c.TxnAttempts < 1 {
		return fmt.Errorf("txn attempts must be >= 1, got %d", c.TxnAttempts)
	}
	return nil
}

// Engine is the RSVP admission and waitlist engine for one store.
//
// Description:
//
//	Engine wires the capacity oracle, waitlist ledger, admission
//	controller, cascade engine, and promotion trigger over a shared
//	transactional store. All public methods are safe for concurrent use;
//	correctness under racing callers comes from transaction isolation, not
//	from locks in this package.
//
// Thread Safety: Safe for concurrent use after New.
type Engine struct {
	db      *store.DB
	events  EventDirectory
	members MembershipDirectory

	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	hooks   *Hooks
	now     func() time.Time

	oracle    *CapacityOracle
	ledger    *WaitlistLedger
	admission *AdmissionController
	cascade   *CascadeEngine
	promotion *PromotionTrigger
}

// New creates an Engine over the given store and directories.
//
// Inputs:
//
//	db - Open attendee store. Must not be nil.
//	events - Event capacity configuration source. Must not be nil.
//	members - Membership tier source. Must not be nil.
//	cfg - Engine configuration; zero fields take defaults.
//
// Outputs:
//
//	*Engine - Ready engine with cascade and promotion listeners registered.
//	error - Non-nil on nil dependencies or invalid configuration.
func New(db *store.DB, events EventDirectory, members MembershipDirectory, cfg Config) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if events == nil {
		return nil, fmt.Errorf("engine: event directory is required")
	}
	if members == nil {
		return nil, fmt.Errorf("engine: membership directory is required")
	}
	if cfg.TxnAttempts == 0 {
		cfg.TxnAttempts = store.DefaultMaxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	e := &Engine{
		db:      db,
		events:  events,
		members: members,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		hooks:   NewHooks(),
		now:     cfg.Clock,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.metrics == nil {
		m, err := telemetry.NewMetrics(otel.Meter("rsvp.engine"))
		if err != nil {
			return nil, fmt.Errorf("engine metrics: %w", err)
		}
		e.metrics = m
	}

	e.oracle = &CapacityOracle{db: db, events: events}
	e.ledger = &WaitlistLedger{eng: e}
	e.admission = &AdmissionController{eng: e}
	e.cascade = &CascadeEngine{eng: e, maxDependents: cfg.MaxDependents}
	e.promotion = &PromotionTrigger{eng: e}

	// Cascade before promotion: when a primary cancels, dependents mirror
	// the cancellation before the freed seat is handed to the waitlist.
	e.hooks.Register(e.cascadeListener)
	e.hooks.Register(e.promotionListener)

	return e, nil
}

// Hooks returns the post-commit settlement bus so callers can register
// additional observers (audit trails, metrics) alongside the engine's own
// cascade and promotion listeners.
func (e *Engine) Hooks() *Hooks {
	return e.hooks
}

// =============================================================================
// Public API
// =============================================================================

// RequestStatus settles a requested status change for an attendee. See
// AdmissionController.RequestStatus for the decision rules.
func (e *Engine) RequestStatus(ctx context.Context, req Request) (*Result, error) {
	return e.admission.RequestStatus(ctx, req)
}

// JoinWaitlist queues a primary attendee on the event's waitlist and returns
// the assigned position. See WaitlistLedger.Join.
func (e *Engine) JoinWaitlist(ctx context.Context, eventID, userID string) (int, error) {
	return e.ledger.Join(ctx, eventID, userID)
}

// LeaveWaitlist removes a primary attendee from the waitlist, settling them
// as not-going and compacting the remaining positions. See
// WaitlistLedger.Leave.
func (e *Engine) LeaveWaitlist(ctx context.Context, eventID, userID string) error {
	return e.ledger.Leave(ctx, eventID, userID)
}

// RecalculatePositions re-derives all waitlist positions for an event from
// arrival order. Idempotent; safe to invoke repeatedly. See
// WaitlistLedger.Recalculate.
func (e *Engine) RecalculatePositions(ctx context.Context, eventID string) (int, error) {
	return e.ledger.Recalculate(ctx, eventID)
}

// Withdraw deletes an attendee's registration outright. Withdrawing a
// primary also deletes its dependents. See AdmissionController.Withdraw.
func (e *Engine) Withdraw(ctx context.Context, eventID, attendeeID, actor string) error {
	return e.admission.Withdraw(ctx, eventID, attendeeID, actor)
}

// Promote sweeps the event's waitlist, promoting heads in position order
// while room remains. Invoked internally after every capacity-freeing
// settlement; exposed for administrative capacity increases.
func (e *Engine) Promote(ctx context.Context, eventID string) (int, error) {
	return e.promotion.Run(ctx, eventID)
}

// Capacity returns an advisory capacity snapshot for display. The snapshot
// is read outside any mutating transaction and must never gate a commit.
func (e *Engine) Capacity(ctx context.Context, eventID string) (CapacityState, error) {
	return e.oracle.Advisory(ctx, eventID)
}

// WaitlistPosition returns the attendee's current waitlist position, or nil
// when the user has no registration or is not waitlisted. Display read; may
// be stale relative to in-flight transactions.
func (e *Engine) WaitlistPosition(ctx context.Context, eventID, userID string) (*int, error) {
	var pos *int
	err := e.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		att, err := store.FindPrimary(txn, eventID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if att.IsWaitlisted() {
			p := att.Position()
			pos = &p
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("waitlist position: %w", err)
	}
	return pos, nil
}

// WaitlistSnapshot returns the event's waitlisted attendees ordered by
// position. Display read; may be stale.
func (e *Engine) WaitlistSnapshot(ctx context.Context, eventID string) ([]*attendee.Attendee, error) {
	var entries []*attendee.Attendee
	err := e.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		entries, err = store.ListWaitlisted(txn, eventID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("waitlist snapshot: %w", err)
	}
	sortByPosition(entries)
	return entries, nil
}

// Attendee returns one attendee document by ID.
func (e *Engine) Attendee(ctx context.Context, eventID, attendeeID string) (*attendee.Attendee, error) {
	var att *attendee.Attendee
	err := e.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		att, err = store.GetAttendee(txn, eventID, attendeeID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("attendee %s on event %s: %w", attendeeID, eventID, ErrAttendeeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attendee: %w", err)
	}
	return att, nil
}

// Attendees returns every attendee registered for the event, in key order.
func (e *Engine) Attendees(ctx context.Context, eventID string) ([]*attendee.Attendee, error) {
	var all []*attendee.Attendee
	err := e.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		all, err = store.ListAttendees(txn, eventID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return all, nil
}

// =============================================================================
// Transaction plumbing
// =============================================================================

// runTxn executes fn inside one serializable read-write transaction with the
// engine's retry policy. Every transaction bumps the event's version fence
// first, so any two mutations of the same event conflict even when their
// read and write sets would not otherwise overlap (the empty-waitlist join
// race). Conflicts that survive the retry surface as ErrWaitlistConflict.
func (e *Engine) runTxn(ctx context.Context, op, eventID string, fn func(txn *badger.Txn) error) error {
	ctx, span := engineTracer.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("rsvp.event_id", eventID),
		),
	)
	defer span.End()

	start := time.Now()
	err := store.WithOptimisticRetry(ctx, op, e.cfg.TxnAttempts, func() error {
		return e.db.WithTxn(ctx, func(txn *badger.Txn) error {
			if _, err := store.BumpEventVersion(txn, eventID); err != nil {
				return err
			}
			return fn(txn)
		})
	})
	e.metrics.TxnDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, badger.ErrConflict) {
			e.metrics.TxnConflictsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("operation", op)))
			e.logger.WarnContext(ctx, "transaction conflict survived retry",
				slog.String("operation", op),
				slog.String("event_id", eventID))
			return fmt.Errorf("%s: event %s: %w", op, eventID, ErrWaitlistConflict)
		}
		return err
	}
	return nil
}

// eventConfig resolves the event's capacity configuration. Directory
// implementations already tag unknown events with ErrEventNotFound; the wrap
// here preserves that.
func (e *Engine) eventConfig(ctx context.Context, eventID string) (attendee.EventConfig, error) {
	cfg, err := e.events.EventConfig(ctx, eventID)
	if err != nil {
		return attendee.EventConfig{}, fmt.Errorf("event config: %w", err)
	}
	return cfg, nil
}

// userTier resolves the user's membership tier, degrading to free when the
// membership directory is unavailable.
func (e *Engine) userTier(ctx context.Context, userID string) attendee.Tier {
	tier, err := e.members.UserTier(ctx, userID)
	if err != nil {
		e.logger.WarnContext(ctx, "membership lookup failed; defaulting to free tier",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return attendee.TierFree
	}
	if !tier.Valid() {
		return attendee.TierFree
	}
	return tier
}

// =============================================================================
// Internal settlement listeners
// =============================================================================

// cascadeListener mirrors a primary's committed status change onto its
// dependents. Fan-out failures are logged, never propagated: the primary's
// own settlement already committed, and recalculate/repair paths can heal.
func (e *Engine) cascadeListener(ctx context.Context, s Settlement) {
	if !s.MirrorsToDependents() {
		return
	}
	if _, err := e.cascade.FanOut(ctx, s.EventID, s.UserID, s.New); err != nil {
		e.logger.ErrorContext(ctx, "dependent fan-out failed",
			slog.String("event_id", s.EventID),
			slog.String("user_id", s.UserID),
			slog.String("status", string(s.New)),
			slog.String("error", err.Error()))
	}
}

// promotionListener sweeps the waitlist after any settlement that freed a
// seat.
func (e *Engine) promotionListener(ctx context.Context, s Settlement) {
	if !s.FreesCapacity() {
		return
	}
	if _, err := e.promotion.Run(ctx, s.EventID); err != nil {
		e.logger.ErrorContext(ctx, "promotion sweep failed",
			slog.String("event_id", s.EventID),
			slog.String("error", err.Error()))
	}
}

// sortByPosition orders waitlisted attendees by their assigned position.
func sortByPosition(entries []*attendee.Attendee) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Position() < entries[j].Position()
	})
}
