// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rsvp provides the RSVP admission and waitlist HTTP service.
//
// The service exposes endpoints for:
//   - Requesting and settling RSVP statuses under event capacity
//   - Joining, leaving, and inspecting the tier-adjusted waitlist
//   - Withdrawing registrations, cascading to family dependents
//   - Administering event capacity configuration
package rsvp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/AleutianGather/pkg/extensions"
	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/cache"
	"github.com/AleutianAI/AleutianGather/services/rsvp/directory"
	"github.com/AleutianAI/AleutianGather/services/rsvp/engine"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
	"github.com/AleutianAI/AleutianGather/services/rsvp/telemetry"
)

// ServiceConfig configures the RSVP service.
type ServiceConfig struct {
	// Version is reported by GET /health.
	// Default: "dev"
	Version string

	// Store configures the document store. Default: store.DefaultConfig(),
	// which persists under ~/.gather/rsvp.
	Store store.Config

	// MaxDependents caps family members per primary per event.
	// Default: engine.DefaultMaxDependents
	MaxDependents int

	// TxnAttempts is the total number of tries for a conflicted
	// transaction, including the first. Default: store.DefaultMaxAttempts
	TxnAttempts int

	// Tiers seeds the membership directory: userID -> tier name.
	// Unknown users resolve to the free tier.
	Tiers map[string]string

	// RedisAddr enables the Redis position cache when non-empty.
	// Default: "" (positions read from the store on every request)
	RedisAddr string

	// CacheTTL bounds staleness of cached positions when an invalidation
	// is lost. Default: 30s
	CacheTTL time.Duration

	// Logger receives service logs. Default: slog.Default()
	Logger *slog.Logger

	// Metrics receives service instrumentation. Optional.
	Metrics *telemetry.Metrics
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	st := store.DefaultConfig()
	st.Path = defaultStorePath()
	return ServiceConfig{
		Version:       "dev",
		Store:         st,
		MaxDependents: engine.DefaultMaxDependents,
		TxnAttempts:   store.DefaultMaxAttempts,
		CacheTTL:      30 * time.Second,
	}
}

// defaultStorePath is the per-user store directory. Empty when the home
// directory cannot be resolved; store.Open then reports the missing path.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gather", "rsvp")
}

// Service is the RSVP service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously; correctness under racing
//	callers comes from the engine's transaction isolation.
type Service struct {
	config ServiceConfig
	logger *slog.Logger
	opts   extensions.ServiceOptions

	db      *store.DB
	events  *directory.Events
	members *directory.Memberships
	engine  *engine.Engine

	// positions is the optional Redis read-through cache. Nil when no
	// Redis address is configured; reads then go to the store.
	positions *cache.Positions
	rdb       *redis.Client
}

// NewService creates a new RSVP service.
//
// Description:
//
//	Opens the document store, wires the admission engine over it, and
//	registers the settlement observers: audit logging, member
//	notification, and (when Redis is configured) position cache
//	invalidation. The caller owns the returned service and must Close it.
//
// Inputs:
//
//	config - Service configuration
//	opts - External collaborators; zero value fields fall back to no-ops
//
// Outputs:
//
//	*Service - The running service
//	error - Non-nil when the store cannot be opened or config is invalid
func NewService(config ServiceConfig, opts extensions.ServiceOptions) (*Service, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &extensions.NopAuditLogger{}
	}
	if opts.Notifier == nil {
		opts.Notifier = &extensions.NopNotifier{}
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Second
	}

	db, err := store.Open(config.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	events, err := directory.NewEvents(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("event directory: %w", err)
	}
	members := directory.NewMemberships(config.Tiers)

	eng, err := engine.New(db, events, members, engine.Config{
		MaxDependents: config.MaxDependents,
		TxnAttempts:   config.TxnAttempts,
		Logger:        logger,
		Metrics:       config.Metrics,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	svc := &Service{
		config:  config,
		logger:  logger,
		opts:    opts,
		db:      db,
		events:  events,
		members: members,
		engine:  eng,
	}

	eng.Hooks().Register(svc.auditListener)
	eng.Hooks().Register(svc.notifyListener)

	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		positions, err := cache.NewPositions(rdb, eng, cache.Config{
			TTL:     config.CacheTTL,
			Logger:  logger,
			Metrics: config.Metrics,
		})
		if err != nil {
			rdb.Close()
			db.Close()
			return nil, fmt.Errorf("position cache: %w", err)
		}
		eng.Hooks().Register(positions.Listener())
		svc.positions = positions
		svc.rdb = rdb
		logger.Info("position cache enabled", "redis_addr", config.RedisAddr, "ttl", config.CacheTTL)
	}

	logger.Info("rsvp service ready",
		"store_path", db.Path(),
		"in_memory", db.InMemory(),
		"max_dependents", config.MaxDependents,
		"cache", svc.positions != nil,
	)
	return svc, nil
}

// Engine exposes the admission engine for in-process callers and tests.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Close flushes the audit trail and releases the store and cache client.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.AuditLogger.Flush(ctx); err != nil {
		s.logger.Warn("audit flush failed", "error", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.logger.Warn("redis close failed", "error", err)
		}
	}
	return s.db.Close()
}

// =============================================================================
// Engine Operations
// =============================================================================

// RequestStatus settles one requested status change.
func (s *Service) RequestStatus(ctx context.Context, req engine.Request) (*engine.Result, error) {
	return s.engine.RequestStatus(ctx, req)
}

// JoinWaitlist places the user's primary on the waitlist and returns the
// assigned tier-adjusted position.
func (s *Service) JoinWaitlist(ctx context.Context, eventID, userID string) (int, error) {
	return s.engine.JoinWaitlist(ctx, eventID, userID)
}

// LeaveWaitlist removes the user's primary from the waitlist and compacts
// positions behind it.
func (s *Service) LeaveWaitlist(ctx context.Context, eventID, userID string) error {
	return s.engine.LeaveWaitlist(ctx, eventID, userID)
}

// RecalculatePositions rebuilds the event's waitlist ordering from arrival
// times and current tiers. Manual repair path; safe to repeat.
func (s *Service) RecalculatePositions(ctx context.Context, eventID string) (int, error) {
	return s.engine.RecalculatePositions(ctx, eventID)
}

// Withdraw deletes a registration. Withdrawing a primary removes its
// dependents; freed capacity promotes the head of the waitlist.
func (s *Service) Withdraw(ctx context.Context, eventID, attendeeID, actor string) error {
	return s.engine.Withdraw(ctx, eventID, attendeeID, actor)
}

// WaitlistPosition is the display read of a user's position. Served from
// the Redis cache when configured, else from the store. May trail
// in-flight transactions either way.
func (s *Service) WaitlistPosition(ctx context.Context, eventID, userID string) (*int, error) {
	if s.positions != nil {
		return s.positions.Position(ctx, eventID, userID)
	}
	return s.engine.WaitlistPosition(ctx, eventID, userID)
}

// WaitlistSnapshot returns the event's waitlisted attendees in position
// order.
func (s *Service) WaitlistSnapshot(ctx context.Context, eventID string) ([]*attendee.Attendee, error) {
	return s.engine.WaitlistSnapshot(ctx, eventID)
}

// Attendee returns one registration document with its history.
func (s *Service) Attendee(ctx context.Context, eventID, attendeeID string) (*attendee.Attendee, error) {
	return s.engine.Attendee(ctx, eventID, attendeeID)
}

// =============================================================================
// Event Administration
// =============================================================================

// EventConfig returns the stored capacity configuration.
func (s *Service) EventConfig(ctx context.Context, eventID string) (attendee.EventConfig, error) {
	return s.events.EventConfig(ctx, eventID)
}

// Capacity returns the advisory occupancy snapshot for display.
func (s *Service) Capacity(ctx context.Context, eventID string) (engine.CapacityState, error) {
	return s.engine.Capacity(ctx, eventID)
}

// SetEventConfig stores the event's capacity configuration and sweeps the
// waitlist, so a capacity increase promotes immediately instead of waiting
// for the next withdrawal.
func (s *Service) SetEventConfig(ctx context.Context, eventID string, capacity *int, waitlistEnabled bool) (attendee.EventConfig, error) {
	cfg := attendee.EventConfig{
		EventID:         eventID,
		Capacity:        capacity,
		WaitlistEnabled: waitlistEnabled,
	}
	if err := cfg.Validate(); err != nil {
		return attendee.EventConfig{}, err
	}
	if err := s.events.Upsert(ctx, cfg); err != nil {
		return attendee.EventConfig{}, fmt.Errorf("store event config: %w", err)
	}
	s.audit(ctx, extensions.AuditEvent{
		EventType:    "event.config",
		UserID:       "system",
		Action:       "configure",
		ResourceType: "event",
		ResourceID:   eventID,
		Outcome:      "success",
		Metadata:     map[string]any{"capacity": capacity, "waitlist_enabled": waitlistEnabled},
	})

	promoted, err := s.engine.Promote(ctx, eventID)
	if err != nil {
		// The config write is already durable; promotion catches up on
		// the next capacity-freeing settlement.
		s.logger.Warn("post-config promotion sweep failed",
			"event_id", eventID, "error", err)
	} else if promoted > 0 {
		s.logger.Info("capacity change promoted waitlisted attendees",
			"event_id", eventID, "promoted", promoted)
	}

	return s.events.EventConfig(ctx, eventID)
}

// PurgeEvent removes every registration and the capacity configuration of
// one event. Returns the number of registration documents removed.
func (s *Service) PurgeEvent(ctx context.Context, eventID string) (int, error) {
	removed, err := s.events.Purge(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if s.positions != nil {
		s.positions.Invalidate(ctx, eventID)
	}
	s.audit(ctx, extensions.AuditEvent{
		EventType:    "event.purge",
		UserID:       "system",
		Action:       "purge",
		ResourceType: "event",
		ResourceID:   eventID,
		Outcome:      "success",
		Metadata:     map[string]any{"removed": removed},
	})
	return removed, nil
}

// =============================================================================
// Health
// =============================================================================

// Ready probes the service's backing dependencies.
func (s *Service) Ready(ctx context.Context) (storeOK, cacheOK bool) {
	storeOK = s.db.Ping(ctx) == nil
	cacheOK = true
	if s.rdb != nil {
		cacheOK = s.rdb.Ping(ctx).Err() == nil
	}
	return storeOK, cacheOK
}

// Version reports the configured service version.
func (s *Service) Version() string {
	if s.config.Version == "" {
		return "dev"
	}
	return s.config.Version
}

// =============================================================================
// Settlement Observers
// =============================================================================

// auditListener forwards every committed settlement to the audit trail.
func (s *Service) auditListener(ctx context.Context, set engine.Settlement) {
	event := extensions.AuditEvent{
		Timestamp:    time.Now().UTC(),
		UserID:       set.UserID,
		ResourceType: "attendee",
		ResourceID:   set.AttendeeID,
		Outcome:      "success",
		Metadata: map[string]any{
			"event_id":      set.EventID,
			"attendee_type": string(set.Type),
			"old_status":    string(set.Old),
			"new_status":    string(set.New),
		},
	}
	switch {
	case set.Removed:
		event.EventType, event.Action = "rsvp.withdraw", "withdraw"
	case set.Promoted:
		event.EventType, event.Action = "waitlist.promote", "promote"
	case set.New == attendee.StatusWaitlisted && set.Old != attendee.StatusWaitlisted:
		event.EventType, event.Action = "waitlist.join", "join"
	case set.Old == attendee.StatusWaitlisted:
		event.EventType, event.Action = "waitlist.leave", "leave"
	default:
		event.EventType, event.Action = "rsvp.settle", "settle"
	}
	if err := s.opts.AuditLogger.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed",
			"event_type", event.EventType, "attendee_id", set.AttendeeID, "error", err)
	}
}

// notifyListener delivers member-facing outcomes: promotions and waitlist
// placements. Delivery is best-effort; the settlement is already durable.
func (s *Service) notifyListener(ctx context.Context, set engine.Settlement) {
	var note extensions.Notification
	switch {
	case set.Promoted:
		note = extensions.Notification{
			Kind:       "waitlist.promoted",
			UserID:     set.UserID,
			EventID:    set.EventID,
			AttendeeID: set.AttendeeID,
			OccurredAt: time.Now().UTC(),
		}
	case set.New == attendee.StatusWaitlisted && set.Old != attendee.StatusWaitlisted:
		note = extensions.Notification{
			Kind:       "waitlist.placed",
			UserID:     set.UserID,
			EventID:    set.EventID,
			AttendeeID: set.AttendeeID,
			OccurredAt: time.Now().UTC(),
		}
		if pos, err := s.engine.WaitlistPosition(ctx, set.EventID, set.UserID); err == nil && pos != nil {
			note.Position = *pos
		}
	default:
		return
	}
	if err := s.opts.Notifier.Send(ctx, note); err != nil {
		s.logger.Warn("notification send failed",
			"kind", note.Kind, "user_id", note.UserID, "error", err)
	}
}

func (s *Service) audit(ctx context.Context, event extensions.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.opts.AuditLogger.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", "event_type", event.EventType, "error", err)
	}
}
