// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides a Redis read-through cache for waitlist position
// lookups, the highest-volume read in the RSVP service. The cache is strictly
// an accelerator: every entry carries a TTL, any Redis failure degrades to
// the engine read, and settlement notifications purge the affected event so
// renumbered positions never outlive the write that moved them.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianGather/services/rsvp/engine"
	"github.com/AleutianAI/AleutianGather/services/rsvp/telemetry"
)

// keyPrefix namespaces position entries; one key per (event, user).
const keyPrefix = "rsvp:pos:"

// absent encodes "not waitlisted" in Redis. Positions are 1-based, so zero
// is free to carry the negative result, which is worth caching: most users
// asking for their spot at a popular event do not have one.
const absent = "0"

// PositionSource is the authoritative read the cache fronts. *engine.Engine
// satisfies it.
type PositionSource interface {
	WaitlistPosition(ctx context.Context, eventID, userID string) (*int, error)
}

// Config carries the tunables for a Positions cache.
type Config struct {
	// TTL bounds staleness when an invalidation is lost (a crash between
	// commit and purge). Defaults to 30 seconds.
	TTL time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Positions is a read-through cache over PositionSource.
//
// # Thread Safety
//
// Safe for concurrent use. All state lives in Redis; the struct itself is
// immutable after construction.
type Positions struct {
	rdb     *redis.Client
	src     PositionSource
	ttl     time.Duration
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewPositions builds the cache. rdb and src are required; cfg fields fall
// back to defaults when zero.
func NewPositions(rdb *redis.Client, src PositionSource, cfg Config) (*Positions, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if src == nil {
		return nil, fmt.Errorf("position source is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		m, err := telemetry.NewMetrics(otel.Meter("rsvp.cache"))
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		cfg.Metrics = m
	}
	return &Positions{
		rdb:     rdb,
		src:     src,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Position returns the user's waitlist position, or nil when they hold none.
//
// # Description
//
// The Redis entry is consulted first; on a miss, an expired entry, or any
// Redis failure the engine read answers and the result is written back with
// the configured TTL. The write-back is best effort: a failure costs the
// next reader a miss, never an error.
func (p *Positions) Position(ctx context.Context, eventID, userID string) (*int, error) {
	key := keyPrefix + eventID + ":" + userID

	val, err := p.rdb.Get(ctx, key).Result()
	if err == nil {
		if pos, perr := strconv.Atoi(val); perr == nil {
			p.metrics.PositionCacheHitsTotal.Add(ctx, 1)
			if pos == 0 {
				return nil, nil
			}
			return &pos, nil
		}
		// Unparseable entry; fall through and overwrite it.
	} else if !errors.Is(err, redis.Nil) {
		p.logger.WarnContext(ctx, "position cache read failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
	p.metrics.PositionCacheMissesTotal.Add(ctx, 1)

	pos, err := p.src.WaitlistPosition(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	stored := absent
	if pos != nil {
		stored = strconv.Itoa(*pos)
	}
	if err := p.rdb.Set(ctx, key, stored, p.ttl).Err(); err != nil {
		p.logger.WarnContext(ctx, "position cache write failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
	return pos, nil
}

// Invalidate purges every cached position for the event. One settlement can
// renumber arbitrarily many entries through compaction, so invalidation is
// event-wide rather than per user.
func (p *Positions) Invalidate(ctx context.Context, eventID string) {
	iter := p.rdb.Scan(ctx, 0, keyPrefix+eventID+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := p.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			p.logger.WarnContext(ctx, "position cache purge failed",
				slog.String("key", iter.Val()),
				slog.String("error", err.Error()))
		}
	}
	if err := iter.Err(); err != nil {
		p.logger.WarnContext(ctx, "position cache scan failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
}

// Listener adapts Invalidate to the engine's settlement bus. Every settled
// write purges its event; registration order relative to the engine's own
// listeners does not matter because purging is idempotent.
func (p *Positions) Listener() engine.Listener {
	return func(ctx context.Context, s engine.Settlement) {
		p.Invalidate(ctx, s.EventID)
	}
}
