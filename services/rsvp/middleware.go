// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rsvp

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
)

// LimiterConfig configures the per-key token bucket rate limiter.
type LimiterConfig struct {
	// RPS is the steady-state refill rate per key.
	// Default: 10
	RPS float64

	// Burst is the bucket capacity, bounding short spikes.
	// Default: 20
	Burst int

	// IdleTTL is how long an unused key's bucket survives before the
	// cleanup sweep reclaims it. Default: 3m
	IdleTTL time.Duration
}

// DefaultLimiterConfig returns limits sized for RSVP traffic: bursts when
// an event opens, a trickle otherwise.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		RPS:     10,
		Burst:   20,
		IdleTTL: 3 * time.Minute,
	}
}

// keyBucket pairs one key's limiter with its last use, for idle cleanup.
type keyBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies per-key token buckets to incoming requests.
//
// # Description
//
// Each key (a user, or a client IP for anonymous traffic) gets its own
// token bucket, so one member hammering the join endpoint cannot starve
// everyone else. Buckets live in memory and idle ones are reclaimed by a
// background sweep; the limiter is per-process and resets on restart.
//
// # Thread Safety
//
// Safe for concurrent use. The bucket map is guarded by a mutex; token
// accounting is internal to rate.Limiter.
type RateLimiter struct {
	conf    LimiterConfig
	mu      sync.Mutex
	buckets map[string]*keyBucket
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its cleanup sweep.
// Call Stop to end the sweep when discarding the limiter.
func NewRateLimiter(conf LimiterConfig) *RateLimiter {
	if conf.RPS <= 0 {
		conf.RPS = DefaultLimiterConfig().RPS
	}
	if conf.Burst <= 0 {
		conf.Burst = DefaultLimiterConfig().Burst
	}
	if conf.IdleTTL <= 0 {
		conf.IdleTTL = DefaultLimiterConfig().IdleTTL
	}

	rl := &RateLimiter{
		conf:    conf,
		buckets: make(map[string]*keyBucket),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop ends the background cleanup sweep.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	<-rl.doneCh
}

// sweep reclaims buckets whose keys have been idle past IdleTTL.
func (rl *RateLimiter) sweep() {
	defer close(rl.doneCh)

	interval := rl.conf.IdleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for k, b := range rl.buckets {
				if now.Sub(b.lastSeen) > rl.conf.IdleTTL {
					delete(rl.buckets, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// bucket returns the key's limiter, creating it on first use.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	lim := rate.NewLimiter(rate.Limit(rl.conf.RPS), rl.conf.Burst)
	rl.buckets[key] = &keyBucket{limiter: lim, lastSeen: now}
	return lim
}

// KeySelector decides what a request is limited by: IP, user, or a
// combination.
type KeySelector func(c *gin.Context) string

// KeyByUser keys on the X-User-ID header when present, else the client IP.
// RSVP traffic is per-member; anonymous reads degrade to per-address.
func KeyByUser(c *gin.Context) string {
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// Middleware returns the gin middleware enforcing the limiter.
//
// Requests that find an empty bucket receive 429 with a Retry-After hint
// and the standard error envelope.
func (rl *RateLimiter) Middleware(selectKey KeySelector) gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := rl.bucket(selectKey(c))
		if !lim.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "Too many requests, slow down",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// paramFields maps route parameter names to the field names used in
// validation errors.
var paramFields = map[string]string{
	"eventID":    "event id",
	"attendeeID": "attendee id",
}

// ValidateParams rejects requests whose path parameters are not safe to
// embed in store keys. The store lays an event out as one contiguous key
// range, so an identifier carrying the key separator could read or write
// across event boundaries. Registered by RegisterRoutes on every /v1 route.
func ValidateParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			field, ok := paramFields[p.Key]
			if !ok {
				field = p.Key
			}
			if err := attendee.ValidateID(field, p.Value); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
					Error: err.Error(),
					Code:  "INVALID_REQUEST",
				})
				return
			}
		}
		c.Next()
	}
}
