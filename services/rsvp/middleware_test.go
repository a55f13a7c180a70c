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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware(KeyByUser))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func pingAs(router *gin.Engine, userID string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/ping", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_EnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 2, IdleTTL: time.Minute})
	defer rl.Stop()
	router := setupLimitedRouter(rl)

	for i := 0; i < 2; i++ {
		if w := pingAs(router, "user-1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := pingAs(router, "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on 429")
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "RATE_LIMITED" {
		t.Errorf("expected code RATE_LIMITED, got %q", resp.Code)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	defer rl.Stop()
	router := setupLimitedRouter(rl)

	if w := pingAs(router, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("user-1: expected 200, got %d", w.Code)
	}
	if w := pingAs(router, "user-1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("user-1 second: expected 429, got %d", w.Code)
	}

	// A different user has its own bucket.
	if w := pingAs(router, "user-2"); w.Code != http.StatusOK {
		t.Errorf("user-2: expected 200, got %d", w.Code)
	}

	// Anonymous traffic keys on the client address.
	if w := pingAs(router, ""); w.Code != http.StatusOK {
		t.Errorf("anonymous: expected 200, got %d", w.Code)
	}
}

func TestRateLimiter_DefaultsApplied(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{})
	defer rl.Stop()

	want := DefaultLimiterConfig()
	if rl.conf.RPS != want.RPS {
		t.Errorf("expected default RPS %v, got %v", want.RPS, rl.conf.RPS)
	}
	if rl.conf.Burst != want.Burst {
		t.Errorf("expected default Burst %d, got %d", want.Burst, rl.conf.Burst)
	}
	if rl.conf.IdleTTL != want.IdleTTL {
		t.Errorf("expected default IdleTTL %v, got %v", want.IdleTTL, rl.conf.IdleTTL)
	}
}

func TestRateLimiter_SweepReclaimsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 1, IdleTTL: 10 * time.Millisecond})
	defer rl.Stop()

	rl.bucket("user:stale")

	deadline := time.Now().Add(2 * time.Second)
	for {
		rl.mu.Lock()
		n := len(rl.buckets)
		rl.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("idle bucket never reclaimed, %d remaining", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func setupGuardedRouter() *gin.Engine {
	router := gin.New()
	g := router.Group("/v1")
	g.Use(ValidateParams())
	g.GET("/events/:eventID/attendees/:attendeeID", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestValidateParams_AllowsSafeIDs(t *testing.T) {
	router := setupGuardedRouter()

	req, _ := http.NewRequest("GET", "/v1/events/evt-gala/attendees/a1b2c3d4", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestValidateParams_RejectsKeySeparator(t *testing.T) {
	router := setupGuardedRouter()

	tests := []struct {
		name string
		path string
	}{
		{"event id", "/v1/events/evt:1/attendees/att-1"},
		{"attendee id", "/v1/events/evt-1/attendees/att:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Code != "INVALID_REQUEST" {
				t.Errorf("expected code INVALID_REQUEST, got %q", resp.Code)
			}
		})
	}
}
