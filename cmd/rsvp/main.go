// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command rsvp starts the AleutianGather RSVP API server.
//
// The server provides capacity-constrained event admission with:
//   - Atomic RSVP settlement against per-event capacity
//   - A gap-free, tier-prioritized waitlist (vip/premium/basic/free)
//   - Family dependents that mirror their primary's status
//   - Synchronous promotion when capacity frees
//
// Usage:
//
//	go run ./cmd/rsvp
//	go run ./cmd/rsvp -port 9090 -debug
//
// With the Redis position cache:
//
//	go run ./cmd/rsvp -redis-addr localhost:6379
//
// Example requests:
//
//	# Configure an event
//	curl -X PUT http://localhost:8080/v1/events/summer-picnic/config \
//	  -H "Content-Type: application/json" \
//	  -d '{"capacity": 100, "waitlistEnabled": true}'
//
//	# RSVP
//	curl -X PUT http://localhost:8080/v1/events/summer-picnic/rsvp \
//	  -H "Content-Type: application/json" \
//	  -d '{"userId": "user-1", "status": "going"}'
//
//	# Check a waitlist position
//	curl "http://localhost:8080/v1/events/summer-picnic/waitlist/position?userId=user-1"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianGather/pkg/extensions"
	"github.com/AleutianAI/AleutianGather/pkg/logging"
	"github.com/AleutianAI/AleutianGather/services/rsvp"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
	"github.com/AleutianAI/AleutianGather/services/rsvp/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	storeDir := flag.String("store-dir", "", "Store directory (default ~/.gather/rsvp)")
	inMemory := flag.Bool("in-memory", false, "Run with an ephemeral in-memory store")
	redisAddr := flag.String("redis-addr", "", "Redis address for the position cache (disabled when empty)")
	logDir := flag.String("log-dir", "", "Directory for log files (file logging disabled when empty)")
	auditLog := flag.Bool("audit", false, "Record RSVP audit events to the log stream")
	maxDependents := flag.Int("max-dependents", rsvp.DefaultServiceConfig().MaxDependents, "Family members allowed per primary")
	rateRPS := flag.Float64("rate-rps", rsvp.DefaultLimiterConfig().RPS, "Per-key request rate")
	rateBurst := flag.Int("rate-burst", rsvp.DefaultLimiterConfig().Burst, "Per-key burst allowance")
	tiers := flag.String("tiers", "", "Membership tier seed, comma separated userID=tier pairs")
	flag.Parse()

	// Structured logs: human-readable on a terminal, JSON when piped.
	level := logging.LevelInfo
	if *debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  *logDir,
		Service: "rsvp",
		JSON:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Telemetry: tracing and the Prometheus metrics registry.
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceName = "gather-rsvp"
	telemetryCfg.ServiceVersion = serviceVersion
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		slog.Error("Failed to initialize telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("gather.rsvp"))
	if err != nil {
		slog.Error("Failed to create metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create service with default config
	cfg := rsvp.DefaultServiceConfig()
	cfg.Version = serviceVersion
	cfg.MaxDependents = *maxDependents
	cfg.RedisAddr = *redisAddr
	cfg.Logger = logger.Slog()
	cfg.Metrics = metrics
	cfg.Tiers = parseTierSeed(*tiers)
	if *inMemory {
		cfg.Store = store.InMemoryConfig()
	} else if *storeDir != "" {
		cfg.Store.Path = *storeDir
	}

	opts := extensions.DefaultOptions()
	if *auditLog {
		opts = opts.WithAudit(extensions.NewSlogAuditLogger(logger.Slog()))
	}

	svc, err := rsvp.NewService(cfg, opts)
	if err != nil {
		slog.Error("Failed to start RSVP service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer svc.Close()

	// Create handlers
	handlers := rsvp.NewHandlers(svc)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	if *debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("gather-rsvp"))

	// Per-member rate limiting applies to the API surface, not to probes
	// or metrics scrapes.
	limiterCfg := rsvp.DefaultLimiterConfig()
	limiterCfg.RPS = *rateRPS
	limiterCfg.Burst = *rateBurst
	limiter := rsvp.NewRateLimiter(limiterCfg)
	defer limiter.Stop()

	v1 := router.Group("/v1")
	v1.Use(limiter.Middleware(rsvp.KeyByUser))
	rsvp.RegisterRoutes(v1, handlers)
	rsvp.RegisterOpsRoutes(router, handlers, telemetry.MetricsHandler())

	printBanner(*port, *redisAddr != "")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting RSVP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown: stop accepting, drain in-flight requests, then
	// the deferred closes flush the store and telemetry.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down RSVP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
}

// parseTierSeed parses "user-1=vip,user-2=premium" into the membership
// seed map. Malformed pairs are skipped with a warning.
func parseTierSeed(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	seed := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		userID, tier, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || userID == "" || tier == "" {
			slog.Warn("Skipping malformed tier pair", slog.String("pair", pair))
			continue
		}
		seed[userID] = tier
	}
	return seed
}

func printBanner(port int, cacheEnabled bool) {
	cacheStatus := "DISABLED (set -redis-addr to enable)"
	if cacheEnabled {
		cacheStatus = "ENABLED"
	}

	banner := `
╔════════════════════════════════════════════════════════════════╗
║                    ALEUTIAN GATHER RSVP SERVER                 ║
╠════════════════════════════════════════════════════════════════╣
║                                                                ║
║  Capacity-constrained admission with a tier-priority waitlist. ║
║  Position Cache: %-45s ║
║                                                                ║
║  Quick Start:                                                  ║
║  ┌────────────────────────────────────────────────────────────┐║
║  │ # Configure an event                                       │║
║  │ curl -X PUT localhost:%d/v1/events/picnic/config \       │║
║  │   -d '{"capacity": 100, "waitlistEnabled": true}'          │║
║  │                                                            │║
║  │ # RSVP                                                     │║
║  │ curl -X PUT localhost:%d/v1/events/picnic/rsvp \         │║
║  │   -d '{"userId": "user-1", "status": "going"}'             │║
║  └────────────────────────────────────────────────────────────┘║
║                                                                ║
║  Endpoints:                                                    ║
║  ├── RSVP: PUT /v1/events/:id/rsvp                             ║
║  ├── Waitlist: /join, /leave, /position, /recalculate          ║
║  ├── Registrations: GET|DELETE /v1/events/:id/attendees/:aid   ║
║  ├── Admin: PUT|GET /config, DELETE /v1/events/:id             ║
║  └── Ops: /health, /ready, /metrics                            ║
║                                                                ║
║  Press Ctrl+C to stop                                          ║
╚════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, cacheStatus, port, port)
}
