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

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all RSVP routes with the router.
//
// Description:
//
//	Registers all /v1/events/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied
//	(tracing, rate limiting).
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	PUT    /v1/events/:eventID/rsvp - Request a status change
//	POST   /v1/events/:eventID/waitlist/join - Join the waitlist
//	POST   /v1/events/:eventID/waitlist/leave - Leave the waitlist
//	GET    /v1/events/:eventID/waitlist/position - Look up one position
//	POST   /v1/events/:eventID/waitlist/recalculate - Rebuild positions
//	GET    /v1/events/:eventID/waitlist - Ordered waitlist snapshot
//	GET    /v1/events/:eventID/attendees/:attendeeID - Registration + history
//	DELETE /v1/events/:eventID/attendees/:attendeeID - Withdraw
//	PUT    /v1/events/:eventID/config - Store capacity configuration
//	GET    /v1/events/:eventID/config - Read capacity configuration
//	DELETE /v1/events/:eventID - Purge all event data
//
// Example:
//
//	service, _ := rsvp.NewService(rsvp.DefaultServiceConfig(), extensions.DefaultOptions())
//	handlers := rsvp.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	rsvp.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	events := rg.Group("/events")
	events.Use(ValidateParams())
	{
		// Admission
		events.PUT("/:eventID/rsvp", handlers.HandleRequestStatus)

		// Waitlist
		events.POST("/:eventID/waitlist/join", handlers.HandleJoinWaitlist)
		events.POST("/:eventID/waitlist/leave", handlers.HandleLeaveWaitlist)
		events.GET("/:eventID/waitlist/position", handlers.HandleWaitlistPosition)
		events.POST("/:eventID/waitlist/recalculate", handlers.HandleRecalculate)
		events.GET("/:eventID/waitlist", handlers.HandleWaitlistSnapshot)

		// Registrations
		events.GET("/:eventID/attendees/:attendeeID", handlers.HandleGetAttendee)
		events.DELETE("/:eventID/attendees/:attendeeID", handlers.HandleWithdraw)

		// Administration
		events.PUT("/:eventID/config", handlers.HandleSetEventConfig)
		events.GET("/:eventID/config", handlers.HandleGetEventConfig)
		events.DELETE("/:eventID", handlers.HandlePurgeEvent)
	}
}

// RegisterOpsRoutes registers the operational endpoints on the router root.
//
// Description:
//
//	Health and readiness live outside /v1 so load balancers and probes
//	reach them without API versioning. The metrics handler serves the
//	Prometheus exposition format.
//
// Inputs:
//
//	router - The Gin engine
//	handlers - The handlers instance
//	metrics - The Prometheus exposition handler, typically
//	          telemetry.MetricsHandler(). Nil skips /metrics.
//
// Endpoints:
//
//	GET /health - Liveness check
//	GET /ready - Readiness check (store and cache probes)
//	GET /metrics - Prometheus metrics
func RegisterOpsRoutes(router *gin.Engine, handlers *Handlers, metrics http.Handler) {
	router.GET("/health", handlers.HandleHealth)
	router.GET("/ready", handlers.HandleReady)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
}
