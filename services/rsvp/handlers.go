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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/engine"
)

// conflictRetryAfterSeconds is the Retry-After hint returned with
// WAITLIST_CONFLICT responses. Conflicts clear as soon as the racing
// transaction commits, so the hint is short.
const conflictRetryAfterSeconds = 1

// Handlers contains the HTTP handlers for the RSVP service.
//
// Thread Safety: Handlers is safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers wrapping the RSVP service.
//
// Inputs:
//
//	svc - The RSVP service. Must not be nil.
//
// Outputs:
//
//	*Handlers - The configured handlers.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleRequestStatus handles PUT /v1/events/:eventID/rsvp.
//
// Description:
//
//	Settles a requested status change. A going request against a full
//	event lands on the waitlist (when enabled) and the response carries
//	the assigned position; repeated identical requests are no-ops.
//
// Request Body:
//
//	StatusRequest
//
// Response:
//
//	200 OK: StatusResponse
//	400 Bad Request: Validation error or invalid transition
//	404 Not Found: Unknown event or attendee
//	409 Conflict: Capacity, family limit, or transaction conflict
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleRequestStatus(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRequestStatus")

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	eventID := c.Param("eventID")
	result, err := h.svc.RequestStatus(c.Request.Context(), engine.Request{
		EventID:     eventID,
		UserID:      req.UserID,
		AttendeeID:  req.AttendeeID,
		Type:        attendee.Type(req.AttendeeType),
		DisplayName: req.DisplayName,
		Status:      attendee.Status(req.Status),
		Actor:       req.UserID,
	})
	if err != nil {
		respondEngineError(c, logger, err, "RSVP request failed")
		return
	}

	logger.Info("RSVP settled",
		"event_id", eventID,
		"user_id", req.UserID,
		"status", result.Status,
		"changed", result.Changed,
	)
	c.JSON(http.StatusOK, NewStatusResponse(result))
}

// HandleJoinWaitlist handles POST /v1/events/:eventID/waitlist/join.
//
// Description:
//
//	Places the user's primary registration on the waitlist and returns
//	the assigned tier-adjusted position. Re-joining returns the held
//	position unchanged.
//
// Request Body:
//
//	JoinWaitlistRequest
//
// Response:
//
//	200 OK: JoinWaitlistResponse
//	400 Bad Request: Validation error or waitlist disabled
//	404 Not Found: Unknown event
//	409 Conflict: Transaction conflict
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleJoinWaitlist(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleJoinWaitlist")

	var req JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	eventID := c.Param("eventID")
	position, err := h.svc.JoinWaitlist(c.Request.Context(), eventID, req.UserID)
	if err != nil {
		respondEngineError(c, logger, err, "Waitlist join failed")
		return
	}

	logger.Info("Waitlist joined", "event_id", eventID, "user_id", req.UserID, "position", position)
	c.JSON(http.StatusOK, JoinWaitlistResponse{Position: position})
}

// HandleLeaveWaitlist handles POST /v1/events/:eventID/waitlist/leave.
//
// Description:
//
//	Removes the user's primary from the waitlist and compacts the
//	positions behind it. Leaving when not waitlisted is a no-op.
//
// Request Body:
//
//	LeaveWaitlistRequest
//
// Response:
//
//	200 OK: empty object
//	400 Bad Request: Validation error
//	404 Not Found: Unknown event
//	409 Conflict: Transaction conflict
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleLeaveWaitlist(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLeaveWaitlist")

	var req LeaveWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	eventID := c.Param("eventID")
	if err := h.svc.LeaveWaitlist(c.Request.Context(), eventID, req.UserID); err != nil {
		respondEngineError(c, logger, err, "Waitlist leave failed")
		return
	}

	logger.Info("Waitlist left", "event_id", eventID, "user_id", req.UserID)
	c.JSON(http.StatusOK, gin.H{})
}

// HandleWaitlistPosition handles GET /v1/events/:eventID/waitlist/position.
//
// Description:
//
//	Display read of one user's waitlist position, null when the user is
//	not waitlisted. Served from the Redis cache when configured and may
//	trail in-flight transactions.
//
// Query Parameters:
//
//	userId - The user to look up. Required.
//
// Response:
//
//	200 OK: PositionResponse
//	400 Bad Request: Missing userId
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleWaitlistPosition(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWaitlistPosition")

	userID := c.Query("userId")
	if userID == "" {
		logger.Warn("Missing userId query parameter")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "userId query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	position, err := h.svc.WaitlistPosition(c.Request.Context(), c.Param("eventID"), userID)
	if err != nil {
		respondEngineError(c, logger, err, "Position lookup failed")
		return
	}

	c.JSON(http.StatusOK, PositionResponse{Position: position})
}

// HandleWaitlistSnapshot handles GET /v1/events/:eventID/waitlist.
//
// Description:
//
//	Returns the event's waitlist in position order. Display read; may be
//	stale relative to in-flight transactions.
//
// Response:
//
//	200 OK: WaitlistResponse
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleWaitlistSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWaitlistSnapshot")

	eventID := c.Param("eventID")
	entries, err := h.svc.WaitlistSnapshot(c.Request.Context(), eventID)
	if err != nil {
		respondEngineError(c, logger, err, "Waitlist snapshot failed")
		return
	}

	c.JSON(http.StatusOK, NewWaitlistResponse(eventID, entries))
}

// HandleRecalculate handles POST /v1/events/:eventID/waitlist/recalculate.
//
// Description:
//
//	Rebuilds the event's waitlist ordering from arrival times and current
//	membership tiers. This is the manual repair path for position drift;
//	it is idempotent and safe to invoke repeatedly.
//
// Response:
//
//	200 OK: RecalculateResponse with the number of rewritten rows
//	404 Not Found: Unknown event
//	409 Conflict: Transaction conflict
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleRecalculate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRecalculate")

	eventID := c.Param("eventID")
	count, err := h.svc.RecalculatePositions(c.Request.Context(), eventID)
	if err != nil {
		respondEngineError(c, logger, err, "Recalculation failed")
		return
	}

	logger.Info("Waitlist recalculated", "event_id", eventID, "count", count)
	c.JSON(http.StatusOK, RecalculateResponse{Count: count})
}

// HandleGetAttendee handles GET /v1/events/:eventID/attendees/:attendeeID.
//
// Description:
//
//	Returns one registration document including its append-only status
//	history.
//
// Response:
//
//	200 OK: AttendeeResponse
//	404 Not Found: Unknown attendee
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetAttendee(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetAttendee")

	att, err := h.svc.Attendee(c.Request.Context(), c.Param("eventID"), c.Param("attendeeID"))
	if err != nil {
		respondEngineError(c, logger, err, "Attendee lookup failed")
		return
	}

	c.JSON(http.StatusOK, NewAttendeeResponse(att))
}

// HandleWithdraw handles DELETE /v1/events/:eventID/attendees/:attendeeID.
//
// Description:
//
//	Deletes a registration. Withdrawing a primary removes its dependents
//	in the same transaction; freed capacity promotes the head of the
//	waitlist before the response is written.
//
// Headers:
//
//	X-User-ID - Recorded as the acting user. Optional.
//
// Response:
//
//	200 OK: empty object
//	404 Not Found: Unknown attendee
//	409 Conflict: Transaction conflict
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleWithdraw(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWithdraw")

	actor := c.GetHeader("X-User-ID")
	if actor == "" {
		actor = "anonymous"
	}

	eventID := c.Param("eventID")
	attendeeID := c.Param("attendeeID")
	if err := h.svc.Withdraw(c.Request.Context(), eventID, attendeeID, actor); err != nil {
		respondEngineError(c, logger, err, "Withdrawal failed")
		return
	}

	logger.Info("Attendee withdrawn", "event_id", eventID, "attendee_id", attendeeID, "actor", actor)
	c.JSON(http.StatusOK, gin.H{})
}

// HandleSetEventConfig handles PUT /v1/events/:eventID/config.
//
// Description:
//
//	Stores the event's capacity configuration. A capacity increase sweeps
//	the waitlist immediately, so newly opened seats promote without
//	waiting for the next withdrawal.
//
// Request Body:
//
//	EventConfigRequest
//
// Response:
//
//	200 OK: EventConfigResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSetEventConfig(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSetEventConfig")

	var req EventConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	eventID := c.Param("eventID")
	cfg, err := h.svc.SetEventConfig(c.Request.Context(), eventID, req.Capacity, req.WaitlistEnabled)
	if err != nil {
		respondEngineError(c, logger, err, "Event config update failed")
		return
	}

	logger.Info("Event configured",
		"event_id", eventID,
		"capacity", capacityLabel(cfg.Capacity),
		"waitlist_enabled", cfg.WaitlistEnabled,
	)
	h.respondEventConfig(c, logger, cfg)
}

// HandleGetEventConfig handles GET /v1/events/:eventID/config.
//
// Description:
//
//	Returns the stored capacity configuration plus the advisory occupancy
//	snapshot for display.
//
// Response:
//
//	200 OK: EventConfigResponse
//	404 Not Found: Unknown event
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetEventConfig(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetEventConfig")

	cfg, err := h.svc.EventConfig(c.Request.Context(), c.Param("eventID"))
	if err != nil {
		respondEngineError(c, logger, err, "Event config lookup failed")
		return
	}

	h.respondEventConfig(c, logger, cfg)
}

// HandlePurgeEvent handles DELETE /v1/events/:eventID.
//
// Description:
//
//	Removes every registration and the capacity configuration of one
//	event. Intended for event cancellation and test cleanup.
//
// Response:
//
//	200 OK: PurgeResponse
//	500 Internal Server Error: Store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandlePurgeEvent(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePurgeEvent")

	eventID := c.Param("eventID")
	removed, err := h.svc.PurgeEvent(c.Request.Context(), eventID)
	if err != nil {
		respondEngineError(c, logger, err, "Event purge failed")
		return
	}

	logger.Info("Event purged", "event_id", eventID, "removed", removed)
	c.JSON(http.StatusOK, PurgeResponse{EventID: eventID, Removed: removed})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.svc.Version(),
	})
}

// HandleReady handles GET /ready.
//
// Returns 200 when the store (and cache, when configured) answer probes,
// 503 otherwise.
func (h *Handlers) HandleReady(c *gin.Context) {
	storeOK, cacheOK := h.svc.Ready(c.Request.Context())
	resp := ReadyResponse{
		Ready:   storeOK && cacheOK,
		StoreOK: storeOK,
		CacheOK: cacheOK,
	}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// =============================================================================
// Helpers
// =============================================================================

// respondEventConfig merges the stored config with the advisory occupancy
// snapshot. The snapshot is display-only; a failed count degrades to zero
// values rather than failing the request.
func (h *Handlers) respondEventConfig(c *gin.Context, logger *slog.Logger, cfg attendee.EventConfig) {
	state, err := h.svc.Capacity(c.Request.Context(), cfg.EventID)
	if err != nil {
		logger.Warn("Advisory capacity read failed", "event_id", cfg.EventID, "error", err)
	}
	c.JSON(http.StatusOK, EventConfigResponse{
		EventID:         cfg.EventID,
		Capacity:        cfg.Capacity,
		WaitlistEnabled: cfg.WaitlistEnabled,
		GoingCount:      state.GoingCount,
		HasRoom:         state.HasRoom,
		UpdatedAt:       cfg.UpdatedAt,
	})
}

// respondEngineError maps engine sentinels onto HTTP statuses and error
// codes. Business-rule rejections keep their specific codes; only unknown
// failures degrade to 500 INTERNAL.
func respondEngineError(c *gin.Context, logger *slog.Logger, err error, msg string) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL"

	if errors.Is(err, engine.ErrWaitlistConflict) {
		statusCode = http.StatusConflict
		errCode = "WAITLIST_CONFLICT"
		c.Header("Retry-After", strconv.Itoa(conflictRetryAfterSeconds))
	} else if errors.Is(err, engine.ErrCapacityExceeded) {
		statusCode = http.StatusConflict
		errCode = "CAPACITY_EXCEEDED"
	} else if errors.Is(err, engine.ErrPrimaryNotGoing) {
		statusCode = http.StatusConflict
		errCode = "PRIMARY_NOT_GOING"
	} else if errors.Is(err, engine.ErrFamilyLimitExceeded) {
		statusCode = http.StatusConflict
		errCode = "FAMILY_LIMIT_EXCEEDED"
	} else if errors.Is(err, engine.ErrInvalidStatusTransition) {
		statusCode = http.StatusBadRequest
		errCode = "INVALID_STATUS_TRANSITION"
	} else if errors.Is(err, engine.ErrAttendeeNotFound) {
		statusCode = http.StatusNotFound
		errCode = "ATTENDEE_NOT_FOUND"
	} else if errors.Is(err, engine.ErrEventNotFound) {
		statusCode = http.StatusNotFound
		errCode = "EVENT_NOT_FOUND"
	}

	if statusCode == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Warn(msg, "error", err, "code", errCode)
	}
	c.JSON(statusCode, ErrorResponse{
		Error: err.Error(),
		Code:  errCode,
	})
}

// capacityLabel renders a nullable capacity for log lines.
func capacityLabel(capacity *int) string {
	if capacity == nil {
		return "unlimited"
	}
	return strconv.Itoa(*capacity)
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
