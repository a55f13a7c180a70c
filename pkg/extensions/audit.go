// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents one RSVP state transition or admin action for
// compliance logging.
//
// This struct captures the essential information needed for attendance
// audits, dispute resolution ("I was promoted, then bumped"), and incident
// investigation.
//
// # Event Categories
//
// Events are categorized by type for filtering and alerting:
//   - RSVP: "rsvp.settle", "rsvp.withdraw"
//   - Waitlist: "waitlist.join", "waitlist.leave", "waitlist.promote",
//     "waitlist.recalculate"
//   - Admin: "event.config", "event.purge"
//
// # Compliance Fields
//
// For dispute resolution, always populate:
//   - UserID: whose registration changed
//   - Timestamp: required for audit trail integrity
//   - ResourceType/ResourceID: required for data lineage
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "waitlist.promote",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       settlement.UserID,
//	    Action:       "promote",
//	    ResourceType: "attendee",
//	    ResourceID:   settlement.AttendeeID,
//	    Outcome:      "success",
//	    Metadata: map[string]any{
//	        "event_id":   settlement.EventID,
//	        "old_status": "waitlisted",
//	        "new_status": "going",
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event for filtering and alerting.
	// Format: "category.action" (e.g., "rsvp.settle", "waitlist.promote")
	EventType string

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies whose registration the action touched.
	// Use "system" for automated actions such as cascade writes.
	UserID string

	// Action describes what operation was attempted.
	// Common values: "settle", "join", "leave", "promote", "withdraw",
	// "configure", "purge"
	Action string

	// ResourceType is the category of resource involved.
	// Examples: "attendee", "event", "waitlist"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	// Examples: an attendee ID, an event ID.
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "rejected", "error"
	Outcome string

	// Metadata holds additional event-specific data.
	//
	// Common metadata keys:
	//   - "event_id": the event the registration belongs to
	//   - "old_status"/"new_status": the settled transition
	//   - "position": assigned waitlist position
	//   - "error": error message if Outcome is "error"
	Metadata map[string]any
}

// AuditLogger records RSVP transitions and admin actions for compliance.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The Log method is invoked from the settlement hook bus after commits and
// must return quickly; buffer and ship asynchronously if the backend is
// slow.
//
// # Open Source Behavior
//
// The default NopAuditLogger discards all events. This is appropriate for
// small community deployments where audit trails aren't required. The
// SlogAuditLogger writes events through the service's structured logger
// and is enabled with a flag.
//
// # Hosted Implementation
//
// Hosted versions send events to SIEM systems or compliance databases.
//
// # Async vs Sync Logging
//
// Implementations may choose sync or async logging. For dispute-critical
// events (promotions, withdrawals) sync logging is recommended; call Flush
// before shutdown either way.
type AuditLogger interface {
	// Log records one audit event.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - event: The audit event to record
	//
	// Returns:
	//   - error: nil on success, error if logging failed
	//
	// Implementations should set Timestamp if zero and return quickly.
	Log(ctx context.Context, event AuditEvent) error

	// Flush ensures all buffered events are persisted.
	//
	// Call this before application shutdown to prevent event loss.
	// For sync implementations, this may be a no-op.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger for open source.
//
// It discards all events without recording them.
//
// Thread-safe: This implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// SlogAuditLogger writes audit events through a structured logger.
//
// This is the shipped implementation for deployments that want an audit
// trail without a SIEM: events land in the service log stream (and log
// file, when file logging is enabled) as one record per event under the
// "audit" message.
//
// Thread-safe: slog handlers serialize writes.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger builds an audit logger over the given slog logger.
// A nil logger falls back to slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger}
}

// Log writes the event as one structured record.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.logger.InfoContext(ctx, "audit",
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("user_id", event.UserID),
		slog.String("action", event.Action),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
		slog.Any("metadata", event.Metadata),
	)
	return nil
}

// Flush is a no-op; slog handlers write synchronously.
func (l *SlogAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
