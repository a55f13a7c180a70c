// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for external collaborators.
//
// The RSVP service is a self-contained admission engine: it decides who is
// admitted, who waits, and in what order. Everything around that decision
// (compliance audit trails, member-facing delivery of outcomes) belongs to
// systems that vary per deployment. This package provides the extension
// points those systems plug into. The open source version uses no-op
// defaults for all interfaces.
//
// # Design Philosophy
//
// AleutianGather is designed as a fully functional local service that
// works without any external dependencies. Hosted features are implemented
// by providing concrete implementations of these interfaces and injecting
// them via ServiceOptions.
//
// # Extension Categories
//
// The package is organized by domain:
//
//   - audit.go: Compliance audit logging (AuditLogger)
//   - notify.go: Member-facing delivery of RSVP outcomes (Notifier)
//
// # Usage (Open Source)
//
// The open source version uses no-op implementations:
//
//	opts := extensions.DefaultOptions()
//	service := rsvp.NewService(config, opts)
//
// # Usage (Hosted)
//
// Hosted deployments provide concrete implementations:
//
//	opts := extensions.ServiceOptions{
//	    AuditLogger: hosted.NewSplunkAuditor(config),
//	    Notifier:    hosted.NewPushGateway(config),
//	}
//	service := rsvp.NewService(config, opts)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use. The
// settlement hook bus invokes them from whichever goroutine committed the
// triggering transaction.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors to attach deployment-specific
// collaborators. All fields are optional; nil values are replaced with
// no-op defaults when DefaultOptions() is called or when services check
// for nil.
//
// Example:
//
//	// Open source: use defaults
//	opts := extensions.DefaultOptions()
//
//	// Hosted: inject implementations
//	opts := extensions.ServiceOptions{
//	    AuditLogger: splunkAuditor,
//	    Notifier:    pushGateway,
//	}
type ServiceOptions struct {
	// AuditLogger records RSVP state transitions and admin actions.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// Notifier delivers RSVP outcomes to members, most importantly
	// waitlist promotions. Default: NopNotifier (discards all sends)
	Notifier Notifier
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version: no audit
// trail, no member notifications.
//
// Returns:
//   - ServiceOptions with all fields set to no-op implementations
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuditLogger: &NopAuditLogger{},
		Notifier:    &NopNotifier{},
	}
}

// WithAudit returns a copy of opts with the given AuditLogger.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithNotifier returns a copy of opts with the given Notifier.
func (opts ServiceOptions) WithNotifier(n Notifier) ServiceOptions {
	opts.Notifier = n
	return opts
}
