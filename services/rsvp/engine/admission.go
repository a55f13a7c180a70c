// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianGather/services/rsvp/attendee"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// Request asks the engine to settle a status for one attendee.
type Request struct {
	// EventID and UserID identify the registration. Both required.
	EventID string
	UserID  string

	// AttendeeID addresses an existing row directly; required for
	// operations on dependents that already exist. When set, the stored
	// attendee type is authoritative and Type is ignored. When empty, the
	// request targets the user's primary registration, creating it on
	// first contact.
	AttendeeID string

	// Type selects what to create when no row exists yet. Defaults to
	// primary. A new dependent is created by a going request with
	// Type=dependent and no AttendeeID.
	Type attendee.Type

	// DisplayName names a newly created dependent. Ignored otherwise.
	DisplayName string

	// Status is the requested settled status. Only going and not-going
	// may be requested; pending and waitlisted are engine outcomes.
	Status attendee.Status

	// Actor is recorded in the status history. Defaults to UserID.
	Actor string
}

func (r Request) withDefaults() Request {
	if r.Type == "" {
		r.Type = attendee.TypePrimary
	}
	if r.Actor == "" {
		r.Actor = r.UserID
	}
	return r
}

func (r Request) validate() error {
	if r.EventID == "" {
		return fmt.Errorf("event id is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("unknown attendee type %q", r.Type)
	}
	if !r.Status.Requestable() {
		return fmt.Errorf("status %q cannot be requested directly: %w", r.Status, ErrInvalidStatusTransition)
	}
	return nil
}

// Result reports the settled outcome of a Request.
type Result struct {
	// Attendee is a deep copy of the settled document.
	Attendee *attendee.Attendee `json:"attendee"`

	// Status is the settled status, which for a going request may be
	// waitlisted: queueing is an admission outcome, not a rejection.
	Status attendee.Status `json:"status"`

	// Position is the waitlist position; zero unless Status is waitlisted.
	Position int `json:"position,omitempty"`

	// Created reports that this request created the registration.
	Created bool `json:"created"`

	// Changed is false when the request was an idempotent repeat and
	// nothing was written.
	Changed bool `json:"changed"`
}

func resultFor(att *attendee.Attendee, created, changed bool) Result {
	return Result{
		Attendee: att.Clone(),
		Status:   att.Status,
		Position: att.Position(),
		Created:  created,
		Changed:  changed,
	}
}

// Admission decisions, recorded per request for metrics.
const (
	decisionAdmitted   = "admitted"
	decisionWaitlisted = "waitlisted"
	decisionDeclined   = "declined"
	decisionUnchanged  = "unchanged"
)

// AdmissionController settles requested status changes: immediate admit,
// waitlist, or reject. It orchestrates the capacity oracle and the waitlist
// ledger inside one transaction per request, so the capacity reading that
// justifies an admit cannot go stale before the commit.
type AdmissionController struct {
	eng *Engine
}

// RequestStatus settles one requested status change.
//
// # Description
//
// Decision rules:
//
//   - not-going: always granted. A waitlisted attendee's slot is released
//     and the remaining positions compacted in the same transaction.
//   - going, dependent: capacity is never checked (families are not split);
//     admission is gated only by the cascade rules: the primary must be
//     going and under the dependent ceiling.
//   - going, primary: admitted when the transactional capacity reading has
//     room; otherwise queued on the waitlist when the event enables one
//     (and an already waitlisted requester keeps their held slot); otherwise
//     rejected with ErrCapacityExceeded.
//
// Repeating a request that matches the settled state is an idempotent no-op
// with Changed=false.
//
// # Outputs
//
//   - *Result: The settled outcome; Status may be waitlisted for a going
//     request.
//   - error: ErrEventNotFound, ErrAttendeeNotFound,
//     ErrInvalidStatusTransition, ErrPrimaryNotGoing,
//     ErrFamilyLimitExceeded, ErrCapacityExceeded, or the retryable
//     ErrWaitlistConflict.
func (ac *AdmissionController) RequestStatus(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	cfg, err := ac.eng.eventConfig(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	var tier attendee.Tier
	if req.Status == attendee.StatusGoing {
		tier = ac.eng.userTier(ctx, req.UserID)
	}

	var res Result
	var st *Settlement
	decision := decisionUnchanged
	err = ac.eng.runTxn(ctx, "admission.RequestStatus", req.EventID, func(txn *badger.Txn) error {
		res = Result{}
		st = nil
		decision = decisionUnchanged
		now := ac.eng.now()

		att, created, err := ac.resolveAttendee(txn, req, now)
		if err != nil {
			return err
		}
		old := att.Status

		switch {
		case req.Status == attendee.StatusNotGoing:
			if !created && old == attendee.StatusNotGoing {
				res = resultFor(att, created, false)
				return nil
			}
			if att.IsWaitlisted() {
				if err := ac.eng.ledger.removeAndCompact(txn, att, now); err != nil {
					return err
				}
			}
			att.Settle(attendee.StatusNotGoing, req.Actor, now)
			decision = decisionDeclined

		case att.Type == attendee.TypeDependent:
			if err := ac.eng.cascade.preAdmit(txn, req.EventID, req.UserID, att.AttendeeID); err != nil {
				return err
			}
			if !created && old == attendee.StatusGoing {
				res = resultFor(att, created, false)
				return nil
			}
			att.Settle(attendee.StatusGoing, req.Actor, now)
			decision = decisionAdmitted

		default:
			if !created && old == attendee.StatusGoing {
				res = resultFor(att, created, false)
				return nil
			}
			state, err := ac.eng.oracle.State(txn, cfg)
			if err != nil {
				return err
			}

			switch {
			case state.HasRoom:
				if att.IsWaitlisted() {
					if err := ac.eng.ledger.removeAndCompact(txn, att, now); err != nil {
						return err
					}
				}
				att.Settle(attendee.StatusGoing, req.Actor, now)
				decision = decisionAdmitted
			case att.IsWaitlisted():
				// Still full; the held slot stands.
				res = resultFor(att, created, false)
				return nil
			case cfg.WaitlistEnabled:
				if _, err := ac.eng.ledger.place(txn, att, tier, now); err != nil {
					return err
				}
				att.Settle(attendee.StatusWaitlisted, req.Actor, now)
				decision = decisionWaitlisted
			default:
				return fmt.Errorf("event %s is full at %d going: %w",
					req.EventID, state.GoingCount, ErrCapacityExceeded)
			}
		}

		if err := store.PutAttendee(txn, att); err != nil {
			return err
		}
		res = resultFor(att, created, true)
		st = &Settlement{
			EventID:    req.EventID,
			UserID:     req.UserID,
			AttendeeID: att.AttendeeID,
			Type:       att.Type,
			Old:        old,
			New:        att.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ac.eng.metrics.AdmissionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("decision", decision)))
	ac.eng.logger.InfoContext(ctx, "status settled",
		slog.String("event_id", req.EventID),
		slog.String("user_id", req.UserID),
		slog.String("attendee_id", res.Attendee.AttendeeID),
		slog.String("requested", string(req.Status)),
		slog.String("settled", string(res.Status)),
		slog.String("decision", decision))

	if st != nil {
		ac.eng.hooks.Notify(ctx, *st)
	}
	return &res, nil
}

// resolveAttendee loads the row the request addresses, creating one when the
// request is the user's first RSVP action. A new dependent can only come
// into existence through a going request; everything else it might need
// (primary going, headroom under the ceiling) is checked by preAdmit in the
// same transaction.
func (ac *AdmissionController) resolveAttendee(txn *badger.Txn, req Request, now time.Time) (*attendee.Attendee, bool, error) {
	if req.AttendeeID != "" {
		att, err := store.GetAttendee(txn, req.EventID, req.AttendeeID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("attendee %s on event %s: %w",
				req.AttendeeID, req.EventID, ErrAttendeeNotFound)
		}
		if err != nil {
			return nil, false, err
		}
		if att.UserID != req.UserID {
			// Rows are only addressable by their owning user.
			return nil, false, fmt.Errorf("attendee %s on event %s: %w",
				req.AttendeeID, req.EventID, ErrAttendeeNotFound)
		}
		return att, false, nil
	}

	if req.Type == attendee.TypeDependent {
		if req.Status != attendee.StatusGoing {
			return nil, false, fmt.Errorf("a new dependent can only be registered as going: %w",
				ErrInvalidStatusTransition)
		}
		att := attendee.New(req.EventID, req.UserID, attendee.TypeDependent, now)
		att.DisplayName = req.DisplayName
		return att, true, nil
	}

	att, err := store.FindPrimary(txn, req.EventID, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return attendee.New(req.EventID, req.UserID, attendee.TypePrimary, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return att, false, nil
}

// Withdraw deletes an attendee's registration entirely. A waitlisted slot is
// released and compacted first; withdrawing a primary also deletes every
// dependent registered under it. The settlement is published with
// Removed=true, so a withdrawn going primary still triggers a promotion
// sweep.
func (ac *AdmissionController) Withdraw(ctx context.Context, eventID, attendeeID, actor string) error {
	var st *Settlement
	removedDeps := 0
	err := ac.eng.runTxn(ctx, "admission.Withdraw", eventID, func(txn *badger.Txn) error {
		st = nil
		removedDeps = 0
		now := ac.eng.now()

		att, err := store.GetAttendee(txn, eventID, attendeeID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("attendee %s on event %s: %w", attendeeID, eventID, ErrAttendeeNotFound)
		}
		if err != nil {
			return err
		}

		if att.IsWaitlisted() {
			if err := ac.eng.ledger.removeAndCompact(txn, att, now); err != nil {
				return err
			}
		}
		if att.Type == attendee.TypePrimary {
			deps, err := store.ListDependents(txn, eventID, att.UserID)
			if err != nil {
				return err
			}
			for _, d := range deps {
				if err := store.DeleteAttendee(txn, eventID, d.AttendeeID); err != nil {
					return err
				}
				removedDeps++
			}
		}
		if err := store.DeleteAttendee(txn, eventID, att.AttendeeID); err != nil {
			return err
		}

		st = &Settlement{
			EventID:    eventID,
			UserID:     att.UserID,
			AttendeeID: att.AttendeeID,
			Type:       att.Type,
			Old:        att.Status,
			Removed:    true,
		}
		return nil
	})
	if err != nil {
		return err
	}

	ac.eng.logger.InfoContext(ctx, "registration withdrawn",
		slog.String("event_id", eventID),
		slog.String("attendee_id", attendeeID),
		slog.String("actor", actor),
		slog.Int("removed_dependents", removedDeps))

	if st != nil {
		ac.eng.hooks.Notify(ctx, *st)
	}
	return nil
}
