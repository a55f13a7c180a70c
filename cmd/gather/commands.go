// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL    string // CLI override for server.base_url
	jsonOutput   bool   // render results as JSON
	userID       string
	attendeeID   string
	attendeeType string
	displayName  string
	actorID      string
	capacity     int
	noWaitlist   bool

	rootCmd = &cobra.Command{
		Use:   "gather",
		Short: "A cli to manage events on a Gather RSVP server",
		Long: `Gather manages capacity-constrained events: RSVPs, tier-prioritized
				waitlists, family dependents, and promotions. It talks to a running
				rsvp server (see the rsvp binary).`,
	}

	// --- Events ---
	eventCmd = &cobra.Command{
		Use:   "event",
		Short: "Configure and administer events",
	}
	setEventConfigCmd = &cobra.Command{
		Use:   "set-config [event-id]",
		Short: "Set an event's capacity and waitlist policy",
		Args:  cobra.ExactArgs(1),
		Run:   runSetEventConfig, // Defined in cmd_event.go
	}
	getEventConfigCmd = &cobra.Command{
		Use:   "get-config [event-id]",
		Short: "Show an event's configuration and current occupancy",
		Args:  cobra.ExactArgs(1),
		Run:   runGetEventConfig, // Defined in cmd_event.go
	}
	purgeEventCmd = &cobra.Command{
		Use:   "purge [event-id]",
		Short: "DANGER: Deletes an event's config AND every registration",
		Args:  cobra.ExactArgs(1),
		Run:   runPurgeEvent, // Defined in cmd_event.go
	}

	// --- RSVP ---
	rsvpCmd = &cobra.Command{
		Use:   "rsvp",
		Short: "Manage RSVPs",
	}
	setRSVPCmd = &cobra.Command{
		Use:   "set [event-id] [going|not-going]",
		Short: "Set an attendee's RSVP status",
		Args:  cobra.ExactArgs(2),
		Run:   runSetRSVP, // Defined in cmd_rsvp.go
	}

	// --- Waitlist ---
	waitlistCmd = &cobra.Command{
		Use:   "waitlist",
		Short: "Inspect and manage event waitlists",
	}
	waitlistListCmd = &cobra.Command{
		Use:   "list [event-id]",
		Short: "List the waitlist in position order",
		Args:  cobra.ExactArgs(1),
		Run:   runWaitlistList, // Defined in cmd_waitlist.go
	}
	waitlistJoinCmd = &cobra.Command{
		Use:   "join [event-id]",
		Short: "Join an event's waitlist",
		Args:  cobra.ExactArgs(1),
		Run:   runWaitlistJoin, // Defined in cmd_waitlist.go
	}
	waitlistLeaveCmd = &cobra.Command{
		Use:   "leave [event-id]",
		Short: "Leave an event's waitlist",
		Args:  cobra.ExactArgs(1),
		Run:   runWaitlistLeave, // Defined in cmd_waitlist.go
	}
	waitlistPositionCmd = &cobra.Command{
		Use:   "position [event-id]",
		Short: "Show a member's waitlist position",
		Args:  cobra.ExactArgs(1),
		Run:   runWaitlistPosition, // Defined in cmd_waitlist.go
	}
	waitlistRecalcCmd = &cobra.Command{
		Use:   "recalc [event-id...]",
		Short: "Repair waitlist positions for one or more events",
		Args:  cobra.MinimumNArgs(1),
		Run:   runWaitlistRecalc, // Defined in cmd_waitlist.go
	}

	// --- Attendees ---
	attendeeCmd = &cobra.Command{
		Use:   "attendee",
		Short: "Inspect and withdraw individual registrations",
	}
	attendeeShowCmd = &cobra.Command{
		Use:   "show [event-id] [attendee-id]",
		Short: "Show a registration with its status history",
		Args:  cobra.ExactArgs(2),
		Run:   runAttendeeShow, // Defined in cmd_attendee.go
	}
	attendeeWithdrawCmd = &cobra.Command{
		Use:   "withdraw [event-id] [attendee-id]",
		Short: "Withdraw a registration (a primary takes its dependents along)",
		Args:  cobra.ExactArgs(2),
		Run:   runAttendeeWithdraw, // Defined in cmd_attendee.go
	}

	// --- Server ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check the rsvp server's health and readiness",
		Run:   runHealth, // Defined in cmd_health.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"RSVP server base URL (overrides GATHER_SERVER_URL and ~/.gather/gather.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON (for scripting)")

	// event commands
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(setEventConfigCmd)
	setEventConfigCmd.Flags().IntVar(&capacity, "capacity", -1,
		"Maximum going count (-1 for unlimited)")
	setEventConfigCmd.Flags().BoolVar(&noWaitlist, "no-waitlist", false,
		"Reject over-capacity RSVPs instead of waitlisting them")
	eventCmd.AddCommand(getEventConfigCmd)
	eventCmd.AddCommand(purgeEventCmd)
	purgeEventCmd.Flags().Bool("force", false, "Required to confirm the deletion of all registrations.")

	// rsvp commands
	rootCmd.AddCommand(rsvpCmd)
	rsvpCmd.AddCommand(setRSVPCmd)
	setRSVPCmd.Flags().StringVar(&userID, "user", "", "Member ID making the RSVP")
	setRSVPCmd.Flags().StringVar(&attendeeID, "attendee-id", "",
		"Attendee ID (defaults to the member ID; set for dependents)")
	setRSVPCmd.Flags().StringVar(&attendeeType, "type", "primary",
		"Attendee type: primary or dependent")
	setRSVPCmd.Flags().StringVar(&displayName, "name", "", "Display name for the attendee")

	// waitlist commands
	rootCmd.AddCommand(waitlistCmd)
	waitlistCmd.AddCommand(waitlistListCmd)
	waitlistCmd.AddCommand(waitlistJoinCmd)
	waitlistJoinCmd.Flags().StringVar(&userID, "user", "", "Member ID joining the waitlist")
	waitlistCmd.AddCommand(waitlistLeaveCmd)
	waitlistLeaveCmd.Flags().StringVar(&userID, "user", "", "Member ID leaving the waitlist")
	waitlistCmd.AddCommand(waitlistPositionCmd)
	waitlistPositionCmd.Flags().StringVar(&userID, "user", "", "Member ID to look up")
	waitlistCmd.AddCommand(waitlistRecalcCmd)

	// attendee commands
	rootCmd.AddCommand(attendeeCmd)
	attendeeCmd.AddCommand(attendeeShowCmd)
	attendeeCmd.AddCommand(attendeeWithdrawCmd)
	attendeeWithdrawCmd.Flags().StringVar(&actorID, "actor", "",
		"Member ID performing the withdrawal (recorded in the status history)")

	// server commands
	rootCmd.AddCommand(healthCmd)
}
