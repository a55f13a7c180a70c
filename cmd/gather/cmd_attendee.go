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
	"fmt"

	"github.com/spf13/cobra"
)

func runAttendeeShow(cmd *cobra.Command, args []string) {
	eventID := args[0]
	attendee := args[1]

	client := newAPIClient()
	resp, err := client.attendee(eventID, attendee)
	if err != nil {
		OutputError("Failed to fetch the registration", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	fmt.Printf("Registration %s (event %s)\n", resp.AttendeeID, resp.EventID)
	fmt.Printf("  Member:   %s\n", resp.UserID)
	fmt.Printf("  Type:     %s\n", resp.AttendeeType)
	if resp.DisplayName != "" {
		fmt.Printf("  Name:     %s\n", resp.DisplayName)
	}
	fmt.Printf("  Status:   %s\n", resp.Status)
	if resp.WaitlistPosition != nil {
		fmt.Printf("  Waitlist: position %d\n", *resp.WaitlistPosition)
	}
	if resp.PromotedAt != nil {
		fmt.Printf("  Promoted: %s\n", resp.PromotedAt.Format("2006-01-02 15:04:05"))
	}
	if len(resp.History) > 0 {
		fmt.Println("  History:")
		for _, change := range resp.History {
			fmt.Printf("    %s  %-10s by %s\n",
				change.ChangedAt.Format("2006-01-02 15:04:05"), change.Status, change.ChangedBy)
		}
	}
}

func runAttendeeWithdraw(cmd *cobra.Command, args []string) {
	eventID := args[0]
	attendee := args[1]

	client := newAPIClient()
	if err := client.withdraw(eventID, attendee, actorID); err != nil {
		OutputError("Failed to withdraw the registration", err)
	}

	if jsonMode() {
		OutputJSON(map[string]string{"eventId": eventID, "attendeeId": attendee, "status": "withdrawn"})
		return
	}
	fmt.Printf("Withdrew %s from %s\n", attendee, eventID)
}
