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
	"log"

	"github.com/spf13/cobra"
)

func runSetEventConfig(cmd *cobra.Command, args []string) {
	eventID := args[0]

	req := eventConfigRequest{WaitlistEnabled: !noWaitlist}
	if capacity >= 0 {
		req.Capacity = &capacity
	}

	client := newAPIClient()
	resp, err := client.setEventConfig(eventID, req)
	if err != nil {
		OutputError("Failed to set the event config", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	fmt.Printf("Event %s configured\n", resp.EventID)
	fmt.Printf("  Capacity:  %s\n", capacityString(resp.Capacity))
	fmt.Printf("  Waitlist:  %v\n", resp.WaitlistEnabled)
	fmt.Printf("  Going:     %d\n", resp.GoingCount)
}

func runGetEventConfig(cmd *cobra.Command, args []string) {
	eventID := args[0]

	client := newAPIClient()
	resp, err := client.eventConfig(eventID)
	if err != nil {
		OutputError("Failed to fetch the event config", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	fmt.Printf("Event %s\n", resp.EventID)
	fmt.Printf("  Capacity:  %s\n", capacityString(resp.Capacity))
	fmt.Printf("  Waitlist:  %v\n", resp.WaitlistEnabled)
	fmt.Printf("  Going:     %d\n", resp.GoingCount)
	if resp.HasRoom {
		fmt.Println("  Room:      yes")
	} else {
		fmt.Println("  Room:      no (new going RSVPs will waitlist or be rejected)")
	}
}

func runPurgeEvent(cmd *cobra.Command, args []string) {
	eventID := args[0]

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		log.Fatalf("Purging deletes every registration for %s. Re-run with --force to confirm.", eventID)
	}

	client := newAPIClient()
	resp, err := client.purgeEvent(eventID)
	if err != nil {
		OutputError("Failed to purge the event", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	fmt.Printf("Purged event %s (%d records removed)\n", resp.EventID, resp.Removed)
}
