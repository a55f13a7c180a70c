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

	"github.com/AleutianAI/AleutianGather/cmd/gather/config"
)

// resolveUser returns the member ID for the current command: the --user
// flag when given, otherwise defaults.user_id from the config file.
func resolveUser() string {
	if userID != "" {
		return userID
	}
	if config.Global.Defaults.UserID != "" {
		return config.Global.Defaults.UserID
	}
	log.Fatal("No member ID: pass --user or set defaults.user_id in ~/.gather/gather.yaml")
	return ""
}

func runSetRSVP(cmd *cobra.Command, args []string) {
	eventID := args[0]
	status := args[1]
	if status != "going" && status != "not-going" {
		log.Fatalf("Invalid status %q: must be going or not-going", status)
	}

	req := statusRequest{
		UserID:       resolveUser(),
		AttendeeID:   attendeeID,
		AttendeeType: attendeeType,
		DisplayName:  displayName,
		Status:       status,
	}

	client := newAPIClient()
	resp, err := client.setRSVP(eventID, req)
	if err != nil {
		OutputError("Failed to set the RSVP", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	fmt.Printf("RSVP recorded for %s: %s\n", resp.AttendeeID, resp.Status)
	if resp.WaitlistPosition != nil {
		fmt.Printf("  The event is full; waitlist position %d\n", *resp.WaitlistPosition)
	}
	if !resp.Changed && !resp.Created {
		fmt.Println("  (no change: the registration was already in this state)")
	}
}
