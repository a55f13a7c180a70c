// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gather is the CLI for the AleutianGather RSVP service.
//
// It talks to a running rsvp server (see cmd/rsvp) over HTTP and covers
// the day-to-day operations: configuring events, setting RSVPs,
// inspecting waitlists, and withdrawing attendees.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGather/cmd/gather/config"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := config.Load(); err != nil {
			log.Fatalf("Error loading gather config: %v", err)
		}
	}
}
