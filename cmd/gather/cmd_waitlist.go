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
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runWaitlistList(cmd *cobra.Command, args []string) {
	eventID := args[0]

	client := newAPIClient()
	resp, err := client.waitlist(eventID)
	if err != nil {
		OutputError("Failed to fetch the waitlist", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	if len(resp.Entries) == 0 {
		fmt.Printf("The waitlist for %s is empty\n", resp.EventID)
		return
	}
	fmt.Printf("Waitlist for %s (%d waiting)\n", resp.EventID, len(resp.Entries))
	for _, entry := range resp.Entries {
		name := entry.DisplayName
		if name == "" {
			name = entry.UserID
		}
		fmt.Printf("  %3d. %s (joined %s)\n", entry.Position, name, entry.JoinedAt.Format("2006-01-02 15:04"))
	}
}

func runWaitlistJoin(cmd *cobra.Command, args []string) {
	eventID := args[0]
	user := resolveUser()

	client := newAPIClient()
	resp, err := client.joinWaitlist(eventID, user)
	if err != nil {
		OutputError("Failed to join the waitlist", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	fmt.Printf("%s joined the waitlist for %s at position %d\n", user, eventID, resp.Position)
}

func runWaitlistLeave(cmd *cobra.Command, args []string) {
	eventID := args[0]
	user := resolveUser()

	client := newAPIClient()
	if err := client.leaveWaitlist(eventID, user); err != nil {
		OutputError("Failed to leave the waitlist", err)
	}

	if jsonMode() {
		OutputJSON(map[string]string{"eventId": eventID, "userId": user, "status": "left"})
		return
	}
	fmt.Printf("%s left the waitlist for %s\n", user, eventID)
}

func runWaitlistPosition(cmd *cobra.Command, args []string) {
	eventID := args[0]
	user := resolveUser()

	client := newAPIClient()
	resp, err := client.waitlistPosition(eventID, user)
	if err != nil {
		OutputError("Failed to fetch the waitlist position", err)
	}

	if jsonMode() {
		OutputJSON(resp)
		return
	}
	if resp.Position == nil {
		fmt.Printf("%s is not on the waitlist for %s\n", user, eventID)
		return
	}
	fmt.Printf("%s is at position %d for %s\n", user, *resp.Position, eventID)
}

// recalcResult pairs an event with its repair outcome for ordered output.
type recalcResult struct {
	EventID string `json:"eventId"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

func runWaitlistRecalc(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	// Repair the events concurrently. Each event's sweep is independent,
	// so a slow or failing event doesn't hold up the rest.
	var (
		mu      sync.Mutex
		results []recalcResult
	)
	var g errgroup.Group
	g.SetLimit(4)
	for _, eventID := range args {
		eventID := eventID
		g.Go(func() error {
			resp, err := client.recalculate(eventID)
			result := recalcResult{EventID: eventID, Count: resp.Count}
			if err != nil {
				result.Error = err.Error()
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].EventID < results[j].EventID })

	if jsonMode() {
		OutputJSON(results)
		return
	}
	failures := 0
	for _, r := range results {
		if r.Error != "" {
			failures++
			fmt.Printf("  %s: FAILED: %s\n", r.EventID, r.Error)
			continue
		}
		fmt.Printf("  %s: %d waiting\n", r.EventID, r.Count)
	}
	if failures > 0 {
		OutputError("Recalculation failed", fmt.Errorf("%d of %d events failed", failures, len(results)))
	}
}
