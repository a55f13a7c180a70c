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
	"os"

	"github.com/spf13/cobra"
)

// healthReport combines liveness and readiness into one view.
type healthReport struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
	StoreOK bool   `json:"store_ok"`
	CacheOK bool   `json:"cache_ok"`
}

func runHealth(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	health, err := client.health()
	if err != nil {
		OutputError("The rsvp server is unreachable", err)
	}
	ready, err := client.ready()
	if err != nil {
		OutputError("Failed to read server readiness", err)
	}

	report := healthReport{
		Status:  health.Status,
		Version: health.Version,
		Ready:   ready.Ready,
		StoreOK: ready.StoreOK,
		CacheOK: ready.CacheOK,
	}

	if jsonMode() {
		OutputJSON(report)
		if !report.Ready {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Server:  %s (version %s)\n", report.Status, report.Version)
	fmt.Printf("  Store: %s\n", okString(report.StoreOK))
	fmt.Printf("  Cache: %s\n", okString(report.CacheOK))
	if report.Ready {
		fmt.Println("Ready to serve traffic")
	} else {
		fmt.Println("NOT ready to serve traffic")
		os.Exit(1)
	}
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "DOWN"
}
