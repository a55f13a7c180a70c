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
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianGather/cmd/gather/config"
)

// jsonMode reports whether results should render as JSON. The --json
// flag wins; otherwise the config file's output.json setting applies.
func jsonMode() bool {
	return jsonOutput || config.Global.Output.JSON
}

// OutputJSON writes structured data as indented JSON to stdout.
//
// # Inputs
//
//   - data: The data to encode. Must be JSON-serializable.
//
// # Outputs
//
//   - error: Non-nil if encoding fails.
func OutputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// OutputError writes an error in the appropriate format and exits.
//
// In JSON mode the error goes to stdout as a machine-readable object so
// scripts never have to parse stderr. Otherwise it is a plain stderr line.
//
// # Inputs
//
//   - msg: Human-readable context for the failure.
//   - err: The underlying error.
func OutputError(msg string, err error) {
	if jsonMode() {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(map[string]string{
			"error": fmt.Sprintf("%s: %v", msg, err),
		})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	}
	os.Exit(1)
}

// capacityString renders a nullable capacity for human output.
func capacityString(capacity *int) string {
	if capacity == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d", *capacity)
}
