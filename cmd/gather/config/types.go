// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

type GatherConfig struct {
	// Server: where the rsvp API lives
	Server ServerConfig `yaml:"server"`

	// Defaults: values used when the matching flag is omitted
	Defaults DefaultsConfig `yaml:"defaults"`

	// Output: how command results are rendered
	Output OutputConfig `yaml:"output"`
}

type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`        // e.g. http://localhost:8080
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-request HTTP timeout
}

type DefaultsConfig struct {
	// UserID is used for --user when the flag is omitted. Handy for a
	// single-member laptop setup.
	UserID string `yaml:"user_id"`
}

type OutputConfig struct {
	// JSON renders results as JSON instead of human-readable text.
	JSON bool `yaml:"json"`
}

func DefaultConfig() GatherConfig {
	return GatherConfig{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 10,
		},
		Defaults: DefaultsConfig{},
		Output:   OutputConfig{JSON: false},
	}
}
