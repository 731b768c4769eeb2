// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the fieldscope CLI configuration from
// ~/.fieldscope/fieldscope.yaml, creating a default file on first run.
package config

// FieldScopeConfig is the on-disk CLI configuration.
type FieldScopeConfig struct {
	// Server holds the catalog server connection settings.
	Server ServerConfig `yaml:"server"`

	// Observe holds defaults for the observe command.
	Observe ObserveConfig `yaml:"observe"`

	// Logging holds CLI log settings.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig describes how the CLI reaches the catalog server.
type ServerConfig struct {
	// BaseURL is the catalog server root, e.g. "http://localhost:12310".
	BaseURL string `yaml:"base_url"`

	// AuthToken is the bearer token sent on /v1 requests. Empty means
	// no Authorization header, which the default server accepts.
	AuthToken string `yaml:"auth_token,omitempty"`

	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ObserveConfig holds defaults for sample-file ingestion.
type ObserveConfig struct {
	// Workers is the number of concurrent document submissions.
	Workers int `yaml:"workers"`

	// Extensions lists the file extensions scanned when walking a
	// directory. Matching is case-insensitive.
	Extensions []string `yaml:"extensions"`
}

// LoggingConfig controls CLI logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Dir enables file logging when set, e.g. "~/.fieldscope/logs".
	Dir string `yaml:"dir,omitempty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() FieldScopeConfig {
	return FieldScopeConfig{
		Server: ServerConfig{
			BaseURL:        "http://localhost:12310",
			TimeoutSeconds: 30,
		},
		Observe: ObserveConfig{
			Workers:    4,
			Extensions: []string{".xml"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
