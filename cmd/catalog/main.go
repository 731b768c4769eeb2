// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command catalog starts the FieldScope catalog HTTP server.
//
// This is the main entry point for the containerized catalog service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - FIELDSCOPE_PORT: HTTP server port (default: 12310)
//   - FIELDSCOPE_DATA_DIR: BadgerDB data directory (default: ./fieldscope-data)
//   - FIELDSCOPE_CONTEXTS_FILE: optional YAML context seed file, hot-reloaded
//   - FIELDSCOPE_AUTH_TOKEN: optional static bearer token for the /v1 API
//   - FIELDSCOPE_INGEST_RATE / FIELDSCOPE_INGEST_BURST: observation rate limit
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: fieldscope-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o catalog ./cmd/catalog
//
//	# Run
//	FIELDSCOPE_CONTEXTS_FILE=contexts.yaml ./catalog
package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := catalog.Config{
		Port:         getEnvInt("FIELDSCOPE_PORT", 12310),
		DataDir:      getEnvString("FIELDSCOPE_DATA_DIR", "./fieldscope-data"),
		SeedFile:     os.Getenv("FIELDSCOPE_CONTEXTS_FILE"),
		OTelEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "fieldscope-otel-collector:4317"),
		IngestRate:   getEnvFloat("FIELDSCOPE_INGEST_RATE", 0),
		IngestBurst:  getEnvInt("FIELDSCOPE_INGEST_BURST", 0),
	}

	opts := extensions.DefaultOptions()
	if token := os.Getenv("FIELDSCOPE_AUTH_TOKEN"); token != "" {
		opts = opts.WithAuth(&staticTokenProvider{token: token})
		slog.Info("Static bearer-token auth enabled for /v1")
	}

	slog.Info("Starting catalog",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"seed_file", cfg.SeedFile,
		"otel_endpoint", cfg.OTelEndpoint)

	svc, err := catalog.New(cfg, &opts)
	if err != nil {
		log.Fatalf("failed to initialize the catalog service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("catalog server exited with error: %v", err)
	}
}

// staticTokenProvider validates requests against one shared token.
//
// Suitable for a workstation or single-team deployment; anything larger
// belongs behind a real identity provider via the extensions seam.
type staticTokenProvider struct {
	token string
}

// Validate compares the presented token in constant time.
func (p *staticTokenProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) != 1 {
		return nil, fmt.Errorf("invalid bearer token: %w", extensions.ErrUnauthorized)
	}
	return &extensions.AuthInfo{
		UserID: "token-user",
		Roles:  []string{"admin"},
	}, nil
}

// getEnvString returns the environment variable value or the default.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as an int or the default.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("Invalid integer environment variable, using default",
			"key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return parsed
}

// getEnvFloat returns the environment variable as a float64 or the default.
func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("Invalid numeric environment variable, using default",
			"key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return parsed
}
