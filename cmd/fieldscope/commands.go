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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/FieldScope/cmd/fieldscope/config"
)

// --- Global Command Variables ---
var (
	serverURL  string // --server override for server.base_url
	authToken  string // --token override for server.auth_token
	jsonOutput bool   // --json forces machine-readable output

	rootCmd = &cobra.Command{
		Use:   "fieldscope",
		Short: "A cli to manage the FieldScope field-observation catalog",
		Long: `FieldScope discovers which XML fields a pass-through integration
actually uses, by observation rather than static analysis. This CLI
manages business contexts, ingests sample documents and queries the
accumulated field catalog.`,
	}

	// --- Context Administration ---
	contextCmd = &cobra.Command{
		Use:   "context",
		Short: "Manage business contexts and their metadata schemas",
	}
	contextCreateCmd = &cobra.Command{
		Use:   "create [context-id]",
		Short: "Register a new business context",
		Args:  cobra.ExactArgs(1),
		Run:   runContextCreate, // Defined in cmd_context.go
	}
	contextListCmd = &cobra.Command{
		Use:   "list",
		Short: "List every registered context",
		Run:   runContextList, // Defined in cmd_context.go
	}
	contextShowCmd = &cobra.Command{
		Use:   "show [context-id]",
		Short: "Show one context's metadata schema",
		Args:  cobra.ExactArgs(1),
		Run:   runContextShow, // Defined in cmd_context.go
	}
	contextUpdateCmd = &cobra.Command{
		Use:   "update [context-id]",
		Short: "Update a context's mutable fields (required keys are immutable)",
		Args:  cobra.ExactArgs(1),
		Run:   runContextUpdate, // Defined in cmd_context.go
	}
	contextDeleteCmd = &cobra.Command{
		Use:   "delete [context-id]",
		Short: "DANGER: Delete a context AND every catalog entry it owns",
		Args:  cobra.ExactArgs(1),
		Run:   runContextDelete, // Defined in cmd_context.go
	}

	// --- Observation Ingest ---
	observeCmd = &cobra.Command{
		Use:   "observe [file or directory path...]",
		Short: "Scan XML sample documents and submit their field observations",
		Args:  cobra.MinimumNArgs(1),
		Run:   runObserve, // Defined in cmd_observe.go
	}

	// --- Catalog Queries ---
	fieldsCmd = &cobra.Command{
		Use:   "fields",
		Short: "Query the accumulated field catalog",
	}
	fieldsSearchCmd = &cobra.Command{
		Use:   "search",
		Short: "Search catalog entries by term, path or metadata filters",
		Run:   runFieldsSearch, // Defined in cmd_search.go
	}
	fieldsSuggestCmd = &cobra.Command{
		Use:   "suggest [dimension] [prefix]",
		Short: "Suggest values for a field path or metadata dimension",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runFieldsSuggest, // Defined in cmd_suggest.go
	}
	fieldsShowCmd = &cobra.Command{
		Use:   "show [field-id]",
		Short: "Show one catalog entry's full statistics by field ID",
		Args:  cobra.ExactArgs(1),
		Run:   runFieldsShow, // Defined in cmd_search.go
	}
	fieldsCasingCmd = &cobra.Command{
		Use:   "casing [field-id] [canonical-casing]",
		Short: "Pick the canonical casing for a field from its observed variants",
		Args:  cobra.ExactArgs(2),
		Run:   runFieldsCasing, // Defined in cmd_casing.go
	}

	// --- Utilities ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the catalog server is reachable",
		Run:   runHealth, // Defined in cmd_casing.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Catalog server URL (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "",
		"Bearer token for the /v1 API (overrides the config file)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output JSON instead of tables (implied when stdout is not a TTY)")

	contextCmd.AddCommand(contextCreateCmd, contextListCmd, contextShowCmd,
		contextUpdateCmd, contextDeleteCmd)
	fieldsCmd.AddCommand(fieldsSearchCmd, fieldsShowCmd, fieldsSuggestCmd, fieldsCasingCmd)

	rootCmd.AddCommand(contextCmd, observeCmd, fieldsCmd, healthCmd)
}

// newClient builds the API client from the loaded config plus any
// command-line overrides.
func newClient() *CatalogClient {
	base := config.Global.Server.BaseURL
	if serverURL != "" {
		base = serverURL
	}
	token := config.Global.Server.AuthToken
	if authToken != "" {
		token = authToken
	}
	timeout := time.Duration(config.Global.Server.TimeoutSeconds) * time.Second
	return NewCatalogClient(base, token, timeout)
}
