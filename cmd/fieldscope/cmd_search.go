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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	searchQuery    string   // -q: global term, OR across all dimensions
	searchContext  string   // --context: exact context filter
	searchPath     string   // --path: field path substring (or regex)
	searchRegex    bool     // --regex: treat -q/--path as patterns
	searchFilters  []string // --filter key=value, repeatable
	searchPage     int      // --page
	searchPageSize int      // --size
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	fieldsSearchCmd.Flags().StringVarP(&searchQuery, "query", "q", "",
		"Global search term, matched against paths, contexts and every metadata value (other filters are ignored)")
	fieldsSearchCmd.Flags().StringVarP(&searchContext, "context", "c", "",
		"Restrict results to one context")
	fieldsSearchCmd.Flags().StringVar(&searchPath, "path", "",
		"Field path substring filter")
	fieldsSearchCmd.Flags().BoolVar(&searchRegex, "regex", false,
		"Treat the query and path filters as regular expressions")
	fieldsSearchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil,
		"Metadata filter key=value; repeat a key for OR-within-key, different keys AND (repeatable)")
	fieldsSearchCmd.Flags().IntVar(&searchPage, "page", 0, "Page number (0-based)")
	fieldsSearchCmd.Flags().IntVar(&searchPageSize, "size", 0,
		"Page size (server clamps to its maximum)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runFieldsSearch queries the catalog and renders one result page.
func runFieldsSearch(cmd *cobra.Command, args []string) {
	metadata, err := parseMetaMulti(searchFilters)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := newClient().SearchFields(ctx, SearchParams{
		Query:             searchQuery,
		ContextID:         searchContext,
		FieldPathContains: searchPath,
		UseRegex:          searchRegex,
		Metadata:          metadata,
		Page:              searchPage,
		Size:              searchPageSize,
	})
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(page)
		return
	}

	if page.TotalElements == 0 {
		fmt.Println("No fields matched.")
		return
	}
	printEntryTable(page.Content)
	fmt.Printf("\nPage %d of %d (%d fields total)\n",
		page.Number+1, page.TotalPages, page.TotalElements)
}

// runFieldsShow fetches one catalog entry by ID and renders its full
// statistics, casing variants included.
func runFieldsShow(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry, err := newClient().GetField(ctx, args[0])
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(entry)
		return
	}

	fmt.Printf("Field:      %s\n", displayPath(*entry))
	fmt.Printf("Context:    %s\n", entry.ContextID)
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Occurs:     %d..%d\n", entry.MinOccurs, entry.MaxOccurs)
	fmt.Printf("Nullable:   %t\n", entry.AllowsNull)
	fmt.Printf("Empty seen: %t\n", entry.AllowsEmpty)
	fmt.Printf("First seen: %s\n", time.UnixMilli(entry.FirstObservedAt).UTC().Format("2006-01-02 15:04"))
	fmt.Printf("Last seen:  %s\n", time.UnixMilli(entry.LastObservedAt).UTC().Format("2006-01-02 15:04"))

	for _, key := range sortedKeys(entry.RequiredValues) {
		fmt.Printf("Metadata:   %s=%s\n", key, entry.RequiredValues[key])
	}

	if len(entry.CasingCounts) > 0 {
		fmt.Println("Casings:")
		variants := make([]string, 0, len(entry.CasingCounts))
		for variant := range entry.CasingCounts {
			variants = append(variants, variant)
		}
		sort.Strings(variants)
		for _, variant := range variants {
			marker := " "
			if variant == entry.CanonicalCasing {
				marker = "*"
			}
			fmt.Printf("  %s %s (%d)\n", marker, variant, entry.CasingCounts[variant])
		}
	}
}

// sortedKeys returns the map's keys in ascending order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
