// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains output and flag-parsing helpers shared by the CLI
// commands: TTY detection, JSON printing, table rendering and the
// key=value metadata flag format.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// useJSON decides the output format: the --json flag forces JSON, and
// piped output (no TTY) gets JSON too so scripts never parse tables.
func useJSON() bool {
	if jsonOutput {
		return true
	}
	fd := os.Stdout.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// printJSON writes indented JSON to stdout.
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// fail prints an error and exits non-zero. API errors already carry
// the server's message and field details.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseMetaPairs parses repeated --meta key=value flags into a map.
func parseMetaPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q, expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

// parseMetaMulti parses repeated key=value flags allowing the same key
// more than once (OR-within-key search filters).
func parseMetaMulti(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q, expected key=value", pair)
		}
		meta[key] = append(meta[key], value)
	}
	return meta, nil
}

// printContextTable renders contexts as an aligned table.
func printContextTable(contexts []datatypes.Context) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEXT\tACTIVE\tREQUIRED KEYS\tOPTIONAL KEYS\tDISPLAY NAME")
	for _, c := range contexts {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n",
			c.ID,
			c.Active,
			strings.Join(c.RequiredKeys, ","),
			strings.Join(c.OptionalKeys, ","),
			c.DisplayName)
	}
	w.Flush()
}

// printEntryTable renders catalog entries as an aligned table.
func printEntryTable(entries []datatypes.CatalogEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD PATH\tCONTEXT\tOCCURS\tNULL\tEMPTY\tLAST SEEN\tFIELD ID")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d..%d\t%t\t%t\t%s\t%s\n",
			displayPath(e),
			e.ContextID,
			e.MinOccurs, e.MaxOccurs,
			e.AllowsNull, e.AllowsEmpty,
			time.UnixMilli(e.LastObservedAt).UTC().Format("2006-01-02 15:04"),
			e.ID)
	}
	w.Flush()
}

// displayPath picks the casing to show: the chosen canonical casing,
// else the most-observed variant, else the stored lowercase path.
func displayPath(e datatypes.CatalogEntry) string {
	if e.CanonicalCasing != "" {
		return e.CanonicalCasing
	}
	best := ""
	var bestCount int64 = -1
	variants := make([]string, 0, len(e.CasingCounts))
	for variant := range e.CasingCounts {
		variants = append(variants, variant)
	}
	// Deterministic tie-break for equal counts.
	sort.Strings(variants)
	for _, variant := range variants {
		if e.CasingCounts[variant] > bestCount {
			best = variant
			bestCount = e.CasingCounts[variant]
		}
	}
	if best == "" {
		return e.FieldPath
	}
	return best
}
