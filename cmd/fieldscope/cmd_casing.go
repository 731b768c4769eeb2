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
	"time"

	"github.com/spf13/cobra"
)

// runFieldsCasing picks the canonical casing for one field.
//
// The chosen casing must already appear among the field's observed
// variants; the server rejects spellings nobody has ever sent, which
// keeps export output honest about what integrations actually produce.
func runFieldsCasing(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	updated, err := newClient().SelectCasing(ctx, args[0], args[1])
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(updated)
		return
	}
	fmt.Printf("Canonical casing for %s is now %q (seen %d times)\n",
		updated.ID, updated.CanonicalCasing, updated.CasingCounts[updated.CanonicalCasing])
}

// runHealth pings the catalog server.
func runHealth(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := newClient().Health(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Catalog server is healthy.")
}
