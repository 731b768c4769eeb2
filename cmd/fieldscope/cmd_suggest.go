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

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	suggestContext string   // --context
	suggestSibling []string // --with key=value, repeatable cascading constraints
	suggestLimit   int      // --limit
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	fieldsSuggestCmd.Flags().StringVarP(&suggestContext, "context", "c", "",
		"Restrict suggestions to one context")
	fieldsSuggestCmd.Flags().StringArrayVar(&suggestSibling, "with", nil,
		"Already-chosen sibling filter key=value; suggestions must co-occur with all of them (repeatable)")
	fieldsSuggestCmd.Flags().IntVar(&suggestLimit, "limit", 0,
		"Maximum suggestions to return")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runFieldsSuggest completes a value prefix on one dimension.
//
// The dimension argument is "fieldPath" or any metadata key; the
// optional second argument is the prefix to complete. Sibling --with
// constraints narrow candidates to combinations that actually exist,
// so an operator can build a valid filter set interactively.
func runFieldsSuggest(cmd *cobra.Command, args []string) {
	prefix := ""
	if len(args) > 1 {
		prefix = args[1]
	}

	siblings, err := parseMetaMulti(suggestSibling)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	values, err := newClient().SuggestValues(ctx, SuggestParams{
		Field:     args[0],
		Prefix:    prefix,
		ContextID: suggestContext,
		Metadata:  siblings,
		Limit:     suggestLimit,
	})
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(values)
		return
	}
	for _, v := range values {
		fmt.Println(v)
	}
}
