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
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	ctxRequiredKeys []string // --required: identity-affecting metadata keys
	ctxOptionalKeys []string // --optional: descriptive metadata keys
	ctxDisplayName  string   // --name
	ctxDescription  string   // --description
	ctxInactive     bool     // --inactive: create in the inactive state

	ctxUpdateName     string // update --name
	ctxUpdateDesc     string // update --description
	ctxUpdateOptional []string
	ctxActivate       bool // update --activate
	ctxDeactivate     bool // update --deactivate

	ctxDeleteYes bool // delete --yes: skip the confirmation prompt
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	contextCreateCmd.Flags().StringSliceVar(&ctxRequiredKeys, "required", nil,
		"Required metadata keys, part of field identity, immutable after creation (repeatable or comma-separated)")
	contextCreateCmd.Flags().StringSliceVar(&ctxOptionalKeys, "optional", nil,
		"Optional metadata keys, descriptive only (repeatable or comma-separated)")
	contextCreateCmd.Flags().StringVar(&ctxDisplayName, "name", "", "Human-readable display name")
	contextCreateCmd.Flags().StringVar(&ctxDescription, "description", "", "Context description")
	contextCreateCmd.Flags().BoolVar(&ctxInactive, "inactive", false,
		"Create the context inactive (hidden from search and suggest)")
	_ = contextCreateCmd.MarkFlagRequired("required")

	contextUpdateCmd.Flags().StringVar(&ctxUpdateName, "name", "", "New display name")
	contextUpdateCmd.Flags().StringVar(&ctxUpdateDesc, "description", "", "New description")
	contextUpdateCmd.Flags().StringSliceVar(&ctxUpdateOptional, "optional", nil,
		"Replacement optional metadata key set")
	contextUpdateCmd.Flags().BoolVar(&ctxActivate, "activate", false, "Make the context visible again")
	contextUpdateCmd.Flags().BoolVar(&ctxDeactivate, "deactivate", false,
		"Hide the context from search and suggest (data is kept)")
	contextUpdateCmd.MarkFlagsMutuallyExclusive("activate", "deactivate")

	contextDeleteCmd.Flags().BoolVar(&ctxDeleteYes, "yes", false,
		"Skip the confirmation prompt")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runContextCreate registers a new context with its metadata schema.
func runContextCreate(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active := !ctxInactive
	req := datatypes.CreateContextRequest{
		ContextID:    args[0],
		DisplayName:  ctxDisplayName,
		Description:  ctxDescription,
		RequiredKeys: ctxRequiredKeys,
		OptionalKeys: ctxOptionalKeys,
		Active:       &active,
	}

	created, err := newClient().CreateContext(ctx, req)
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(created)
		return
	}
	fmt.Printf("Created context %q (required: %s)\n",
		created.ID, strings.Join(created.RequiredKeys, ","))
}

// runContextList prints every registered context.
func runContextList(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	contexts, err := newClient().ListContexts(ctx)
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(contexts)
		return
	}
	if len(contexts) == 0 {
		fmt.Println("No contexts registered yet. Create one with: fieldscope context create")
		return
	}
	printContextTable(contexts)
}

// runContextShow prints one context.
func runContextShow(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	found, err := newClient().GetContext(ctx, args[0])
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(found)
		return
	}
	printContextTable([]datatypes.Context{*found})
	if found.Description != "" {
		fmt.Printf("\n%s\n", found.Description)
	}
}

// runContextUpdate modifies the mutable fields of a context.
//
// Required keys are deliberately not updatable here: identity derives
// from them, so the server rejects any change and this command does not
// even offer the flag.
func runContextUpdate(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := datatypes.UpdateContextRequest{}
	if cmd.Flags().Changed("name") {
		req.DisplayName = &ctxUpdateName
	}
	if cmd.Flags().Changed("description") {
		req.Description = &ctxUpdateDesc
	}
	if cmd.Flags().Changed("optional") {
		req.OptionalKeys = &ctxUpdateOptional
	}
	if ctxActivate {
		active := true
		req.Active = &active
	}
	if ctxDeactivate {
		active := false
		req.Active = &active
	}

	updated, err := newClient().UpdateContext(ctx, args[0], req)
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(updated)
		return
	}
	fmt.Printf("Updated context %q\n", updated.ID)
}

// runContextDelete cascades a context deletion after confirmation.
func runContextDelete(cmd *cobra.Command, args []string) {
	contextID := args[0]

	if !ctxDeleteYes {
		fmt.Printf("This permanently deletes context %q AND every field entry observed under it.\n", contextID)
		fmt.Print("Type the context id to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if strings.TrimSpace(line) != contextID {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := newClient().DeleteContext(ctx, contextID)
	if err != nil {
		fail(err)
	}

	if useJSON() {
		printJSON(result)
		return
	}
	fmt.Printf("Deleted context %q (%d entries removed)\n",
		result.ContextID, result.EntriesRemoved)
}
