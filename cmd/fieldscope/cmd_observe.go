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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/FieldScope/cmd/fieldscope/config"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	observeContext  string   // --context: target business context
	observeMeta     []string // --meta key=value, repeatable
	observeSnapshot bool     // --snapshot: assert each document is complete
	observePartial  bool     // --partial: suppress absence cleanup
	observeWorkers  int      // --workers: concurrent submissions
	observeDryRun   bool     // --dry-run: scan and print, submit nothing
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	observeCmd.Flags().StringVarP(&observeContext, "context", "c", "",
		"Business context to observe into")
	observeCmd.Flags().StringArrayVar(&observeMeta, "meta", nil,
		"Metadata key=value attached to every observation (repeatable)")
	observeCmd.Flags().BoolVar(&observeSnapshot, "snapshot", false,
		"Assert each document is a complete schema-variant snapshot (fields absent from it become optional)")
	observeCmd.Flags().BoolVar(&observePartial, "partial", false,
		"Mark batches as deliberately partial, suppressing absence cleanup")
	observeCmd.Flags().IntVar(&observeWorkers, "workers", 0,
		"Concurrent document submissions (default from config)")
	observeCmd.Flags().BoolVar(&observeDryRun, "dry-run", false,
		"Scan documents and print the observations without submitting")
	_ = observeCmd.MarkFlagRequired("context")
	observeCmd.MarkFlagsMutuallyExclusive("snapshot", "partial")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runObserve walks the given paths, scans each XML document and submits
// one observation batch per document.
//
// # Description
//
// Each document is an independent batch: per-document min/max occurrence
// statistics are exactly what the merge semantics expect, and a failed
// document never poisons its neighbors. Submissions run concurrently
// under an errgroup with a worker bound; the run continues past
// per-document failures and reports the tally at the end.
//
// # Limitations
//
//   - Only files matching the configured extensions are scanned when a
//     directory is given; explicit file arguments are always scanned.
func runObserve(cmd *cobra.Command, args []string) {
	meta, err := parseMetaPairs(observeMeta)
	if err != nil {
		fail(err)
	}

	snapshot := snapshotFlag()

	files, err := collectFiles(args, config.Global.Observe.Extensions)
	if err != nil {
		fail(err)
	}
	if len(files) == 0 {
		fail(fmt.Errorf("no documents found under %s", strings.Join(args, ", ")))
	}

	workers := observeWorkers
	if workers <= 0 {
		workers = config.Global.Observe.Workers
	}

	if observeDryRun {
		dryRunObserve(files, meta)
		return
	}

	client := newClient()
	ctx := context.Background()

	var submitted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	start := time.Now()
	for _, file := range files {
		g.Go(func() error {
			if err := submitDocument(gctx, client, file, meta, snapshot); err != nil {
				failed.Add(1)
				slog.Error("document submission failed", "file", file, "error", err)
				return nil // keep going; the tally reports failures
			}
			submitted.Add(1)
			slog.Debug("document submitted", "file", file)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Printf("Submitted %d/%d documents in %s (context %q)\n",
		submitted.Load(), len(files), time.Since(start).Round(time.Millisecond), observeContext)
	if failed.Load() > 0 {
		fmt.Fprintf(os.Stderr, "%d documents failed; see the log for details\n", failed.Load())
		os.Exit(1)
	}
}

// snapshotFlag maps the --snapshot/--partial pair onto the tri-state
// the API expects: nil lets the server infer completeness.
func snapshotFlag() *bool {
	if observeSnapshot {
		v := true
		return &v
	}
	if observePartial {
		v := false
		return &v
	}
	return nil
}

// submitDocument scans one file and submits its batch.
func submitDocument(ctx context.Context, client *CatalogClient, path string,
	meta map[string]string, snapshot *bool) error {

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	observations, err := ScanXML(f, meta)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}

	req := datatypes.ObservationBatchRequest{
		Snapshot:     snapshot,
		Observations: observations,
	}
	req.EnsureDefaults()

	return client.SubmitObservations(ctx, observeContext, req)
}

// dryRunObserve scans everything and prints the batches instead of
// submitting them.
func dryRunObserve(files []string, meta map[string]string) {
	type docScan struct {
		File         string                  `json:"file"`
		Observations []datatypes.Observation `json:"observations"`
	}

	var scans []docScan
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			fail(err)
		}
		observations, err := ScanXML(f, meta)
		f.Close()
		if err != nil {
			fail(err)
		}
		scans = append(scans, docScan{File: file, Observations: observations})
	}

	if useJSON() {
		printJSON(scans)
		return
	}
	for _, scan := range scans {
		fmt.Printf("%s: %d field paths\n", scan.File, len(scan.Observations))
		for _, o := range scan.Observations {
			fmt.Printf("  %s count=%d null=%t empty=%t\n",
				o.FieldPath, o.Count, o.HasNull, o.HasEmpty)
		}
	}
}

// collectFiles expands the path arguments into the list of documents to
// scan. Directories are walked recursively, keeping files whose
// extension is in the configured allow list. A file named explicitly is
// kept regardless of extension.
func collectFiles(paths, extensions []string) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if allowed[strings.ToLower(filepath.Ext(p))] {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}
	return files, nil
}
