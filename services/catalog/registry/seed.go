// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// SeedContext is one context definition in the seed file.
type SeedContext struct {
	ContextID    string   `yaml:"contextId"`
	DisplayName  string   `yaml:"displayName"`
	Description  string   `yaml:"description"`
	RequiredKeys []string `yaml:"requiredMetadataKeys"`
	OptionalKeys []string `yaml:"optionalMetadataKeys"`
	Active       *bool    `yaml:"active"`
}

// SeedFile is the on-disk format for declarative context provisioning.
//
// # Examples
//
//	contexts:
//	  - contextId: invoice-inbound
//	    displayName: Inbound invoices
//	    requiredMetadataKeys: [partner, doctype]
//	    optionalMetadataKeys: [channel]
//	  - contextId: deposits
//	    requiredMetadataKeys: [productCode]
type SeedFile struct {
	Contexts []SeedContext `yaml:"contexts"`
}

// LoadSeedFile reads and parses a YAML seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed reconciles the registry with a seed file.
//
// # Description
//
// New contexts are created. Existing contexts get only their mutable
// fields applied (displayName, description, optionalKeys, active); a seed
// entry whose required keys differ from the stored definition keeps its
// stored schema, and the drift is logged and skipped. One bad entry does
// not stop the rest: the first error is returned after all entries have
// been attempted.
//
// # Outputs
//
//   - created: Number of contexts created.
//   - updated: Number of existing contexts that had mutable fields applied.
//   - error: First per-entry failure, if any.
func (r *Registry) ApplySeed(ctx context.Context, seed *SeedFile) (created, updated int, err error) {
	var firstErr error
	for i := range seed.Contexts {
		entry := &seed.Contexts[i]
		madeNew, applyErr := r.applySeedContext(ctx, entry)
		if applyErr != nil {
			r.logger.Error("seed entry failed",
				slog.String("context_id", entry.ContextID),
				slog.String("error", applyErr.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("seed context %q: %w", entry.ContextID, applyErr)
			}
			continue
		}
		if madeNew {
			created++
		} else {
			updated++
		}
	}
	return created, updated, firstErr
}

func (r *Registry) applySeedContext(ctx context.Context, entry *SeedContext) (bool, error) {
	existing, err := r.Get(ctx, entry.ContextID)
	if errors.Is(err, ErrContextNotFound) {
		req := &datatypes.CreateContextRequest{
			ContextID:    entry.ContextID,
			DisplayName:  entry.DisplayName,
			Description:  entry.Description,
			RequiredKeys: entry.RequiredKeys,
			OptionalKeys: entry.OptionalKeys,
			Active:       entry.Active,
		}
		_, err := r.Create(ctx, req)
		return true, err
	}
	if err != nil {
		return false, err
	}

	// Mutable fields only. Required-key drift never reaches the store.
	if requested, normErr := normalizeKeySet(entry.RequiredKeys, "requiredKeys"); normErr == nil {
		if len(requested) > 0 && !equalKeys(requested, existing.RequiredKeys) {
			r.logger.Warn("seed required keys differ from stored context; keeping stored schema",
				slog.String("context_id", existing.ID),
				slog.Any("seed_keys", requested),
				slog.Any("stored_keys", existing.RequiredKeys))
		}
	}

	req := &datatypes.UpdateContextRequest{
		DisplayName: &entry.DisplayName,
		Description: &entry.Description,
		Active:      entry.Active,
	}
	if entry.OptionalKeys != nil {
		req.OptionalKeys = &entry.OptionalKeys
	}
	_, err = r.Update(ctx, existing.ID, req)
	return false, err
}

// SeedWatcher re-applies a seed file whenever it changes on disk.
//
// # Description
//
// Watches the seed file's directory (editors replace files by rename, so
// watching the file itself loses the watch) and debounces bursts of write
// events into one reload. Reload failures are logged, never fatal: the
// registry keeps serving its current definitions.
type SeedWatcher struct {
	registry *Registry
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewSeedWatcher creates a watcher for the given seed file path.
func NewSeedWatcher(registry *Registry, path string, logger *slog.Logger) (*SeedWatcher, error) {
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}
	if path == "" {
		return nil, errors.New("seed path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &SeedWatcher{
		registry: registry,
		path:     filepath.Clean(path),
		watcher:  watcher,
		debounce: 250 * time.Millisecond,
		logger:   logger.With(slog.String("component", "seed_watcher")),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The goroutine exits when Stop is called or the
// context is cancelled.
func (w *SeedWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch seed directory: %w", err)
	}
	go w.loop(ctx)
	return nil
}

// Stop halts the watcher. Safe to call multiple times.
func (w *SeedWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *SeedWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("seed watcher error", slog.String("error", err.Error()))
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *SeedWatcher) reload(ctx context.Context) {
	seed, err := LoadSeedFile(w.path)
	if err != nil {
		w.logger.Error("seed reload failed", slog.String("error", err.Error()))
		return
	}
	created, updated, err := w.registry.ApplySeed(ctx, seed)
	if err != nil {
		w.logger.Error("seed apply failed",
			slog.Int("created", created),
			slog.Int("updated", updated),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Info("seed reapplied",
		slog.Int("created", created),
		slog.Int("updated", updated))
}
