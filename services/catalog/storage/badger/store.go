// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
)

// Key prefixes. Context IDs and variant keys are charset-validated
// upstream, so neither can contain "/" and smuggle a key across a
// prefix boundary.
const (
	contextPrefix = "ctx/"
	entryPrefix   = "fld/"
	variantPrefix = "var/"
)

// deleteBatchSize bounds how many entries one cascade-delete transaction
// removes, keeping each transaction under BadgerDB's size limit.
const deleteBatchSize = 512

// Store implements storage.ContextStore and storage.CatalogStore on one
// BadgerDB instance.
//
// # Description
//
// Contexts and entries are stored as JSON values. Every entry write also
// maintains a variant index key so absence cleanup and context cascades
// can find a variant's entries without scanning the whole catalog.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions provide
// isolation, and write-write conflicts surface as *storage.StorageError
// at commit.
type Store struct {
	db *DB
}

// Compile-time interface checks.
var (
	_ storage.ContextStore = (*Store)(nil)
	_ storage.CatalogStore = (*Store)(nil)
)

// NewStore creates a Store backed by db.
func NewStore(db *DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &Store{db: db}, nil
}

// ===== Key helpers =====

func contextKey(contextID string) []byte {
	return []byte(contextPrefix + contextID)
}

func entryKey(id string) []byte {
	return []byte(entryPrefix + id)
}

func variantIndexKey(contextID, variantKey, entryID string) []byte {
	return []byte(variantPrefix + contextID + "/" + variantKey + "/" + entryID)
}

func variantScanPrefix(contextID, variantKey string) []byte {
	return []byte(variantPrefix + contextID + "/" + variantKey + "/")
}

func contextScanPrefix(contextID string) []byte {
	return []byte(variantPrefix + contextID + "/")
}

// ===== ContextStore =====

// PutContext writes or overwrites a context definition.
func (s *Store) PutContext(ctx context.Context, c *datatypes.Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return storage.NewStorageError("encode context", err)
	}
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(contextKey(c.ID), data)
	})
	return storage.NewStorageError("put context", err)
}

// GetContext returns the context with the given ID, or storage.ErrNotFound.
func (s *Store) GetContext(ctx context.Context, contextID string) (*datatypes.Context, error) {
	var c datatypes.Context
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(contextKey(contextID))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.NewStorageError("get context", err)
	}
	return &c, nil
}

// ListContexts returns all context definitions in ascending ID order.
func (s *Store) ListContexts(ctx context.Context) ([]*datatypes.Context, error) {
	var contexts []*datatypes.Context
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		prefix := []byte(contextPrefix)
		opts := dgbadger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c datatypes.Context
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			})
			if err != nil {
				return err
			}
			contexts = append(contexts, &c)
		}
		return nil
	})
	if err != nil {
		return nil, storage.NewStorageError("list contexts", err)
	}
	return contexts, nil
}

// DeleteContext removes the context definition. The catalog entries are a
// separate cascade (DeleteContextData); the registry runs both.
func (s *Store) DeleteContext(ctx context.Context, contextID string) error {
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		key := contextKey(contextID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, dgbadger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	return storage.NewStorageError("delete context", err)
}

// ===== CatalogStore =====

// GetEntry returns the entry with the given ID, or storage.ErrNotFound.
func (s *Store) GetEntry(ctx context.Context, id string) (*datatypes.CatalogEntry, error) {
	var entry *datatypes.CatalogEntry
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		e, err := getEntryTxn(txn, id)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, storage.NewStorageError("get entry", err)
	}
	return entry, nil
}

// ScanVariant returns every entry of one schema variant in ascending ID order.
func (s *Store) ScanVariant(ctx context.Context, contextID, variantKey string) ([]*datatypes.CatalogEntry, error) {
	var entries []*datatypes.CatalogEntry
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		found, err := scanVariantTxn(txn, contextID, variantKey)
		if err != nil {
			return err
		}
		entries = found
		return nil
	})
	if err != nil {
		return nil, storage.NewStorageError("scan variant", err)
	}
	return entries, nil
}

// ScanEntries streams every catalog entry in ascending ID order.
func (s *Store) ScanEntries(ctx context.Context, fn func(*datatypes.CatalogEntry) error) error {
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		prefix := []byte(entryPrefix)
		opts := dgbadger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e datatypes.CatalogEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if err := fn(&e); err != nil {
				return err
			}
		}
		return nil
	})
	return storage.NewStorageError("scan entries", err)
}

// DeleteContextData removes every entry and variant index key belonging to
// the context, in batches so no single transaction exceeds BadgerDB's
// limits. Returns the number of entries removed.
func (s *Store) DeleteContextData(ctx context.Context, contextID string) (int, error) {
	prefix := contextScanPrefix(contextID)
	removed := 0

	for {
		batch := 0
		err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
			opts := dgbadger.DefaultIteratorOptions
			opts.PrefetchValues = false

			// Collect one batch of keys first; staging deletes while
			// the iterator is open invalidates its view.
			var indexKeys [][]byte
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				indexKeys = append(indexKeys, it.Item().KeyCopy(nil))
				if len(indexKeys) >= deleteBatchSize {
					break
				}
			}
			it.Close()

			for _, key := range indexKeys {
				// Index key layout: var/<contextID>/<variantKey>/<entryID>
				entryID := string(key[bytes.LastIndexByte(key, '/')+1:])
				if err := txn.Delete(entryKey(entryID)); err != nil {
					return err
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			batch = len(indexKeys)
			return nil
		})
		if err != nil {
			return removed, storage.NewStorageError("delete context data", err)
		}
		removed += batch
		if batch < deleteBatchSize {
			return removed, nil
		}
	}
}

// WithMergeTxn runs fn inside one read-write transaction. fn's own error
// passes through untouched; a commit failure (including a write-write
// conflict with a concurrent merge) comes back as *storage.StorageError.
func (s *Store) WithMergeTxn(ctx context.Context, fn func(storage.MergeTxn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&mergeTxn{txn: txn}); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return storage.NewStorageError("merge commit", err)
	}
	return nil
}

// mergeTxn adapts a BadgerDB transaction to storage.MergeTxn.
type mergeTxn struct {
	txn *dgbadger.Txn
}

var _ storage.MergeTxn = (*mergeTxn)(nil)

func (m *mergeTxn) Get(id string) (*datatypes.CatalogEntry, error) {
	return getEntryTxn(m.txn, id)
}

func (m *mergeTxn) Put(e *datatypes.CatalogEntry) error {
	return putEntryTxn(m.txn, e)
}

func (m *mergeTxn) ScanVariant(contextID, variantKey string) ([]*datatypes.CatalogEntry, error) {
	return scanVariantTxn(m.txn, contextID, variantKey)
}

// ===== Transaction-scoped helpers =====

func getEntryTxn(txn *dgbadger.Txn, id string) (*datatypes.CatalogEntry, error) {
	item, err := txn.Get(entryKey(id))
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.NewStorageError("get entry", err)
	}
	var e datatypes.CatalogEntry
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
		return nil, storage.NewStorageError("decode entry", err)
	}
	return &e, nil
}

func putEntryTxn(txn *dgbadger.Txn, e *datatypes.CatalogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return storage.NewStorageError("encode entry", err)
	}
	if err := txn.Set(entryKey(e.ID), data); err != nil {
		return storage.NewStorageError("put entry", err)
	}
	if err := txn.Set(variantIndexKey(e.ContextID, e.VariantKey, e.ID), nil); err != nil {
		return storage.NewStorageError("put variant index", err)
	}
	return nil
}

func scanVariantTxn(txn *dgbadger.Txn, contextID, variantKey string) ([]*datatypes.CatalogEntry, error) {
	prefix := variantScanPrefix(contextID, variantKey)
	opts := dgbadger.DefaultIteratorOptions
	opts.PrefetchValues = false // index values are empty

	// Collect IDs first, then point-get: a read-write transaction allows
	// only one open iterator at a time.
	var ids []string
	it := txn.NewIterator(opts)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		ids = append(ids, string(key[len(prefix):]))
	}
	it.Close()

	entries := make([]*datatypes.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		e, err := getEntryTxn(txn, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Index key outlived its entry; ignore the orphan.
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
