// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/logging"
)

// defaultBatchLimit matches the upstream document store's write cap.
const defaultBatchLimit = 500

// BadgerStore implements Store on BadgerDB. Keys are laid out as
// "<collection>/<id>", so a collection is a key prefix scan.
type BadgerStore struct {
	db         *badger.DB
	batchLimit int
}

// Ensure BadgerStore implements Store
var _ Store = (*BadgerStore)(nil)

// Open creates (or opens) a BadgerDB-backed store at the configured path.
// With InMemory set the store lives entirely in memory, which is what the
// tests use.
func Open(cfg *config.StoreConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Int("batch_limit", limit).Msg("Document store opened")
	return &BadgerStore{db: db, batchLimit: limit}, nil
}

func docKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + "/")
}

// GetDoc reads a document into v.
func (s *BadgerStore) GetDoc(_ context.Context, collection, id string, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDocNotFound
		}
		if err != nil {
			return fmt.Errorf("get doc %s/%s: %w", collection, id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// SetDoc writes a document. With merge set, top-level fields of v overlay
// the existing document.
func (s *BadgerStore) SetDoc(_ context.Context, collection, id string, v interface{}, merge bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal doc %s/%s: %w", collection, id, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		if merge {
			merged, err := mergeExisting(txn, key, data)
			if err != nil {
				return err
			}
			data = merged
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set doc %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// mergeExisting overlays the top-level fields of incoming onto the stored
// document, if any.
func mergeExisting(txn *badger.Txn, key, incoming []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return incoming, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read doc for merge: %w", err)
	}

	var existing map[string]json.RawMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &existing)
	}); err != nil {
		return nil, fmt.Errorf("decode doc for merge: %w", err)
	}

	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		return nil, fmt.Errorf("decode merge overlay: %w", err)
	}
	for k, val := range overlay {
		existing[k] = val
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("encode merged doc: %w", err)
	}
	return merged, nil
}

// DeleteDoc removes a single document.
func (s *BadgerStore) DeleteDoc(_ context.Context, collection, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(docKey(collection, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete doc %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// ExistsDoc reports whether the document exists.
func (s *BadgerStore) ExistsDoc(_ context.Context, collection, id string) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(docKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("exists doc %s/%s: %w", collection, id, err)
	}
	return exists, nil
}

// CollectionSize counts the documents in a collection without loading
// values.
func (s *BadgerStore) CollectionSize(_ context.Context, collection string) (int, error) {
	var count int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = collectionPrefix(collection)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("size of collection %s: %w", collection, err)
	}
	return count, nil
}

// ListDocs returns every document in a collection.
func (s *BadgerStore) ListDocs(_ context.Context, collection string) ([]Doc, error) {
	prefix := collectionPrefix(collection)
	var docs []Doc

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy doc %s/%s: %w", collection, id, err)
			}
			docs = append(docs, Doc{ID: id, Data: val})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}
	return docs, nil
}

// BatchSet writes all docs, chunked at the batch limit. Each chunk commits
// in its own transaction.
func (s *BadgerStore) BatchSet(ctx context.Context, collection string, docs map[string]interface{}) error {
	encoded := make(map[string][]byte, len(docs))
	for id, v := range docs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal doc %s/%s: %w", collection, id, err)
		}
		encoded[id] = data
	}

	ids := make([]string, 0, len(encoded))
	for id := range encoded {
		ids = append(ids, id)
	}

	for start := 0; start < len(ids); start += s.batchLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + s.batchLimit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		err := s.db.Update(func(txn *badger.Txn) error {
			for _, id := range chunk {
				if err := txn.Set(docKey(collection, id), encoded[id]); err != nil {
					return fmt.Errorf("set doc %s/%s: %w", collection, id, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BatchDelete removes all ids, chunked at the batch limit.
func (s *BadgerStore) BatchDelete(ctx context.Context, collection string, ids []string) error {
	for start := 0; start < len(ids); start += s.batchLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + s.batchLimit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		err := s.db.Update(func(txn *badger.Txn) error {
			for _, id := range chunk {
				if err := txn.Delete(docKey(collection, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("delete doc %s/%s: %w", collection, id, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ClearCollection removes every document in a collection.
func (s *BadgerStore) ClearCollection(ctx context.Context, collection string) error {
	docs, err := s.ListDocs(ctx, collection)
	if err != nil {
		return err
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	return s.BatchDelete(ctx, collection, ids)
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
