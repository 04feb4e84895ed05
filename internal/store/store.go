// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package store defines the document store boundary. Documents are JSON
// values grouped into named collections; the deck engine only ever touches
// storage through this interface.
package store

import (
	"context"
	"errors"
)

// ErrDocNotFound is returned when a requested document does not exist.
var ErrDocNotFound = errors.New("document not found")

// Doc is a raw document paired with its id, as returned by ListDocs.
type Doc struct {
	ID   string
	Data []byte
}

// Store is the document store used for user records, decks and the
// active-users collection.
//
// Batch operations accept inputs of any size and chunk them internally at
// the store's write limit, so callers never have to know that limit.
type Store interface {
	// GetDoc reads the document into v. Returns ErrDocNotFound when absent.
	GetDoc(ctx context.Context, collection, id string, v interface{}) error

	// SetDoc writes the document. With merge set, top-level fields of v are
	// overlaid onto the existing document instead of replacing it.
	SetDoc(ctx context.Context, collection, id string, v interface{}, merge bool) error

	// DeleteDoc removes a single document. Absent documents are not an
	// error.
	DeleteDoc(ctx context.Context, collection, id string) error

	// ExistsDoc reports whether the document exists.
	ExistsDoc(ctx context.Context, collection, id string) (bool, error)

	// CollectionSize counts the documents in a collection.
	CollectionSize(ctx context.Context, collection string) (int, error)

	// ListDocs returns every document in a collection.
	ListDocs(ctx context.Context, collection string) ([]Doc, error)

	// BatchSet writes all docs, chunked at the store's write limit.
	BatchSet(ctx context.Context, collection string, docs map[string]interface{}) error

	// BatchDelete removes all ids, chunked at the store's write limit.
	BatchDelete(ctx context.Context, collection string, ids []string) error

	// ClearCollection removes every document in a collection.
	ClearCollection(ctx context.Context, collection string) error

	// Close releases the underlying database.
	Close() error
}
