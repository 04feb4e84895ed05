// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package userdata persists the per-user record through the document store
// and samples users for the people source.
package userdata

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/goccy/go-json"

	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/store"
)

// UsersCollection is where per-user records live.
const UsersCollection = "users"

// ErrUserNotFound is returned when no record exists for a user id.
var ErrUserNotFound = errors.New("user not found")

// User pairs a user id with its record, as returned by RandomUsers.
type User struct {
	ID   string
	Data models.UserData
}

// Repo reads and writes user records.
type Repo struct {
	store store.Store
}

// NewRepo creates a user data repository on the given store.
func NewRepo(s store.Store) *Repo {
	return &Repo{store: s}
}

// Get retrieves a user's record.
func (r *Repo) Get(ctx context.Context, userID string) (*models.UserData, error) {
	var data models.UserData
	err := r.store.GetDoc(ctx, UsersCollection, userID, &data)
	if errors.Is(err, store.ErrDocNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &data, nil
}

// Set writes a user's record. Merge overlays every top-level field of
// data onto the stored record; callers wanting to touch a single field
// use the targeted setters below.
func (r *Repo) Set(ctx context.Context, userID string, data *models.UserData, merge bool) error {
	if err := r.store.SetDoc(ctx, UsersCollection, userID, data, merge); err != nil {
		return fmt.Errorf("set user %s: %w", userID, err)
	}
	return nil
}

// Exists reports whether a record exists for the user id.
func (r *Repo) Exists(ctx context.Context, userID string) (bool, error) {
	return r.store.ExistsDoc(ctx, UsersCollection, userID)
}

// SetTokens persists a rotated token pair onto an existing record without
// touching its other fields.
func (r *Repo) SetTokens(ctx context.Context, userID, accessToken, refreshToken string) error {
	overlay := map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	}
	if err := r.store.SetDoc(ctx, UsersCollection, userID, overlay, true); err != nil {
		return fmt.Errorf("set tokens for user %s: %w", userID, err)
	}
	return nil
}

// SetSelectedSource persists the user's discover source selection without
// touching the record's other fields.
func (r *Repo) SetSelectedSource(ctx context.Context, userID string, source models.DiscoverSource) error {
	overlay := map[string]models.DiscoverSource{"selectedDiscoverSource": source}
	if err := r.store.SetDoc(ctx, UsersCollection, userID, overlay, true); err != nil {
		return fmt.Errorf("set source for user %s: %w", userID, err)
	}
	return nil
}

// SetSelectedDestination persists the user's save target selection
// without touching the record's other fields.
func (r *Repo) SetSelectedDestination(ctx context.Context, userID string, destination models.DiscoverDestination) error {
	overlay := map[string]models.DiscoverDestination{"selectedDiscoverDestination": destination}
	if err := r.store.SetDoc(ctx, UsersCollection, userID, overlay, true); err != nil {
		return fmt.Errorf("set destination for user %s: %w", userID, err)
	}
	return nil
}

// UpdateOrCreate refreshes an existing record's identity and tokens, or
// creates a default record for a first-time user. The bool result reports
// whether the user is new.
func (r *Repo) UpdateOrCreate(ctx context.Context, userID, displayName, image, accessToken, refreshToken string) (*models.UserData, bool, error) {
	data, err := r.Get(ctx, userID)
	created := false
	if errors.Is(err, ErrUserNotFound) {
		fresh := models.DefaultUserData()
		data = &fresh
		created = true
	} else if err != nil {
		return nil, false, err
	}

	data.AccessToken = accessToken
	data.RefreshToken = refreshToken
	if displayName != "" {
		data.Name = displayName
	}
	if image != "" {
		data.Image = image
	}

	if err := r.Set(ctx, userID, data, false); err != nil {
		return nil, false, err
	}
	logging.Debug().Str("user_id", userID).Bool("created", created).Msg("User record written")
	return data, created, nil
}

// RandomUsers samples up to n distinct users. Records that fail to decode
// are skipped rather than failing the sample.
func (r *Repo) RandomUsers(ctx context.Context, n int) ([]User, error) {
	docs, err := r.store.ListDocs(ctx, UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	rand.Shuffle(len(docs), func(i, j int) {
		docs[i], docs[j] = docs[j], docs[i]
	})

	users := make([]User, 0, n)
	for _, doc := range docs {
		if len(users) == n {
			break
		}
		var data models.UserData
		if err := json.Unmarshal(doc.Data, &data); err != nil {
			logging.Warn().Err(err).Str("user_id", doc.ID).Msg("Skipping undecodable user record")
			continue
		}
		users = append(users, User{ID: doc.ID, Data: data})
	}
	return users, nil
}
