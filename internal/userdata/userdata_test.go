// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package userdata

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/store"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	s, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewRepo(s)
}

func TestGetMissingUser(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "absent")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateOrCreateNewUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	data, created, err := repo.UpdateOrCreate(ctx, "u1", "Ada", "http://img", "access", "refresh")
	if err != nil {
		t.Fatalf("UpdateOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected created=true for a first-time user")
	}
	if data.Name != "Ada" || data.AccessToken != "access" {
		t.Errorf("unexpected record: %+v", data)
	}
	if !data.IsAnon {
		t.Error("new users start anonymous until they pick a source")
	}
	if data.SelectedDiscoverSource.Type != models.SourceAnythingMe {
		t.Errorf("expected default source, got %+v", data.SelectedDiscoverSource)
	}
	if !data.SelectedDiscoverDestination.IsFavourites {
		t.Errorf("expected favourites default destination, got %+v", data.SelectedDiscoverDestination)
	}
}

func TestUpdateOrCreateExistingUserKeepsSelections(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := repo.UpdateOrCreate(ctx, "u1", "Ada", "", "a1", "r1"); err != nil {
		t.Fatalf("UpdateOrCreate failed: %v", err)
	}

	// User picks a custom source, then logs in again with fresh tokens.
	data, _ := repo.Get(ctx, "u1")
	data.SelectedDiscoverSource = models.DiscoverSource{Type: models.SourceArtist, ID: "art1", Name: "Artist"}
	if err := repo.Set(ctx, "u1", data, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	updated, created, err := repo.UpdateOrCreate(ctx, "u1", "", "", "a2", "r2")
	if err != nil {
		t.Fatalf("second UpdateOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected created=false for an existing user")
	}
	if updated.AccessToken != "a2" || updated.RefreshToken != "r2" {
		t.Errorf("tokens not rotated: %+v", updated)
	}
	if updated.SelectedDiscoverSource.ID != "art1" {
		t.Errorf("source selection lost on re-login: %+v", updated.SelectedDiscoverSource)
	}
	if updated.Name != "Ada" {
		t.Errorf("empty display name should not clear stored name, got %q", updated.Name)
	}
}

func TestSetTokensLeavesRecordIntact(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := repo.UpdateOrCreate(ctx, "admin", "Admin", "http://img", "old-a", "old-r"); err != nil {
		t.Fatalf("UpdateOrCreate failed: %v", err)
	}
	if err := repo.SetTokens(ctx, "admin", "new-a", "new-r"); err != nil {
		t.Fatalf("SetTokens failed: %v", err)
	}

	data, err := repo.Get(ctx, "admin")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if data.AccessToken != "new-a" || data.RefreshToken != "new-r" {
		t.Errorf("tokens not persisted: %+v", data)
	}
	if data.Name != "Admin" || data.Image != "http://img" {
		t.Errorf("merge clobbered identity fields: %+v", data)
	}
}

func TestRandomUsersSampling(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("u%02d", i)
		if _, _, err := repo.UpdateOrCreate(ctx, id, id, "", "a", "r"); err != nil {
			t.Fatalf("UpdateOrCreate failed: %v", err)
		}
	}

	users, err := repo.RandomUsers(ctx, 5)
	if err != nil {
		t.Fatalf("RandomUsers failed: %v", err)
	}
	if len(users) != 5 {
		t.Fatalf("expected 5 sampled users, got %d", len(users))
	}
	seen := map[string]bool{}
	for _, u := range users {
		if seen[u.ID] {
			t.Errorf("user %s sampled twice", u.ID)
		}
		seen[u.ID] = true
	}

	// Asking for more than exist returns everyone.
	all, err := repo.RandomUsers(ctx, 50)
	if err != nil {
		t.Fatalf("RandomUsers failed: %v", err)
	}
	if len(all) != 12 {
		t.Errorf("expected all 12 users, got %d", len(all))
	}
}

func TestSelectionSettersLeaveTokensIntact(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := repo.UpdateOrCreate(ctx, "u1", "Dana", "http://img", "access", "refresh"); err != nil {
		t.Fatalf("UpdateOrCreate failed: %v", err)
	}

	source := models.DiscoverSource{Type: models.SourceVibe, ID: "jazz", Name: "jazz"}
	if err := repo.SetSelectedSource(ctx, "u1", source); err != nil {
		t.Fatalf("SetSelectedSource failed: %v", err)
	}
	destination := models.DiscoverDestination{ID: "pl1", Name: "Mix"}
	if err := repo.SetSelectedDestination(ctx, "u1", destination); err != nil {
		t.Fatalf("SetSelectedDestination failed: %v", err)
	}

	data, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if data.SelectedDiscoverSource != source {
		t.Errorf("source selection not persisted: %+v", data.SelectedDiscoverSource)
	}
	if data.SelectedDiscoverDestination != destination {
		t.Errorf("destination selection not persisted: %+v", data.SelectedDiscoverDestination)
	}
	if data.AccessToken != "access" || data.RefreshToken != "refresh" || data.Name != "Dana" {
		t.Errorf("targeted setters touched unrelated fields: %+v", data)
	}
}
