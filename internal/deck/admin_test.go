// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package deck

import (
	"context"
	"testing"
	"time"

	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/store"
	"github.com/spindeck/spindeck/internal/userdata"
)

func newTestAdminCache(t *testing.T, api catalog.API) (*AdminTokenCache, *userdata.Repo) {
	t.Helper()
	s, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	users := userdata.NewRepo(s)
	data := models.DefaultUserData()
	data.AccessToken = "stale-access"
	data.RefreshToken = "admin-refresh"
	if err := users.Set(context.Background(), "admin", &data, false); err != nil {
		t.Fatalf("seed admin user: %v", err)
	}

	cfg := testDeckConfig()
	cfg.AdminTokenTTL = time.Hour
	return NewAdminTokenCache(api, users, cfg), users
}

func TestAdminTokenCachedWithinTTL(t *testing.T) {
	api := newFakeAPI()
	api.refreshFn = func(refreshToken string) (*catalog.Token, error) {
		return &catalog.Token{AccessToken: "fresh-access", RefreshToken: "rotated-refresh"}, nil
	}
	cache, _ := newTestAdminCache(t, api)
	ctx := context.Background()

	first, err := cache.AdminAccessToken(ctx)
	if err != nil {
		t.Fatalf("AdminAccessToken failed: %v", err)
	}
	second, err := cache.AdminAccessToken(ctx)
	if err != nil {
		t.Fatalf("second AdminAccessToken failed: %v", err)
	}

	if first != "fresh-access" || second != first {
		t.Errorf("expected the same cached token, got %q then %q", first, second)
	}
	if got := api.callCount("refresh_token"); got != 1 {
		t.Errorf("expected exactly one refresh within the TTL, got %d", got)
	}
}

func TestAdminTokenRefreshedAfterExpiry(t *testing.T) {
	api := newFakeAPI()
	issued := 0
	api.refreshFn = func(refreshToken string) (*catalog.Token, error) {
		issued++
		if issued == 1 {
			return &catalog.Token{AccessToken: "access-1", RefreshToken: "refresh-1"}, nil
		}
		// Refresh uses the rotated token persisted after the first call.
		if refreshToken != "refresh-1" {
			t.Errorf("expected rotated refresh token, got %q", refreshToken)
		}
		return &catalog.Token{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
	}
	cache, users := newTestAdminCache(t, api)
	ctx := context.Background()

	clock := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	first, err := cache.AdminAccessToken(ctx)
	if err != nil {
		t.Fatalf("AdminAccessToken failed: %v", err)
	}
	if first != "access-1" {
		t.Errorf("expected access-1, got %q", first)
	}

	clock = clock.Add(61 * time.Minute)
	second, err := cache.AdminAccessToken(ctx)
	if err != nil {
		t.Fatalf("AdminAccessToken after expiry failed: %v", err)
	}
	if second != "access-2" {
		t.Errorf("expected access-2 after expiry, got %q", second)
	}
	if got := api.callCount("refresh_token"); got != 2 {
		t.Errorf("expected one refresh per expiry window, got %d", got)
	}

	admin, err := users.Get(ctx, "admin")
	if err != nil {
		t.Fatalf("read admin record: %v", err)
	}
	if admin.AccessToken != "access-2" || admin.RefreshToken != "refresh-2" {
		t.Errorf("rotated pair not persisted, got access=%q refresh=%q", admin.AccessToken, admin.RefreshToken)
	}
}

func TestAdminTokenMissingAdminUser(t *testing.T) {
	api := newFakeAPI()
	s, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cache := NewAdminTokenCache(api, userdata.NewRepo(s), testDeckConfig())
	if _, err := cache.AdminAccessToken(context.Background()); err == nil {
		t.Fatal("expected error when the admin record is absent")
	}
	if got := api.callCount("refresh_token"); got != 0 {
		t.Errorf("no refresh should be attempted without an admin record, got %d", got)
	}
}
