// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package deck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/metrics"
	"github.com/spindeck/spindeck/internal/userdata"
)

// AdminTokenCache holds the single shared access token that serves
// anonymous visitors. Expiry is coarse: a refreshed token is trusted for
// the configured TTL, then refreshed through the admin user's stored
// refresh token, with the rotated pair persisted back to the admin record.
type AdminTokenCache struct {
	api   catalog.API
	users *userdata.Repo
	cfg   *config.DeckConfig

	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

// NewAdminTokenCache creates the shared token cache.
func NewAdminTokenCache(api catalog.API, users *userdata.Repo, cfg *config.DeckConfig) *AdminTokenCache {
	return &AdminTokenCache{api: api, users: users, cfg: cfg, now: time.Now}
}

// AdminAccessToken returns the cached admin token, refreshing it when the
// expiry has passed.
func (c *AdminTokenCache) AdminAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		metrics.AdminTokenRefreshes.WithLabelValues("cached").Inc()
		return c.token, nil
	}

	admin, err := c.users.Get(ctx, c.cfg.AdminUserID)
	if err != nil {
		metrics.AdminTokenRefreshes.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("load admin user %s: %w", c.cfg.AdminUserID, err)
	}

	token, err := c.api.RefreshToken(ctx, admin.RefreshToken)
	if err != nil {
		metrics.AdminTokenRefreshes.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("refresh admin token: %w", err)
	}

	if err := c.users.SetTokens(ctx, c.cfg.AdminUserID, token.AccessToken, token.RefreshToken); err != nil {
		metrics.AdminTokenRefreshes.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("persist admin token: %w", err)
	}

	c.token = token.AccessToken
	c.expiry = c.now().Add(c.cfg.AdminTokenTTL)
	metrics.AdminTokenRefreshes.WithLabelValues("refreshed").Inc()
	logging.Info().Time("expiry", c.expiry).Msg("Admin access token refreshed")
	return c.token, nil
}
