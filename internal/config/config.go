// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package config holds all application configuration, loaded with Koanf v2
// from layered sources: built-in defaults, an optional YAML config file, and
// environment variables (highest priority).
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Catalog  CatalogConfig  `koanf:"catalog"`
	Store    StoreConfig    `koanf:"store"`
	Presence PresenceConfig `koanf:"presence"`
	Deck     DeckConfig     `koanf:"deck"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// CatalogConfig holds settings for the upstream music catalog API.
//
// Environment Variables:
//   - CATALOG_URL: API base URL (default: https://api.spotify.com/v1)
//   - CATALOG_ACCOUNTS_URL: token endpoint base (default: https://accounts.spotify.com)
//   - CATALOG_CLIENT_ID / CATALOG_CLIENT_SECRET: app credentials for the
//     refresh-token flow
//   - CATALOG_MARKET: market code used for artist top-track lookups
type CatalogConfig struct {
	URL          string        `koanf:"url"`
	AccountsURL  string        `koanf:"accounts_url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Market       string        `koanf:"market"`
	Timeout      time.Duration `koanf:"timeout"`

	// RateLimitRPS caps outbound request rate to stay inside the catalog's
	// quota. Zero disables client-side limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// BreakerEnabled wraps the client in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// StoreConfig holds document store (BadgerDB) settings.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// BatchLimit is the maximum number of documents written or deleted in a
	// single batch. Larger inputs are chunked at this size.
	BatchLimit int `koanf:"batch_limit"`
}

// PresenceConfig holds settings for the presence event stream.
//
// Presence transitions arrive as messages on the online/offline topics. The
// embedded NATS server option makes single-instance deployments
// self-contained; point URL at an external cluster otherwise.
type PresenceConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	OnlineTopic    string        `koanf:"online_topic"`
	OfflineTopic   string        `koanf:"offline_topic"`
	DurableName    string        `koanf:"durable_name"`
	QueueGroup     string        `koanf:"queue_group"`
	DebounceDelay  time.Duration `koanf:"debounce_delay"`
}

// DeckConfig holds curation engine settings.
type DeckConfig struct {
	// SourceMinSize is the size below which a source deck refill actually
	// runs; refills triggered above it return without work.
	SourceMinSize int `koanf:"source_min_size"`

	// RefillCount is the number of candidate tracks a refill aims for.
	RefillCount int `koanf:"refill_count"`

	// PlaylistPrefix is how many tracks are taken from each sampled
	// playlist.
	PlaylistPrefix int `koanf:"playlist_prefix"`

	// MaxEnumerationPages bounds how many extra pages a destination deck
	// enumeration follows beyond the first, so pathological playlists
	// cannot loop forever.
	MaxEnumerationPages int `koanf:"max_enumeration_pages"`

	// AdminUserID is the stored user whose token serves anonymous visitors.
	AdminUserID string `koanf:"admin_user_id"`

	// AdminTokenTTL is how long a cached admin token is trusted.
	AdminTokenTTL time.Duration `koanf:"admin_token_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds auth and rate limiting settings for the HTTP layer.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	CookieName      string        `koanf:"cookie_name"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would only fail later,
// at first use.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.Catalog.URL); err != nil {
		return fmt.Errorf("invalid catalog URL %q: %w", c.Catalog.URL, err)
	}
	if _, err := url.Parse(c.Catalog.AccountsURL); err != nil {
		return fmt.Errorf("invalid catalog accounts URL %q: %w", c.Catalog.AccountsURL, err)
	}
	if c.Store.BatchLimit < 1 {
		return fmt.Errorf("store batch limit must be positive, got %d", c.Store.BatchLimit)
	}
	if c.Deck.SourceMinSize < 0 {
		return fmt.Errorf("deck source min size must not be negative, got %d", c.Deck.SourceMinSize)
	}
	if c.Deck.MaxEnumerationPages < 0 {
		return fmt.Errorf("deck max enumeration pages must not be negative, got %d", c.Deck.MaxEnumerationPages)
	}
	if c.Presence.DebounceDelay <= 0 {
		return fmt.Errorf("presence debounce delay must be positive, got %s", c.Presence.DebounceDelay)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return nil
}
