// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/spindeck/config.yaml",
	"/etc/spindeck/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:            "https://api.spotify.com/v1",
			AccountsURL:    "https://accounts.spotify.com",
			ClientID:       "",
			ClientSecret:   "",
			Market:         "US",
			Timeout:        30 * time.Second,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			BreakerEnabled: true,
		},
		Store: StoreConfig{
			Path:       "/data/spindeck",
			InMemory:   false,
			BatchLimit: 500,
		},
		Presence: PresenceConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			OnlineTopic:    "presence.online",
			OfflineTopic:   "presence.offline",
			DurableName:    "deck-service",
			QueueGroup:     "deck",
			DebounceDelay:  2 * time.Second,
		},
		Deck: DeckConfig{
			SourceMinSize:       20,
			RefillCount:         50,
			PlaylistPrefix:      10,
			MaxEnumerationPages: 10,
			AdminUserID:         "",
			AdminTokenTTL:       time.Hour,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3945,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			CookieName:      "spindeck_session",
			SessionTimeout:  7 * 24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as env var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment noise cannot leak
// into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"catalog_url":              "catalog.url",
		"catalog_accounts_url":     "catalog.accounts_url",
		"catalog_client_id":        "catalog.client_id",
		"catalog_client_secret":    "catalog.client_secret",
		"catalog_market":           "catalog.market",
		"catalog_timeout":          "catalog.timeout",
		"catalog_rate_limit_rps":   "catalog.rate_limit_rps",
		"catalog_rate_limit_burst": "catalog.rate_limit_burst",
		"catalog_breaker_enabled":  "catalog.breaker_enabled",

		"store_path":        "store.path",
		"store_in_memory":   "store.in_memory",
		"store_batch_limit": "store.batch_limit",

		"presence_url":            "presence.url",
		"presence_embedded":       "presence.embedded_server",
		"presence_store_dir":      "presence.store_dir",
		"presence_online_topic":   "presence.online_topic",
		"presence_offline_topic":  "presence.offline_topic",
		"presence_durable_name":   "presence.durable_name",
		"presence_queue_group":    "presence.queue_group",
		"presence_debounce_delay": "presence.debounce_delay",

		"deck_source_min_size":       "deck.source_min_size",
		"deck_refill_count":          "deck.refill_count",
		"deck_playlist_prefix":       "deck.playlist_prefix",
		"deck_max_enumeration_pages": "deck.max_enumeration_pages",
		"deck_admin_user_id":         "deck.admin_user_id",
		"deck_admin_token_ttl":       "deck.admin_token_ttl",

		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		"jwt_secret":          "security.jwt_secret",
		"session_cookie_name": "security.cookie_name",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
