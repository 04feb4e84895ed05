// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package main is the entry point for the Spindeck server.
//
// Spindeck is a swipe-deck music discovery backend. Each user works through
// a source deck of candidate tracks aggregated from the upstream catalog and
// saves keepers into a destination deck (their favourites or a playlist).
//
// # Startup order
//
//  1. Configuration: koanf v2 layered load (defaults, config.yaml, env)
//  2. Logging: zerolog, JSON by default
//  3. Store: Badger key-value store for user data and deck documents
//  4. Presence stream: embedded NATS JetStream server (optional) plus the
//     Watermill subscriber and publisher
//  5. Catalog client: upstream music API, rate limited, with an optional
//     circuit breaker
//  6. Supervisor tree: the presence controller and HTTP server run under
//     suture with per-layer failure isolation
//
// # Configuration
//
// Everything is settable by environment variable; see internal/config for
// the full list. The minimum for a production deployment:
//
//	export CATALOG_CLIENT_ID=...
//	export CATALOG_CLIENT_SECRET=...
//	export SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	export STORE_PATH=/data/spindeck
//	./spindeck
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP server drains
// in-flight requests, the presence controller flushes its pending removals,
// then the store and the embedded broker close.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spindeck/spindeck/internal/api"
	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/deck"
	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/presence"
	"github.com/spindeck/spindeck/internal/store"
	"github.com/spindeck/spindeck/internal/supervisor"
	"github.com/spindeck/spindeck/internal/userdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_path", cfg.Store.Path).
		Bool("embedded_broker", cfg.Presence.EmbeddedServer).
		Bool("catalog_breaker", cfg.Catalog.BreakerEnabled).
		Msg("Starting Spindeck")

	db, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The embedded broker makes single-instance deployments self-contained.
	// Point PRESENCE_URL at an external cluster to skip it.
	if cfg.Presence.EmbeddedServer {
		broker, err := presence.NewEmbeddedServer(&cfg.Presence)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded broker")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := broker.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded broker")
			}
		}()
		cfg.Presence.URL = broker.ClientURL()
		logging.Info().Str("url", cfg.Presence.URL).Msg("Embedded broker ready")
	}

	subscriber, err := presence.NewSubscriber(&cfg.Presence)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create presence subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing presence subscriber")
		}
	}()

	publisher, err := presence.NewPublisher(&cfg.Presence)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create presence publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing presence publisher")
		}
	}()

	controller := presence.NewController(subscriber, db, &cfg.Presence)

	var catalogAPI catalog.API = catalog.NewClient(&cfg.Catalog)
	if cfg.Catalog.BreakerEnabled {
		catalogAPI = catalog.NewBreakerClient(catalog.NewClient(&cfg.Catalog))
		logging.Info().Msg("Catalog circuit breaker enabled")
	}

	users := userdata.NewRepo(db)
	filler := deck.NewFiller(catalogAPI, users, controller, &cfg.Deck)
	decks := deck.NewService(filler, db, &cfg.Deck)
	adminTokens := deck.NewAdminTokenCache(catalogAPI, users, &cfg.Deck)

	sessions, err := api.NewSessionManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session manager")
	}

	apiServer := api.NewServer(cfg, sessions, users, decks, adminTokens, catalogAPI, publisher)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	tree.AddMessagingService(controller)
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Spindeck stopped")
}
