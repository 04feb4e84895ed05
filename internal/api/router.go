// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package api is the thin HTTP layer over the curation engine. Handlers
// validate, dispatch background deck work, and respond immediately; the
// client observes deck changes through the document store, not through
// these responses.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/deck"
	"github.com/spindeck/spindeck/internal/userdata"
)

// Server wires the HTTP surface to the engine.
type Server struct {
	cfg         *config.Config
	sessions    *SessionManager
	users       *userdata.Repo
	decks       *deck.Service
	adminTokens *deck.AdminTokenCache
	catalog     catalog.API
	publisher   message.Publisher
	validate    *validator.Validate
}

// NewServer creates the HTTP layer.
func NewServer(
	cfg *config.Config,
	sessions *SessionManager,
	users *userdata.Repo,
	decks *deck.Service,
	adminTokens *deck.AdminTokenCache,
	catalogAPI catalog.API,
	publisher message.Publisher,
) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		users:       users,
		decks:       decks,
		adminTokens: adminTokens,
		catalog:     catalogAPI,
		publisher:   publisher,
		validate:    validator.New(),
	}
}

// Handler assembles the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}))

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.Login)
			r.Post("/anon", s.AnonLogin)
			r.Post("/logout", s.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.sessions.Authenticate)

			r.Get("/user/spotify", s.UserProfile)

			r.Post("/presence/online", s.PresenceOnline)
			r.Post("/presence/offline", s.PresenceOffline)

			r.Route("/discover", func(r chi.Router) {
				r.Get("/sources", s.DiscoverSources)
				r.Post("/source", s.SetDiscoverSource)
				r.Get("/sources/search", s.SearchDiscoverSources)
				r.Get("/destinations", s.DiscoverDestinations)
				r.Post("/destination", s.SetDiscoverDestination)

				r.Get("/deck/items", s.DeckItems)
				r.Get("/deck/source/refill", s.RefillSourceDeck)
				r.Get("/deck/destination/reset", s.ResetDestinationDeck)
				r.Get("/deck/destination/contains", s.DestinationContains)
				r.Get("/deck/destination/save", s.SaveToDestination)
				r.Get("/deck/destination/remove", s.RemoveFromDestination)
			})
		})
	})

	return r
}

// Health reports process liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"state": "up"})
}
