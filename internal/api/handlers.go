// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/presence"
)

type loginRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type sessionResponse struct {
	UserID  string          `json:"userId"`
	Created bool            `json:"created"`
	User    models.UserData `json:"user"`
}

// Login exchanges an upstream token pair for a session cookie. The token
// pair comes from the catalog's OAuth flow, which the frontend completes
// on its own.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "malformed login body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "accessToken and refreshToken are required")
		return
	}

	profile, err := s.catalog.UserProfile(r.Context(), req.AccessToken)
	if err != nil {
		if catalog.IsAuthError(err) {
			respondError(w, http.StatusUnauthorized, "bad_token", "catalog rejected the access token")
			return
		}
		respondError(w, http.StatusBadGateway, "catalog_error", "could not resolve the catalog profile")
		return
	}

	data, created, err := s.users.UpdateOrCreate(r.Context(), profile.ID, profile.DisplayName, catalog.FirstImageURL(profile.Images), req.AccessToken, req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not persist the user record")
		return
	}

	token, err := s.sessions.IssueToken(profile.ID, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", "could not issue a session")
		return
	}
	s.sessions.SetCookie(w, token)

	s.decks.DispatchRefillSourceDeck(profile.ID, req.AccessToken, data.SelectedDiscoverSource)
	respondJSON(w, http.StatusOK, sessionResponse{UserID: profile.ID, Created: created, User: *data})
}

// AnonLogin creates a visitor session backed by the shared admin token.
// Anonymous decks start from a random member of the curated radio set.
func (s *Server) AnonLogin(w http.ResponseWriter, r *http.Request) {
	adminToken, err := s.adminTokens.AdminAccessToken(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "no_admin_token", "anonymous browsing is unavailable")
		return
	}

	userID := "anon-" + uuid.NewString()
	data := models.DefaultUserData()
	data.SelectedDiscoverSource = models.DefaultAnonDiscoverSource()
	if err := s.users.Set(r.Context(), userID, &data, false); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not persist the visitor record")
		return
	}

	token, err := s.sessions.IssueToken(userID, true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", "could not issue a session")
		return
	}
	s.sessions.SetCookie(w, token)

	s.decks.DispatchRefillSourceDeck(userID, adminToken, data.SelectedDiscoverSource)
	respondJSON(w, http.StatusOK, sessionResponse{UserID: userID, Created: true, User: data})
}

// Logout clears the session cookie. Stateless tokens cannot be revoked;
// the cookie removal is the whole operation.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	respondJSON(w, http.StatusOK, nil)
}

// session resolves the request's claims plus the stored user record and
// the catalog token to act with. Anonymous sessions act with the shared
// admin token.
func (s *Server) session(r *http.Request) (*Claims, *models.UserData, string, error) {
	claims, ok := SessionClaims(r.Context())
	if !ok {
		return nil, nil, "", errors.New("no session on context")
	}
	data, err := s.users.Get(r.Context(), claims.UserID)
	if err != nil {
		return nil, nil, "", err
	}
	if claims.Anon {
		token, err := s.adminTokens.AdminAccessToken(r.Context())
		if err != nil {
			return nil, nil, "", err
		}
		return claims, data, token, nil
	}
	return claims, data, data.AccessToken, nil
}

// UserProfile proxies the catalog profile for the session user.
func (s *Server) UserProfile(w http.ResponseWriter, r *http.Request) {
	_, _, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	profile, err := s.catalog.UserProfile(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_error", "could not fetch the catalog profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type discoverSourcesResponse struct {
	Selected models.DiscoverSource   `json:"selected"`
	Sources  []models.DiscoverSource `json:"sources"`
}

// DiscoverSources lists the composite source choices with the user's
// current selection marked. Solo sources come from search, not this list.
func (s *Server) DiscoverSources(w http.ResponseWriter, r *http.Request) {
	_, data, _, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}

	sources := []models.DiscoverSource{
		models.DefaultDiscoverSource(),
		{Type: models.SourcePeople, Name: string(models.SourcePeople)},
		{Type: models.SourceMyArtists, Name: string(models.SourceMyArtists)},
		{Type: models.SourceMyPlaylists, Name: string(models.SourceMyPlaylists)},
	}
	sources = append(sources, models.RadioSources()...)

	respondJSON(w, http.StatusOK, discoverSourcesResponse{Selected: data.SelectedDiscoverSource, Sources: sources})
}

// SetDiscoverSource switches the user's source and rebuilds the source
// deck in the background.
func (s *Server) SetDiscoverSource(w http.ResponseWriter, r *http.Request) {
	claims, _, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}

	var source models.DiscoverSource
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "malformed source body")
		return
	}
	if err := source.Valid(); err != nil {
		respondError(w, http.StatusBadRequest, "bad_source", err.Error())
		return
	}

	if err := s.users.SetSelectedSource(r.Context(), claims.UserID, source); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not persist the selection")
		return
	}

	s.decks.DispatchResetSourceDeck(claims.UserID, token, source)
	respondJSON(w, http.StatusOK, source)
}

// SearchDiscoverSources searches catalog playlists matching the query,
// for building vibe and playlist solo sources.
func (s *Server) SearchDiscoverSources(w http.ResponseWriter, r *http.Request) {
	_, _, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "query parameter q is required")
		return
	}

	page, err := s.catalog.SearchPlaylists(r.Context(), token, query, 20)
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_error", "search failed")
		return
	}

	sources := make([]models.DiscoverSource, 0, len(page.Items)+1)
	sources = append(sources, models.DiscoverSource{Type: models.SourceVibe, ID: query, Name: query})
	for _, playlist := range page.Items {
		sources = append(sources, models.DiscoverSource{
			Type:  models.SourcePlaylist,
			ID:    playlist.ID,
			Name:  playlist.Name,
			Image: catalog.FirstImageURL(playlist.Images),
		})
	}
	respondJSON(w, http.StatusOK, sources)
}

type discoverDestinationsResponse struct {
	Selected     models.DiscoverDestination   `json:"selected"`
	Destinations []models.DiscoverDestination `json:"destinations"`
	Offset       int                          `json:"offset"`
	Total        int                          `json:"total"`
}

// DiscoverDestinations lists favourites plus a page of the user's own
// playlists as save targets.
func (s *Server) DiscoverDestinations(w http.ResponseWriter, r *http.Request) {
	_, data, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}

	offset := queryInt(r, "offset", 0)
	page, err := s.catalog.UserPlaylists(r.Context(), token, offset, 20)
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_error", "could not list playlists")
		return
	}

	destinations := make([]models.DiscoverDestination, 0, len(page.Items)+1)
	if offset == 0 {
		destinations = append(destinations, models.DefaultDiscoverDestination())
	}
	for _, playlist := range page.Items {
		destinations = append(destinations, models.DiscoverDestination{
			ID:    playlist.ID,
			Name:  playlist.Name,
			Image: catalog.FirstImageURL(playlist.Images),
		})
	}

	respondJSON(w, http.StatusOK, discoverDestinationsResponse{
		Selected:     data.SelectedDiscoverDestination,
		Destinations: destinations,
		Offset:       page.Offset,
		Total:        page.Total,
	})
}

// SetDiscoverDestination switches the save target and rebuilds its
// membership cache in the background.
func (s *Server) SetDiscoverDestination(w http.ResponseWriter, r *http.Request) {
	claims, _, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}

	var destination models.DiscoverDestination
	if err := json.NewDecoder(r.Body).Decode(&destination); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "malformed destination body")
		return
	}
	if !destination.IsFavourites && destination.ID == "" {
		respondError(w, http.StatusBadRequest, "bad_destination", "playlist destinations need an id")
		return
	}

	if err := s.users.SetSelectedDestination(r.Context(), claims.UserID, destination); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not persist the selection")
		return
	}

	s.decks.DispatchResetDestinationDeck(claims.UserID, token, destination)
	respondJSON(w, http.StatusOK, destination)
}

// DeckItems returns the current source deck contents.
func (s *Server) DeckItems(w http.ResponseWriter, r *http.Request) {
	claims, _, _, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	items, err := s.decks.SourceDeckItems(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not read the deck")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// RefillSourceDeck triggers a background top-up of the source deck and
// returns immediately.
func (s *Server) RefillSourceDeck(w http.ResponseWriter, r *http.Request) {
	claims, data, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	s.decks.DispatchRefillSourceDeck(claims.UserID, token, data.SelectedDiscoverSource)
	respondJSON(w, http.StatusAccepted, nil)
}

// ResetDestinationDeck triggers a background rebuild of the destination
// membership cache and returns immediately.
func (s *Server) ResetDestinationDeck(w http.ResponseWriter, r *http.Request) {
	claims, data, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	s.decks.DispatchResetDestinationDeck(claims.UserID, token, data.SelectedDiscoverDestination)
	respondJSON(w, http.StatusAccepted, nil)
}

// DestinationContains answers the "already saved" pre-mark for one item.
func (s *Server) DestinationContains(w http.ResponseWriter, r *http.Request) {
	claims, _, _, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	trackID := r.URL.Query().Get("trackId")
	if trackID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "query parameter trackId is required")
		return
	}
	saved, err := s.decks.IsSaved(r.Context(), claims.UserID, trackID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not check membership")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

// SaveToDestination pushes a right-swiped item to the selected save
// target, records it in the membership cache, and drops it from the
// source deck.
func (s *Server) SaveToDestination(w http.ResponseWriter, r *http.Request) {
	claims, data, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	trackID := r.URL.Query().Get("trackId")
	if trackID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "query parameter trackId is required")
		return
	}

	if data.SelectedDiscoverDestination.IsFavourites {
		err = s.catalog.SaveTracks(r.Context(), token, []string{trackID})
	} else {
		err = s.catalog.AddPlaylistTracks(r.Context(), token, data.SelectedDiscoverDestination.ID, []string{"spotify:track:" + trackID})
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_error", "could not save the item")
		return
	}

	if err := s.decks.MarkSaved(r.Context(), claims.UserID, trackID); err != nil {
		logging.Warn().Err(err).Str("track_id", trackID).Msg("Membership cache update failed after save")
	}
	if err := s.decks.RemoveSourceDeckItem(r.Context(), claims.UserID, trackID); err != nil {
		logging.Warn().Err(err).Str("track_id", trackID).Msg("Source deck removal failed after save")
	}
	respondJSON(w, http.StatusOK, nil)
}

// RemoveFromDestination undoes a save. Only the favourites target
// supports upstream removal; playlist rows are left in place and only the
// membership cache is updated.
func (s *Server) RemoveFromDestination(w http.ResponseWriter, r *http.Request) {
	claims, data, token, err := s.session(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no_user", "session user not found")
		return
	}
	trackID := r.URL.Query().Get("trackId")
	if trackID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "query parameter trackId is required")
		return
	}

	if data.SelectedDiscoverDestination.IsFavourites {
		if err := s.catalog.RemoveSavedTracks(r.Context(), token, []string{trackID}); err != nil {
			respondError(w, http.StatusBadGateway, "catalog_error", "could not remove the item")
			return
		}
	}
	if err := s.decks.UnmarkSaved(r.Context(), claims.UserID, trackID); err != nil {
		logging.Warn().Err(err).Str("track_id", trackID).Msg("Membership cache update failed after remove")
	}
	respondJSON(w, http.StatusOK, nil)
}

// PresenceOnline publishes the session user's online transition.
func (s *Server) PresenceOnline(w http.ResponseWriter, r *http.Request) {
	s.publishPresence(w, r, s.cfg.Presence.OnlineTopic)
}

// PresenceOffline publishes the session user's offline transition.
func (s *Server) PresenceOffline(w http.ResponseWriter, r *http.Request) {
	s.publishPresence(w, r, s.cfg.Presence.OfflineTopic)
}

func (s *Server) publishPresence(w http.ResponseWriter, r *http.Request, topic string) {
	claims, ok := SessionClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no_session", "authentication required")
		return
	}
	msg, err := presence.NewMessage(claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "presence_error", "could not build the transition")
		return
	}
	if err := s.publisher.Publish(topic, msg); err != nil {
		respondError(w, http.StatusServiceUnavailable, "presence_error", "could not publish the transition")
		return
	}
	respondJSON(w, http.StatusAccepted, nil)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
