// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package api

import (
	"context"
	"sync"

	"github.com/spindeck/spindeck/internal/catalog"
)

// fakeCatalog is a minimal in-process catalog for handler tests. Only the
// surface the HTTP layer touches has configurable behavior; engine-side
// calls triggered by background dispatch return empty results.
type fakeCatalog struct {
	mu    sync.Mutex
	calls map[string]int

	profile     *catalog.UserProfile
	profileErr  error
	playlists   []catalog.Playlist
	searchItems []catalog.Playlist
	savedIDs    []string
	removedIDs  []string
	addedURIs   []string
}

var _ catalog.API = (*fakeCatalog)(nil)

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		calls:   make(map[string]int),
		profile: &catalog.UserProfile{ID: "u1", DisplayName: "Test User"},
	}
}

func (f *fakeCatalog) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeCatalog) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCatalog) UserProfile(context.Context, string) (*catalog.UserProfile, error) {
	f.count("user_profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeCatalog) UserTopTracks(context.Context, string, int, int) (*catalog.TrackPage, error) {
	f.count("top_tracks")
	return &catalog.TrackPage{}, nil
}

func (f *fakeCatalog) UserSavedTracks(context.Context, string, int, int) (*catalog.SavedTrackPage, error) {
	f.count("saved_tracks")
	return &catalog.SavedTrackPage{}, nil
}

func (f *fakeCatalog) UserPlaylists(context.Context, string, int, int) (*catalog.PlaylistPage, error) {
	f.count("user_playlists")
	return &catalog.PlaylistPage{Items: f.playlists, Total: len(f.playlists)}, nil
}

func (f *fakeCatalog) PlaylistTracks(context.Context, string, string, int, int) (*catalog.PlaylistTrackPage, error) {
	f.count("playlist_tracks")
	return &catalog.PlaylistTrackPage{}, nil
}

func (f *fakeCatalog) FollowedArtists(context.Context, string, int) ([]catalog.Artist, error) {
	f.count("followed_artists")
	return nil, nil
}

func (f *fakeCatalog) SeveralArtists(_ context.Context, _ string, ids []string) ([]catalog.Artist, error) {
	f.count("several_artists")
	artists := make([]catalog.Artist, len(ids))
	for i, id := range ids {
		artists[i] = catalog.Artist{ID: id, Name: "name-" + id}
	}
	return artists, nil
}

func (f *fakeCatalog) ArtistTopTracks(context.Context, string, string) ([]catalog.Track, error) {
	f.count("artist_top_tracks")
	return nil, nil
}

func (f *fakeCatalog) SearchPlaylists(context.Context, string, string, int) (*catalog.PlaylistPage, error) {
	f.count("search_playlists")
	return &catalog.PlaylistPage{Items: f.searchItems, Total: len(f.searchItems)}, nil
}

func (f *fakeCatalog) AddPlaylistTracks(_ context.Context, _, _ string, uris []string) error {
	f.mu.Lock()
	f.calls["add_playlist_tracks"]++
	f.addedURIs = append(f.addedURIs, uris...)
	f.mu.Unlock()
	return nil
}

func (f *fakeCatalog) SaveTracks(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	f.calls["save_tracks"]++
	f.savedIDs = append(f.savedIDs, ids...)
	f.mu.Unlock()
	return nil
}

func (f *fakeCatalog) RemoveSavedTracks(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	f.calls["remove_saved_tracks"]++
	f.removedIDs = append(f.removedIDs, ids...)
	f.mu.Unlock()
	return nil
}

func (f *fakeCatalog) RefreshToken(context.Context, string) (*catalog.Token, error) {
	f.count("refresh_token")
	return &catalog.Token{AccessToken: "admin-access", RefreshToken: "admin-refresh"}, nil
}
