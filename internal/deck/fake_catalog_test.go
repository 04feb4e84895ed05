// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package deck

import (
	"context"
	"fmt"
	"sync"

	"github.com/spindeck/spindeck/internal/catalog"
)

// fakeAPI is an in-process catalog fake. Behaviors are overridable per
// test through function fields; unset fields return empty results. Call
// counts are tracked per operation.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	topTracksFn       func(offset, limit int) (*catalog.TrackPage, error)
	savedTracksFn     func(offset, limit int) (*catalog.SavedTrackPage, error)
	playlistsFn       func(offset, limit int) (*catalog.PlaylistPage, error)
	playlistTracksFn  func(playlistID string, offset, limit int) (*catalog.PlaylistTrackPage, error)
	followedArtistsFn func(limit int) ([]catalog.Artist, error)
	severalArtistsFn  func(ids []string) ([]catalog.Artist, error)
	artistTopFn       func(artistID string) ([]catalog.Track, error)
	searchFn          func(query string, limit int) (*catalog.PlaylistPage, error)
	refreshFn         func(refreshToken string) (*catalog.Token, error)
}

var _ catalog.API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// echoArtists answers a several-artists lookup by echoing each id back as
// a full artist record, keeping results index-aligned with the request.
func echoArtists(ids []string) ([]catalog.Artist, error) {
	artists := make([]catalog.Artist, len(ids))
	for i, id := range ids {
		artists[i] = catalog.Artist{
			ID:     id,
			Name:   "name-" + id,
			URI:    "spotify:artist:" + id,
			Genres: []string{"genre-" + id},
			Images: []catalog.Image{{URL: "http://img/" + id}},
		}
	}
	return artists, nil
}

// makeTrack builds a track whose primary artist is artistID.
func makeTrack(trackID, artistID string) catalog.Track {
	return catalog.Track{
		ID:         trackID,
		Name:       "track-" + trackID,
		URI:        "spotify:track:" + trackID,
		PreviewURL: "http://preview/" + trackID,
		Artists:    []catalog.Artist{{ID: artistID, Name: "name-" + artistID, URI: "spotify:artist:" + artistID}},
		Album:      catalog.Album{Images: []catalog.Image{{URL: "http://album/" + trackID}}},
	}
}

func makeTracks(prefix string, n int) []catalog.Track {
	tracks := make([]catalog.Track, n)
	for i := range tracks {
		id := fmt.Sprintf("%s%02d", prefix, i)
		tracks[i] = makeTrack(id, "a-"+id)
	}
	return tracks
}

func (f *fakeAPI) UserProfile(context.Context, string) (*catalog.UserProfile, error) {
	f.count("user_profile")
	return &catalog.UserProfile{ID: "fake"}, nil
}

func (f *fakeAPI) UserTopTracks(_ context.Context, _ string, offset, limit int) (*catalog.TrackPage, error) {
	f.count("top_tracks")
	if f.topTracksFn != nil {
		return f.topTracksFn(offset, limit)
	}
	return &catalog.TrackPage{}, nil
}

func (f *fakeAPI) UserSavedTracks(_ context.Context, _ string, offset, limit int) (*catalog.SavedTrackPage, error) {
	f.count("saved_tracks")
	if f.savedTracksFn != nil {
		return f.savedTracksFn(offset, limit)
	}
	return &catalog.SavedTrackPage{}, nil
}

func (f *fakeAPI) UserPlaylists(_ context.Context, _ string, offset, limit int) (*catalog.PlaylistPage, error) {
	f.count("user_playlists")
	if f.playlistsFn != nil {
		return f.playlistsFn(offset, limit)
	}
	return &catalog.PlaylistPage{}, nil
}

func (f *fakeAPI) PlaylistTracks(_ context.Context, _, playlistID string, offset, limit int) (*catalog.PlaylistTrackPage, error) {
	f.count("playlist_tracks")
	if f.playlistTracksFn != nil {
		return f.playlistTracksFn(playlistID, offset, limit)
	}
	return &catalog.PlaylistTrackPage{}, nil
}

func (f *fakeAPI) FollowedArtists(_ context.Context, _ string, limit int) ([]catalog.Artist, error) {
	f.count("followed_artists")
	if f.followedArtistsFn != nil {
		return f.followedArtistsFn(limit)
	}
	return nil, nil
}

func (f *fakeAPI) SeveralArtists(_ context.Context, _ string, ids []string) ([]catalog.Artist, error) {
	f.count("several_artists")
	if f.severalArtistsFn != nil {
		return f.severalArtistsFn(ids)
	}
	return echoArtists(ids)
}

func (f *fakeAPI) ArtistTopTracks(_ context.Context, _, artistID string) ([]catalog.Track, error) {
	f.count("artist_top_tracks")
	if f.artistTopFn != nil {
		return f.artistTopFn(artistID)
	}
	return nil, nil
}

func (f *fakeAPI) SearchPlaylists(_ context.Context, _, query string, limit int) (*catalog.PlaylistPage, error) {
	f.count("search_playlists")
	if f.searchFn != nil {
		return f.searchFn(query, limit)
	}
	return &catalog.PlaylistPage{}, nil
}

func (f *fakeAPI) AddPlaylistTracks(context.Context, string, string, []string) error {
	f.count("add_playlist_tracks")
	return nil
}

func (f *fakeAPI) SaveTracks(context.Context, string, []string) error {
	f.count("save_tracks")
	return nil
}

func (f *fakeAPI) RemoveSavedTracks(context.Context, string, []string) error {
	f.count("remove_saved_tracks")
	return nil
}

func (f *fakeAPI) RefreshToken(_ context.Context, refreshToken string) (*catalog.Token, error) {
	f.count("refresh_token")
	if f.refreshFn != nil {
		return f.refreshFn(refreshToken)
	}
	return &catalog.Token{AccessToken: "refreshed", RefreshToken: refreshToken}, nil
}

// fakePresence reports fixed online states.
type fakePresence struct {
	online map[string]bool
}

func (p *fakePresence) IsOnline(_ context.Context, userID string) (bool, error) {
	return p.online[userID], nil
}
