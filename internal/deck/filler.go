// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

/*
filler.go - Item Aggregator

Turns a discover source into a batch of fully-enriched deck items. Every
variant path produces raw catalog tracks; the shared completion step
resolves primary-artist details in one batched lookup, builds the related
sources a swipe can pivot into, and drops any track whose artist lookup
came back empty. Whatever the variant, callers get at least two items or
an error.
*/

package deck

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/userdata"
)

const (
	// sampleSize is how many artists, playlists or users a composite
	// variant samples at random.
	sampleSize = 5

	// vibeTopPicks is how many top-ranked search results the vibe variant
	// always takes before adding one random deeper result.
	vibeTopPicks = 4

	// peopleBlendCount is how many tracks each sampled person contributes.
	peopleBlendCount = 10

	// minDeckItems is the floor below which the filler tops up from the
	// anything-me blend.
	minDeckItems = 2
)

// OnlineChecker reports whether a user currently holds a presence record.
type OnlineChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Filler aggregates deck items from the catalog for a discover source.
type Filler struct {
	api      catalog.API
	users    *userdata.Repo
	presence OnlineChecker
	cfg      *config.DeckConfig
}

// NewFiller creates an item aggregator.
func NewFiller(api catalog.API, users *userdata.Repo, presence OnlineChecker, cfg *config.DeckConfig) *Filler {
	return &Filler{api: api, users: users, presence: presence, cfg: cfg}
}

// DeckItems resolves the source into enriched deck items. If the variant
// path yields fewer than two items, the result is topped up with the
// anything-me blend before returning.
func (f *Filler) DeckItems(ctx context.Context, source models.DiscoverSource, accessToken string) ([]models.DeckItem, error) {
	if err := source.Valid(); err != nil {
		return nil, err
	}

	var (
		items []models.DeckItem
		err   error
	)
	switch source.Type {
	case models.SourceAnythingMe:
		items, err = f.anythingMe(ctx, accessToken, f.cfg.RefillCount)
	case models.SourcePeople:
		items, err = f.peopleTracks(ctx)
	case models.SourceMyArtists:
		items, err = f.myArtistsTracks(ctx, accessToken)
	case models.SourceMyPlaylists:
		items, err = f.myPlaylistsTracks(ctx, accessToken)
	case models.SourceVibe:
		items, err = f.vibeTracks(ctx, accessToken, source.Name)
	case models.SourcePerson:
		items, err = f.personTracks(ctx, source.ID)
	case models.SourceArtist:
		items, err = f.artistTracks(ctx, accessToken, source)
	case models.SourcePlaylist:
		items, err = f.playlistTracks(ctx, accessToken, source.ID, false)
	case models.SourceRadio:
		items, err = f.playlistTracks(ctx, accessToken, source.ID, true)
	}
	if err != nil {
		return nil, err
	}

	if len(items) < minDeckItems {
		extra, err := f.anythingMe(ctx, accessToken, f.cfg.RefillCount)
		if err != nil {
			return nil, fmt.Errorf("top up sparse %s deck: %w", source.Type, err)
		}
		items = append(items, extra...)
	}
	return items, nil
}

// anythingMe blends a random window of the user's top tracks with a page
// of their saved tracks.
func (f *Filler) anythingMe(ctx context.Context, accessToken string, count int) ([]models.DeckItem, error) {
	half := count / 2
	if half < 1 {
		half = 1
	}

	// Probe with one track to learn the total, then pick a random window.
	probe, err := f.api.UserTopTracks(ctx, accessToken, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("probe top tracks: %w", err)
	}
	maxOffset := probe.Total - half
	if maxOffset < 0 {
		maxOffset = 0
	}
	offset := 0
	if maxOffset > 0 {
		offset = rand.Intn(maxOffset + 1)
	}
	limit := probe.Total - offset
	if limit > half {
		limit = half
	}

	tracks := make([]catalog.Track, 0, count)
	if limit > 0 {
		top, err := f.api.UserTopTracks(ctx, accessToken, offset, limit)
		if err != nil {
			return nil, fmt.Errorf("top tracks window: %w", err)
		}
		tracks = append(tracks, top.Items...)
	}

	saved, err := f.api.UserSavedTracks(ctx, accessToken, 0, half)
	if err != nil {
		return nil, fmt.Errorf("saved tracks: %w", err)
	}
	for i := range saved.Items {
		tracks = append(tracks, saved.Items[i].Track)
	}

	shuffleTracks(tracks)
	return f.enrich(ctx, accessToken, tracks)
}

// peopleTracks samples other users and blends a small anything-me batch
// from each of them. A failing user is skipped, not fatal.
func (f *Filler) peopleTracks(ctx context.Context) ([]models.DeckItem, error) {
	people, err := f.users.RandomUsers(ctx, sampleSize)
	if err != nil {
		return nil, err
	}

	var items []models.DeckItem
	for _, person := range people {
		token, err := f.personToken(ctx, person.ID, &person.Data)
		if err != nil {
			logging.Warn().Err(err).Str("user_id", person.ID).Msg("Skipping person with unusable token")
			continue
		}
		batch, err := f.anythingMe(ctx, token, peopleBlendCount)
		if err != nil {
			logging.Warn().Err(err).Str("user_id", person.ID).Msg("Skipping person after fetch failure")
			continue
		}
		items = append(items, batch...)
	}
	return items, nil
}

// personTracks is the anything-me blend computed with another user's
// token.
func (f *Filler) personTracks(ctx context.Context, personID string) ([]models.DeckItem, error) {
	person, err := f.users.Get(ctx, personID)
	if err != nil {
		return nil, err
	}
	token, err := f.personToken(ctx, personID, person)
	if err != nil {
		return nil, err
	}
	return f.anythingMe(ctx, token, f.cfg.RefillCount)
}

// personToken returns a usable access token for another user. An online
// user's stored token is trusted; an offline user's token is refreshed,
// which is safe since they will refresh again on their next login.
func (f *Filler) personToken(ctx context.Context, userID string, data *models.UserData) (string, error) {
	online, err := f.presence.IsOnline(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("presence lookup for %s: %w", userID, err)
	}
	if online {
		return data.AccessToken, nil
	}
	token, err := f.api.RefreshToken(ctx, data.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token for offline user %s: %w", userID, err)
	}
	return token.AccessToken, nil
}

// myArtistsTracks samples followed artists and pools their top tracks.
func (f *Filler) myArtistsTracks(ctx context.Context, accessToken string) ([]models.DeckItem, error) {
	followed, err := f.api.FollowedArtists(ctx, accessToken, 50)
	if err != nil {
		return nil, fmt.Errorf("followed artists: %w", err)
	}

	sampled := sampleArtists(followed, sampleSize)
	var tracks []catalog.Track
	for _, artist := range sampled {
		top, err := f.api.ArtistTopTracks(ctx, accessToken, artist.ID)
		if err != nil {
			logging.Warn().Err(err).Str("artist_id", artist.ID).Msg("Skipping artist after top-tracks failure")
			continue
		}
		tracks = append(tracks, top...)
	}

	shuffleTracks(tracks)
	if len(tracks) > f.cfg.RefillCount {
		tracks = tracks[:f.cfg.RefillCount]
	}
	return f.enrich(ctx, accessToken, tracks)
}

// myPlaylistsTracks samples a random window of the user's playlists and
// takes a prefix of tracks from each sampled playlist.
func (f *Filler) myPlaylistsTracks(ctx context.Context, accessToken string) ([]models.DeckItem, error) {
	probe, err := f.api.UserPlaylists(ctx, accessToken, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("probe playlists: %w", err)
	}

	window := 10
	maxOffset := probe.Total - window
	if maxOffset < 0 {
		maxOffset = 0
	}
	offset := 0
	if maxOffset > 0 {
		offset = rand.Intn(maxOffset + 1)
	}
	limit := probe.Total - offset
	if limit > window {
		limit = window
	}
	if limit < 1 {
		return nil, nil
	}

	page, err := f.api.UserPlaylists(ctx, accessToken, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("playlists window: %w", err)
	}

	sampled := samplePlaylists(page.Items, sampleSize)
	return f.pooledPlaylistTracks(ctx, accessToken, sampled)
}

// vibeTracks searches playlists for the vibe text and pools track prefixes
// from the top four results plus one random deeper result.
func (f *Filler) vibeTracks(ctx context.Context, accessToken, vibe string) ([]models.DeckItem, error) {
	page, err := f.api.SearchPlaylists(ctx, accessToken, vibe, 50)
	if err != nil {
		return nil, fmt.Errorf("vibe search %q: %w", vibe, err)
	}

	picks := page.Items
	if len(picks) > vibeTopPicks {
		rest := picks[vibeTopPicks:]
		picks = append(picks[:vibeTopPicks:vibeTopPicks], rest[rand.Intn(len(rest))])
	}
	return f.pooledPlaylistTracks(ctx, accessToken, picks)
}

// artistTracks serves an artist's top tracks, topping up from a playlist
// search on the artist's name when the catalog returns too few.
func (f *Filler) artistTracks(ctx context.Context, accessToken string, source models.DiscoverSource) ([]models.DeckItem, error) {
	tracks, err := f.api.ArtistTopTracks(ctx, accessToken, source.ID)
	if err != nil {
		return nil, fmt.Errorf("artist top tracks: %w", err)
	}

	if len(tracks) < f.cfg.RefillCount && source.Name != "" {
		page, err := f.api.SearchPlaylists(ctx, accessToken, source.Name, sampleSize)
		if err != nil {
			logging.Warn().Err(err).Str("artist", source.Name).Msg("Artist top-up search failed")
		} else {
			for _, playlist := range page.Items {
				if len(tracks) >= f.cfg.RefillCount {
					break
				}
				prefix, err := f.api.PlaylistTracks(ctx, accessToken, playlist.ID, 0, f.cfg.PlaylistPrefix)
				if err != nil {
					logging.Warn().Err(err).Str("playlist_id", playlist.ID).Msg("Skipping top-up playlist")
					continue
				}
				tracks = append(tracks, prefix.Tracks()...)
			}
		}
	}

	if len(tracks) > f.cfg.RefillCount {
		tracks = tracks[:f.cfg.RefillCount]
	}
	return f.enrich(ctx, accessToken, tracks)
}

// playlistTracks takes a prefix of the playlist, shuffled for radio.
func (f *Filler) playlistTracks(ctx context.Context, accessToken, playlistID string, shuffle bool) ([]models.DeckItem, error) {
	page, err := f.api.PlaylistTracks(ctx, accessToken, playlistID, 0, f.cfg.RefillCount)
	if err != nil {
		return nil, fmt.Errorf("playlist tracks: %w", err)
	}
	tracks := page.Tracks()
	if shuffle {
		shuffleTracks(tracks)
	}
	return f.enrich(ctx, accessToken, tracks)
}

// pooledPlaylistTracks takes a prefix of tracks from each playlist. A
// failing playlist is skipped, not fatal.
func (f *Filler) pooledPlaylistTracks(ctx context.Context, accessToken string, playlists []catalog.Playlist) ([]models.DeckItem, error) {
	var tracks []catalog.Track
	for _, playlist := range playlists {
		page, err := f.api.PlaylistTracks(ctx, accessToken, playlist.ID, 0, f.cfg.PlaylistPrefix)
		if err != nil {
			logging.Warn().Err(err).Str("playlist_id", playlist.ID).Msg("Skipping playlist after fetch failure")
			continue
		}
		tracks = append(tracks, page.Tracks()...)
	}
	return f.enrich(ctx, accessToken, tracks)
}

// enrich resolves primary-artist details for every track in one batched
// lookup and assembles the deck items. A track whose primary artist came
// back empty is dropped rather than failing the batch.
func (f *Filler) enrich(ctx context.Context, accessToken string, tracks []catalog.Track) ([]models.DeckItem, error) {
	if len(tracks) == 0 {
		return nil, nil
	}

	ids := make([]string, len(tracks))
	for i := range tracks {
		ids[i] = tracks[i].PrimaryArtistID()
	}
	details, err := f.api.SeveralArtists(ctx, accessToken, ids)
	if err != nil {
		return nil, fmt.Errorf("artist details: %w", err)
	}

	items := make([]models.DeckItem, 0, len(tracks))
	for i := range tracks {
		if i >= len(details) || details[i].ID == "" {
			logging.Debug().Str("track_id", tracks[i].ID).Msg("Dropping track with unresolved primary artist")
			continue
		}
		items = append(items, buildDeckItem(&tracks[i], &details[i]))
	}
	return items, nil
}

// buildDeckItem assembles one card from a track and its resolved primary
// artist. Related sources are one artist source per contributing artist
// and one vibe source per genre on the primary artist.
func buildDeckItem(track *catalog.Track, primary *catalog.Artist) models.DeckItem {
	primaryImage := catalog.FirstImageURL(primary.Images)

	related := make([]models.DiscoverSource, 0, len(track.Artists)+len(primary.Genres))
	artists := make([]models.DeckItemArtist, 0, len(track.Artists))
	for _, artist := range track.Artists {
		related = append(related, models.DiscoverSource{
			Type:  models.SourceArtist,
			ID:    artist.ID,
			Name:  artist.Name,
			Image: primaryImage,
		})
		artists = append(artists, models.DeckItemArtist{
			ArtistName:  artist.Name,
			ArtistURI:   artist.URI,
			ArtistImage: primaryImage,
		})
	}
	for _, genre := range primary.Genres {
		related = append(related, models.DiscoverSource{
			Type:  models.SourceVibe,
			ID:    genre,
			Name:  genre,
			Image: primaryImage,
		})
	}

	return models.DeckItem{
		TrackID:        track.ID,
		Image:          catalog.FirstImageURL(track.Album.Images),
		PreviewURL:     track.PreviewURL,
		TrackName:      track.Name,
		TrackURI:       track.URI,
		Artists:        artists,
		RelatedSources: related,
	}
}

func shuffleTracks(tracks []catalog.Track) {
	rand.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}

func sampleArtists(artists []catalog.Artist, n int) []catalog.Artist {
	if len(artists) <= n {
		return artists
	}
	sampled := make([]catalog.Artist, len(artists))
	copy(sampled, artists)
	rand.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})
	return sampled[:n]
}

func samplePlaylists(playlists []catalog.Playlist, n int) []catalog.Playlist {
	if len(playlists) <= n {
		return playlists
	}
	sampled := make([]catalog.Playlist, len(playlists))
	copy(sampled, playlists)
	rand.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})
	return sampled[:n]
}
