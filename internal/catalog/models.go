// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package catalog

// PlaceholderArtistID substitutes for the primary artist of a track that
// carries no artist list, so batched artist lookups stay index-aligned
// with the track list they enrich.
const PlaceholderArtistID = "0TnOYISbd1XYRBk9myaseg"

// Image is a single rendition of catalog artwork.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// FirstImageURL returns the URL of the first rendition, or "" when the
// catalog supplied no artwork.
func FirstImageURL(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// Artist is a catalog artist. Genres and Images are only populated by the
// several-artists endpoint; track-embedded artists carry ID, Name and URI.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	URI    string   `json:"uri"`
	Genres []string `json:"genres,omitempty"`
	Images []Image  `json:"images,omitempty"`
}

// Album carries the subset of album fields the deck needs.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track is a catalog track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	PreviewURL string   `json:"preview_url"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// PrimaryArtistID returns the id of the track's first artist, falling back
// to PlaceholderArtistID for artist-less tracks.
func (t *Track) PrimaryArtistID() string {
	if len(t.Artists) == 0 {
		return PlaceholderArtistID
	}
	return t.Artists[0].ID
}

// TrackPage is an offset-paged list of tracks (top tracks endpoint).
type TrackPage struct {
	Items  []Track `json:"items"`
	Limit  int     `json:"limit"`
	Next   string  `json:"next"`
	Offset int     `json:"offset"`
	Total  int     `json:"total"`
}

// SavedTrack wraps a track in the user's library.
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// SavedTrackPage is an offset-paged list of library tracks.
type SavedTrackPage struct {
	Items  []SavedTrack `json:"items"`
	Limit  int          `json:"limit"`
	Next   string       `json:"next"`
	Offset int          `json:"offset"`
	Total  int          `json:"total"`
}

// PlaylistOwner identifies the owner of a playlist.
type PlaylistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist is a catalog playlist summary.
type Playlist struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	URI    string        `json:"uri"`
	Images []Image       `json:"images"`
	Owner  PlaylistOwner `json:"owner"`
}

// PlaylistPage is an offset-paged list of playlists. Next carries the
// upstream continuation URL, empty on the last page.
type PlaylistPage struct {
	Items  []Playlist `json:"items"`
	Limit  int        `json:"limit"`
	Next   string     `json:"next"`
	Offset int        `json:"offset"`
	Total  int        `json:"total"`
}

// PlaylistTrack wraps a track inside a playlist. Track may be null upstream
// for removed or unavailable entries.
type PlaylistTrack struct {
	Track *Track `json:"track"`
}

// PlaylistTrackPage is an offset-paged list of playlist entries.
type PlaylistTrackPage struct {
	Items  []PlaylistTrack `json:"items"`
	Limit  int             `json:"limit"`
	Next   string          `json:"next"`
	Offset int             `json:"offset"`
	Total  int             `json:"total"`
}

// Tracks returns the non-null tracks of the page in order.
func (p *PlaylistTrackPage) Tracks() []Track {
	tracks := make([]Track, 0, len(p.Items))
	for i := range p.Items {
		if p.Items[i].Track != nil {
			tracks = append(tracks, *p.Items[i].Track)
		}
	}
	return tracks
}

// followedArtistsResponse mirrors the cursor-paged followed-artists payload.
type followedArtistsResponse struct {
	Artists struct {
		Items []Artist `json:"items"`
		Total int      `json:"total"`
	} `json:"artists"`
}

// severalArtistsResponse mirrors the batched artist lookup payload.
type severalArtistsResponse struct {
	Artists []Artist `json:"artists"`
}

// artistTopTracksResponse mirrors the artist top-tracks payload.
type artistTopTracksResponse struct {
	Tracks []Track `json:"tracks"`
}

// SearchResult holds the playlist slice of a catalog search.
type SearchResult struct {
	Playlists PlaylistPage `json:"playlists"`
}

// UserProfile is the authenticated catalog user.
type UserProfile struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Images      []Image `json:"images"`
}

// Token is an OAuth token pair from the accounts endpoint. RefreshToken is
// carried over from the request when the upstream omits it, since the
// catalog does not reissue refresh tokens on refresh grants.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// apiErrorResponse mirrors the catalog's error envelope.
type apiErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
