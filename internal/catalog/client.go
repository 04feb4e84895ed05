// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

/*
client.go - Upstream Catalog REST Client

This file implements the REST client for the Spotify-shaped catalog API.
It covers the user-scoped reads the deck filler needs (top tracks, saved
tracks, playlists, followed artists), batched artist lookups, playlist
search, the write endpoints used when a swipe lands, and the refresh-token
grant against the accounts endpoint.
*/

package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/metrics"
)

// severalArtistsMax is the upstream cap on ids per batched artist lookup.
const severalArtistsMax = 50

// API defines the catalog operations the engine consumes. Both Client and
// BreakerClient implement this interface.
type API interface {
	UserProfile(ctx context.Context, accessToken string) (*UserProfile, error)
	UserTopTracks(ctx context.Context, accessToken string, offset, limit int) (*TrackPage, error)
	UserSavedTracks(ctx context.Context, accessToken string, offset, limit int) (*SavedTrackPage, error)
	UserPlaylists(ctx context.Context, accessToken string, offset, limit int) (*PlaylistPage, error)
	PlaylistTracks(ctx context.Context, accessToken, playlistID string, offset, limit int) (*PlaylistTrackPage, error)
	FollowedArtists(ctx context.Context, accessToken string, limit int) ([]Artist, error)
	SeveralArtists(ctx context.Context, accessToken string, ids []string) ([]Artist, error)
	ArtistTopTracks(ctx context.Context, accessToken, artistID string) ([]Track, error)
	SearchPlaylists(ctx context.Context, accessToken, query string, limit int) (*PlaylistPage, error)
	AddPlaylistTracks(ctx context.Context, accessToken, playlistID string, uris []string) error
	SaveTracks(ctx context.Context, accessToken string, ids []string) error
	RemoveSavedTracks(ctx context.Context, accessToken string, ids []string) error
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// Ensure Client implements API
var _ API = (*Client)(nil)

// Client provides access to the upstream catalog REST API. It is stateless
// apart from the shared rate limiter and safe for concurrent use.
type Client struct {
	baseURL     string
	accountsURL string
	clientID    string
	clientSec   string
	market      string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a catalog client from configuration.
func NewClient(cfg *config.CatalogConfig) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		accountsURL: strings.TrimSuffix(cfg.AccountsURL, "/"),
		clientID:    cfg.ClientID,
		clientSec:   cfg.ClientSecret,
		market:      cfg.Market,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
	}
}

// UserProfile retrieves the authenticated user's profile.
func (c *Client) UserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.getJSON(ctx, "user_profile", accessToken, "/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UserTopTracks retrieves a page of the user's top tracks.
func (c *Client) UserTopTracks(ctx context.Context, accessToken string, offset, limit int) (*TrackPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page TrackPage
	if err := c.getJSON(ctx, "top_tracks", accessToken, "/me/top/tracks", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UserSavedTracks retrieves a page of the user's library tracks.
func (c *Client) UserSavedTracks(ctx context.Context, accessToken string, offset, limit int) (*SavedTrackPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page SavedTrackPage
	if err := c.getJSON(ctx, "saved_tracks", accessToken, "/me/tracks", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UserPlaylists retrieves a page of the user's playlists, owned and
// followed alike. Callers filter by owner where it matters.
func (c *Client) UserPlaylists(ctx context.Context, accessToken string, offset, limit int) (*PlaylistPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page PlaylistPage
	if err := c.getJSON(ctx, "user_playlists", accessToken, "/me/playlists", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PlaylistTracks retrieves a page of a playlist's entries.
func (c *Client) PlaylistTracks(ctx context.Context, accessToken, playlistID string, offset, limit int) (*PlaylistTrackPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page PlaylistTrackPage
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := c.getJSON(ctx, "playlist_tracks", accessToken, endpoint, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FollowedArtists retrieves up to limit artists the user follows.
func (c *Client) FollowedArtists(ctx context.Context, accessToken string, limit int) ([]Artist, error) {
	q := url.Values{}
	q.Set("type", "artist")
	q.Set("limit", strconv.Itoa(limit))

	var resp followedArtistsResponse
	if err := c.getJSON(ctx, "followed_artists", accessToken, "/me/following", q, &resp); err != nil {
		return nil, err
	}
	return resp.Artists.Items, nil
}

// SeveralArtists retrieves full artist records for the given ids, chunking
// at the upstream batch cap. Results preserve input order, so callers can
// index them against the track list the ids came from.
func (c *Client) SeveralArtists(ctx context.Context, accessToken string, ids []string) ([]Artist, error) {
	artists := make([]Artist, 0, len(ids))
	for start := 0; start < len(ids); start += severalArtistsMax {
		end := start + severalArtistsMax
		if end > len(ids) {
			end = len(ids)
		}

		q := url.Values{}
		q.Set("ids", strings.Join(ids[start:end], ","))

		var resp severalArtistsResponse
		if err := c.getJSON(ctx, "several_artists", accessToken, "/artists", q, &resp); err != nil {
			return nil, err
		}
		artists = append(artists, resp.Artists...)
	}
	return artists, nil
}

// ArtistTopTracks retrieves an artist's top tracks in the configured
// market.
func (c *Client) ArtistTopTracks(ctx context.Context, accessToken, artistID string) ([]Track, error) {
	q := url.Values{}
	if c.market != "" {
		q.Set("market", c.market)
	}

	var resp artistTopTracksResponse
	endpoint := "/artists/" + url.PathEscape(artistID) + "/top-tracks"
	if err := c.getJSON(ctx, "artist_top_tracks", accessToken, endpoint, q, &resp); err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// SearchPlaylists searches the catalog for playlists matching query.
func (c *Client) SearchPlaylists(ctx context.Context, accessToken, query string, limit int) (*PlaylistPage, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "playlist")
	q.Set("limit", strconv.Itoa(limit))

	var result SearchResult
	if err := c.getJSON(ctx, "search_playlists", accessToken, "/search", q, &result); err != nil {
		return nil, err
	}
	return &result.Playlists, nil
}

// AddPlaylistTracks appends the given track URIs to a playlist.
func (c *Client) AddPlaylistTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	body, err := json.Marshal(map[string][]string{"uris": uris})
	if err != nil {
		return fmt.Errorf("failed to encode playlist tracks body: %w", err)
	}

	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	return c.doWrite(ctx, "add_playlist_tracks", accessToken, http.MethodPost, endpoint, nil, body)
}

// SaveTracks adds the given track ids to the user's library.
func (c *Client) SaveTracks(ctx context.Context, accessToken string, ids []string) error {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	return c.doWrite(ctx, "save_tracks", accessToken, http.MethodPut, "/me/tracks", q, nil)
}

// RemoveSavedTracks removes the given track ids from the user's library.
func (c *Client) RemoveSavedTracks(ctx context.Context, accessToken string, ids []string) error {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	return c.doWrite(ctx, "remove_saved_tracks", accessToken, http.MethodDelete, "/me/tracks", q, nil)
}

// RefreshToken exchanges a refresh token for a fresh access token via the
// accounts endpoint. The returned Token keeps the request's refresh token
// when the upstream omits one, since refresh tokens are not reissued.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	tokenURL := c.accountsURL + "/api/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicCredentials(c.clientID, c.clientSec))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("refresh_token", start, "transport_error")
		return nil, fmt.Errorf("token refresh request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.observe("refresh_token", start, strconv.Itoa(resp.StatusCode))
		return nil, decodeAPIError(resp)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		c.observe("refresh_token", start, "decode_error")
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	c.observe("refresh_token", start, "ok")
	return &token, nil
}

// getJSON performs an authorized GET and decodes the 200 body into v.
func (c *Client) getJSON(ctx context.Context, operation, accessToken, endpoint string, q url.Values, v interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	fullURL := c.baseURL + endpoint
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, start, "transport_error")
		return fmt.Errorf("catalog %s request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.observe(operation, start, strconv.Itoa(resp.StatusCode))
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.observe(operation, start, "decode_error")
		return fmt.Errorf("failed to decode catalog %s response: %w", operation, err)
	}

	c.observe(operation, start, "ok")
	return nil
}

// doWrite performs an authorized mutating request. Any 2xx counts as
// success since the catalog mixes 200/201/204 across its write endpoints.
func (c *Client) doWrite(ctx context.Context, operation, accessToken, method, endpoint string, q url.Values, body []byte) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	fullURL := c.baseURL + endpoint
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, start, "transport_error")
		return fmt.Errorf("catalog %s request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.observe(operation, start, strconv.Itoa(resp.StatusCode))
		return decodeAPIError(resp)
	}

	c.observe(operation, start, "ok")
	return nil
}

// wait blocks on the client-side rate limiter when one is configured.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("catalog rate limiter: %w", err)
	}
	return nil
}

func (c *Client) observe(operation string, start time.Time, status string) {
	metrics.CatalogRequestsTotal.WithLabelValues(operation, status).Inc()
	metrics.CatalogRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// decodeAPIError turns a non-2xx response into an *APIError, falling back
// to the raw body when the error envelope does not parse.
func decodeAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: "failed to read error body"}
	}

	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{Status: resp.StatusCode, Message: envelope.Error.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func basicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
