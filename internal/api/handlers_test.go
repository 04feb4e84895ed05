// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/spindeck/spindeck/internal/catalog"
	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/deck"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/store"
	"github.com/spindeck/spindeck/internal/userdata"
)

type testEnv struct {
	handler  http.Handler
	catalog  *fakeCatalog
	users    *userdata.Repo
	decks    *deck.Service
	sessions *SessionManager
	pubsub   *gochannel.GoChannel
}

func testConfig() *config.Config {
	return &config.Config{
		Presence: config.PresenceConfig{
			OnlineTopic:   "presence.online",
			OfflineTopic:  "presence.offline",
			DebounceDelay: time.Second,
		},
		Deck: config.DeckConfig{
			SourceMinSize:       20,
			RefillCount:         50,
			PlaylistPrefix:      10,
			MaxEnumerationPages: 10,
			AdminUserID:         "admin",
			AdminTokenTTL:       time.Hour,
		},
		Security: config.SecurityConfig{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			CookieName:      "spindeck_session",
			SessionTimeout:  time.Hour,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

type offlinePresence struct{}

func (offlinePresence) IsOnline(context.Context, string) (bool, error) { return false, nil }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cfg := testConfig()
	fake := newFakeCatalog()
	users := userdata.NewRepo(s)

	admin := models.DefaultUserData()
	admin.RefreshToken = "admin-stored-refresh"
	if err := users.Set(context.Background(), "admin", &admin, false); err != nil {
		t.Fatalf("seed admin user: %v", err)
	}

	filler := deck.NewFiller(fake, users, offlinePresence{}, &cfg.Deck)
	decks := deck.NewService(filler, s, &cfg.Deck)
	adminTokens := deck.NewAdminTokenCache(fake, users, &cfg.Deck)

	sessions, err := NewSessionManager(&cfg.Security)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	server := NewServer(cfg, sessions, users, decks, adminTokens, fake, pubsub)
	return &testEnv{
		handler:  server.Handler(),
		catalog:  fake,
		users:    users,
		decks:    decks,
		sessions: sessions,
		pubsub:   pubsub,
	}
}

func (e *testEnv) do(t *testing.T, method, target, cookie string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login runs the full login flow and returns the session cookie header.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{AccessToken: "user-access", RefreshToken: "user-refresh"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "spindeck_session" && c.Value != "" {
			return c.Name + "=" + c.Value
		}
	}
	t.Fatal("login did not set a session cookie")
	return ""
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if envelope.Status != "ok" {
		t.Fatalf("expected ok envelope, got %s", rec.Body.String())
	}
	if v != nil {
		if err := json.Unmarshal(envelope.Data, v); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/discover/sources", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", rec.Code)
	}
}

func TestLoginCreatesUserAndSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	data, err := env.users.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("user record missing after login: %v", err)
	}
	if data.Name != "Test User" || data.AccessToken != "user-access" {
		t.Errorf("record not populated from login: %+v", data)
	}

	rec := env.do(t, http.MethodGet, "/api/discover/sources", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("session cookie rejected: %d", rec.Code)
	}
}

func TestLoginRejectsMissingTokens(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"accessToken": "only-half"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing refresh token, got %d", rec.Code)
	}
}

func TestAnonLoginUsesRadioDefault(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/anon", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anon login returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	decodeData(t, rec, &resp)
	if !strings.HasPrefix(resp.UserID, "anon-") {
		t.Errorf("expected generated anon id, got %q", resp.UserID)
	}
	if !resp.User.IsAnon {
		t.Error("anon record not flagged anonymous")
	}
	if resp.User.SelectedDiscoverSource.Type != models.SourceRadio {
		t.Errorf("anon default source should be a radio, got %q", resp.User.SelectedDiscoverSource.Type)
	}
	if got := env.catalog.callCount("refresh_token"); got != 1 {
		t.Errorf("anon login should refresh the admin token once, got %d", got)
	}
}

func TestSetDiscoverSourceValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/discover/source", cookie, models.DiscoverSource{Type: models.SourceArtist})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("artist source without id must be rejected, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/discover/source", cookie, models.DiscoverSource{Type: models.SourceVibe, ID: "jazz", Name: "jazz"})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid vibe source rejected: %d %s", rec.Code, rec.Body.String())
	}

	data, err := env.users.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("read user record: %v", err)
	}
	if data.SelectedDiscoverSource.Type != models.SourceVibe || data.SelectedDiscoverSource.ID != "jazz" {
		t.Errorf("selection not persisted: %+v", data.SelectedDiscoverSource)
	}
	if data.AccessToken != "user-access" {
		t.Errorf("selection write clobbered the stored tokens: %+v", data)
	}
}

func TestSearchDiscoverSources(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.searchItems = []catalog.Playlist{{ID: "pl1", Name: "Jazz Classics"}}
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/discover/sources/search?q=jazz", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search returned %d", rec.Code)
	}
	var sources []models.DiscoverSource
	decodeData(t, rec, &sources)
	if len(sources) != 2 {
		t.Fatalf("expected vibe + one playlist source, got %d", len(sources))
	}
	if sources[0].Type != models.SourceVibe || sources[0].ID != "jazz" {
		t.Errorf("first result should be the vibe source for the query, got %+v", sources[0])
	}
	if sources[1].Type != models.SourcePlaylist || sources[1].ID != "pl1" {
		t.Errorf("expected playlist source for pl1, got %+v", sources[1])
	}

	rec = env.do(t, http.MethodGet, "/api/discover/sources/search", cookie, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query must be rejected, got %d", rec.Code)
	}
}

func TestDiscoverDestinationsListsFavouritesFirst(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.playlists = []catalog.Playlist{{ID: "own1", Name: "My Mix"}}
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/discover/destinations", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("destinations returned %d", rec.Code)
	}
	var resp discoverDestinationsResponse
	decodeData(t, rec, &resp)
	if len(resp.Destinations) != 2 {
		t.Fatalf("expected favourites + one playlist, got %d", len(resp.Destinations))
	}
	if !resp.Destinations[0].IsFavourites {
		t.Error("favourites must lead the first page")
	}
	if !resp.Selected.IsFavourites {
		t.Error("default selection should be favourites")
	}
}

func TestSaveToFavouritesUpdatesCaches(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/api/discover/deck/destination/save?trackId=t1", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save returned %d: %s", rec.Code, rec.Body.String())
	}
	if env.catalog.callCount("save_tracks") != 1 {
		t.Error("favourites save must call the saved-tracks endpoint")
	}

	saved, err := env.decks.IsSaved(ctx, "u1", "t1")
	if err != nil || !saved {
		t.Errorf("membership cache not updated, saved=%v err=%v", saved, err)
	}

	rec = env.do(t, http.MethodGet, "/api/discover/deck/destination/contains?trackId=t1", cookie, nil)
	var contains map[string]bool
	decodeData(t, rec, &contains)
	if !contains["saved"] {
		t.Error("contains endpoint disagrees with the membership cache")
	}

	rec = env.do(t, http.MethodGet, "/api/discover/deck/destination/remove?trackId=t1", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove returned %d", rec.Code)
	}
	if env.catalog.callCount("remove_saved_tracks") != 1 {
		t.Error("favourites remove must call the remove endpoint")
	}
	saved, _ = env.decks.IsSaved(ctx, "u1", "t1")
	if saved {
		t.Error("membership cache still marks t1 after remove")
	}
}

func TestSaveToPlaylistUsesTrackURI(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/discover/destination", cookie, models.DiscoverDestination{ID: "pl9", Name: "Mix"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set destination returned %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/discover/deck/destination/save?trackId=t2", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save returned %d", rec.Code)
	}
	env.catalog.mu.Lock()
	uris := append([]string(nil), env.catalog.addedURIs...)
	env.catalog.mu.Unlock()
	if len(uris) != 1 || uris[0] != "spotify:track:t2" {
		t.Errorf("playlist save sent %v, want the track URI", uris)
	}
}

func TestPresenceEndpointsPublish(t *testing.T) {
	env := newTestEnv(t)

	messages, err := env.pubsub.Subscribe(context.Background(), "presence.online")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cookie := env.login(t)
	rec := env.do(t, http.MethodPost, "/api/presence/online", cookie, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("presence online returned %d", rec.Code)
	}

	select {
	case msg := <-messages:
		var event struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			t.Fatalf("decode published event: %v", err)
		}
		if event.UserID != "u1" {
			t.Errorf("published transition for %q, want u1", event.UserID)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("no presence message published")
	}
}

func TestRefillEndpointRespondsImmediately(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/discover/deck/source/refill", cookie, nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("refill dispatch should answer 202, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/discover/deck/items", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("deck items returned %d", rec.Code)
	}
}
