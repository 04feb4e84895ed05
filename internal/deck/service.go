// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

/*
service.go - Deck Orchestration

Owns the per-user source and destination decks in the document store.
Refills and enumerations are dispatched fire-and-forget from the HTTP
layer; each kind is single-flighted per user through its own guard set, so
a source refill and a destination enumeration for the same user may run
concurrently with each other, just never with themselves.
*/

package deck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/metrics"
	"github.com/spindeck/spindeck/internal/models"
	"github.com/spindeck/spindeck/internal/store"
)

// enumerationPageSize is the page size used while walking saved tracks or
// playlist entries during a destination enumeration.
const enumerationPageSize = 50

// ErrRefillInFlight is returned when a refill or enumeration for the user
// is already running. Triggers are dropped, never queued.
var ErrRefillInFlight = errors.New("operation already in flight for user")

// guardSet is a mutex-protected single-flight set of user ids.
type guardSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newGuardSet() *guardSet {
	return &guardSet{ids: make(map[string]struct{})}
}

// tryAcquire atomically checks and claims the id. Returns false when the
// id is already held.
func (g *guardSet) tryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.ids[id]; held {
		return false
	}
	g.ids[id] = struct{}{}
	return true
}

func (g *guardSet) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ids, id)
}

// Service orchestrates deck refills and destination enumerations.
type Service struct {
	filler *Filler
	store  store.Store
	cfg    *config.DeckConfig

	refilling   *guardSet
	enumerating *guardSet
}

// NewService creates the deck orchestrator.
func NewService(filler *Filler, s store.Store, cfg *config.DeckConfig) *Service {
	return &Service{
		filler:      filler,
		store:       s,
		cfg:         cfg,
		refilling:   newGuardSet(),
		enumerating: newGuardSet(),
	}
}

// SourceDeckCollection names the per-user source deck collection.
func SourceDeckCollection(userID string) string {
	return "sourceDecks/" + userID
}

// DestinationDeckCollection names the per-user destination deck
// collection.
func DestinationDeckCollection(userID string) string {
	return "destinationDecks/" + userID
}

// DispatchRefillSourceDeck runs RefillSourceDeck in the background. All
// failures are logged and swallowed; the next trigger retries.
func (s *Service) DispatchRefillSourceDeck(userID, accessToken string, source models.DiscoverSource) {
	go func() {
		if err := s.RefillSourceDeck(context.Background(), userID, accessToken, source); err != nil && !errors.Is(err, ErrRefillInFlight) {
			logging.Error().Err(err).Str("user_id", userID).Msg("Source deck refill failed")
		}
	}()
}

// RefillSourceDeck tops up the user's source deck when it has fallen below
// the configured minimum size. At most one refill per user runs at a time;
// a concurrent trigger returns ErrRefillInFlight.
func (s *Service) RefillSourceDeck(ctx context.Context, userID, accessToken string, source models.DiscoverSource) error {
	if !s.refilling.tryAcquire(userID) {
		metrics.DeckRefillsTotal.WithLabelValues("in_flight").Inc()
		logging.Debug().Str("user_id", userID).Msg("Refill already in flight, dropping trigger")
		return ErrRefillInFlight
	}
	defer s.refilling.release(userID)

	start := time.Now()
	collection := SourceDeckCollection(userID)

	size, err := s.store.CollectionSize(ctx, collection)
	if err != nil {
		metrics.DeckRefillsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("source deck size for %s: %w", userID, err)
	}
	if size > s.cfg.SourceMinSize {
		metrics.DeckRefillsTotal.WithLabelValues("full_enough").Inc()
		logging.Debug().Str("user_id", userID).Int("size", size).Msg("Source deck full enough, skipping refill")
		return nil
	}

	items, err := s.filler.DeckItems(ctx, source, accessToken)
	if err != nil {
		metrics.DeckRefillsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("aggregate deck items for %s: %w", userID, err)
	}

	docs := make(map[string]interface{}, len(items))
	for i := range items {
		docs[items[i].TrackID] = items[i]
	}
	if len(docs) == 0 {
		metrics.DeckRefillsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("aggregator returned no items for %s source %q", userID, source.Type)
	}

	if err := s.store.BatchSet(ctx, collection, docs); err != nil {
		metrics.DeckRefillsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("write source deck for %s: %w", userID, err)
	}

	metrics.DeckRefillsTotal.WithLabelValues("filled").Inc()
	metrics.DeckRefillDuration.Observe(time.Since(start).Seconds())
	metrics.DeckItemsAdded.Add(float64(len(docs)))
	logging.Info().Str("user_id", userID).Str("source", string(source.Type)).Int("items", len(docs)).Msg("Source deck refilled")
	return nil
}

// DispatchResetSourceDeck runs ResetSourceDeck in the background.
func (s *Service) DispatchResetSourceDeck(userID, accessToken string, source models.DiscoverSource) {
	go func() {
		if err := s.ResetSourceDeck(context.Background(), userID, accessToken, source); err != nil && !errors.Is(err, ErrRefillInFlight) {
			logging.Error().Err(err).Str("user_id", userID).Msg("Source deck reset failed")
		}
	}()
}

// ResetSourceDeck clears the deck and refills it from scratch, used when
// the user switches source.
func (s *Service) ResetSourceDeck(ctx context.Context, userID, accessToken string, source models.DiscoverSource) error {
	if err := s.store.ClearCollection(ctx, SourceDeckCollection(userID)); err != nil {
		return fmt.Errorf("clear source deck for %s: %w", userID, err)
	}
	return s.RefillSourceDeck(ctx, userID, accessToken, source)
}

// RemoveSourceDeckItem drops a swiped item from the user's source deck.
func (s *Service) RemoveSourceDeckItem(ctx context.Context, userID, trackID string) error {
	return s.store.DeleteDoc(ctx, SourceDeckCollection(userID), trackID)
}

// SourceDeckItems returns the current contents of the user's source deck.
func (s *Service) SourceDeckItems(ctx context.Context, userID string) ([]models.DeckItem, error) {
	docs, err := s.store.ListDocs(ctx, SourceDeckCollection(userID))
	if err != nil {
		return nil, err
	}
	items := make([]models.DeckItem, 0, len(docs))
	for _, doc := range docs {
		var item models.DeckItem
		if err := unmarshalDoc(doc.Data, &item); err != nil {
			logging.Warn().Err(err).Str("track_id", doc.ID).Msg("Skipping undecodable deck item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// DispatchResetDestinationDeck runs ResetDestinationDeck in the
// background.
func (s *Service) DispatchResetDestinationDeck(userID, accessToken string, destination models.DiscoverDestination) {
	go func() {
		if err := s.ResetDestinationDeck(context.Background(), userID, accessToken, destination); err != nil && !errors.Is(err, ErrRefillInFlight) {
			logging.Error().Err(err).Str("user_id", userID).Msg("Destination deck reset failed")
		}
	}()
}

// ResetDestinationDeck rebuilds the membership cache of item ids already
// present at the selected destination. The walk follows pagination for a
// bounded number of pages; a partial set is acceptable degraded state.
func (s *Service) ResetDestinationDeck(ctx context.Context, userID, accessToken string, destination models.DiscoverDestination) error {
	if !s.enumerating.tryAcquire(userID) {
		metrics.DeckEnumerationsTotal.WithLabelValues("in_flight").Inc()
		logging.Debug().Str("user_id", userID).Msg("Enumeration already in flight, dropping trigger")
		return ErrRefillInFlight
	}
	defer s.enumerating.release(userID)

	collection := DestinationDeckCollection(userID)
	if err := s.store.ClearCollection(ctx, collection); err != nil {
		metrics.DeckEnumerationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("clear destination deck for %s: %w", userID, err)
	}

	ids, pages, err := s.enumerateDestination(ctx, accessToken, destination)
	if err != nil {
		metrics.DeckEnumerationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("enumerate destination for %s: %w", userID, err)
	}

	docs := make(map[string]interface{}, len(ids))
	for id := range ids {
		docs[id] = struct{}{}
	}
	if err := s.store.BatchSet(ctx, collection, docs); err != nil {
		metrics.DeckEnumerationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("write destination deck for %s: %w", userID, err)
	}

	metrics.DeckEnumerationsTotal.WithLabelValues("enumerated").Inc()
	metrics.DeckEnumerationPages.Observe(float64(pages))
	logging.Info().Str("user_id", userID).Int("items", len(docs)).Int("pages", pages).Msg("Destination deck rebuilt")
	return nil
}

// enumerateDestination walks the destination's items, collecting ids for
// membership testing. Pagination stops after the configured number of
// extra pages beyond the first.
func (s *Service) enumerateDestination(ctx context.Context, accessToken string, destination models.DiscoverDestination) (map[string]struct{}, int, error) {
	ids := make(map[string]struct{})
	offset := 0
	pages := 0

	for {
		var (
			count int
			next  string
		)
		if destination.IsFavourites {
			page, err := s.filler.api.UserSavedTracks(ctx, accessToken, offset, enumerationPageSize)
			if err != nil {
				return nil, pages, err
			}
			for i := range page.Items {
				ids[page.Items[i].Track.ID] = struct{}{}
			}
			count, next = len(page.Items), page.Next
		} else {
			page, err := s.filler.api.PlaylistTracks(ctx, accessToken, destination.ID, offset, enumerationPageSize)
			if err != nil {
				return nil, pages, err
			}
			for _, track := range page.Tracks() {
				ids[track.ID] = struct{}{}
			}
			count, next = len(page.Items), page.Next
		}

		pages++
		if next == "" || count == 0 {
			break
		}
		// First page plus up to MaxEnumerationPages continuations.
		if pages > s.cfg.MaxEnumerationPages {
			break
		}
		offset += count
	}
	return ids, pages, nil
}

func unmarshalDoc(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// IsSaved reports whether the item id is already present at the user's
// selected destination, per the membership cache.
func (s *Service) IsSaved(ctx context.Context, userID, trackID string) (bool, error) {
	return s.store.ExistsDoc(ctx, DestinationDeckCollection(userID), trackID)
}

// MarkSaved records a freshly saved item in the membership cache so the
// pre-mark holds without a full re-enumeration.
func (s *Service) MarkSaved(ctx context.Context, userID, trackID string) error {
	return s.store.SetDoc(ctx, DestinationDeckCollection(userID), trackID, struct{}{}, false)
}

// UnmarkSaved drops an item from the membership cache after an unsave.
func (s *Service) UnmarkSaved(ctx context.Context, userID, trackID string) error {
	return s.store.DeleteDoc(ctx, DestinationDeckCollection(userID), trackID)
}
