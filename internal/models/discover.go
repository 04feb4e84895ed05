// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package models holds the domain types shared across the engine: discover
// sources and destinations, deck items, and the per-user record.
package models

import (
	"fmt"
	"math/rand"
)

// SourceType enumerates the discover source variants. Composite variants
// stand on their own; solo variants need an id/name payload to be valid.
type SourceType string

const (
	// SourceAnythingMe blends the user's top and saved tracks.
	SourceAnythingMe SourceType = "Anything Me"
	// SourcePeople samples tracks from other users of the system.
	SourcePeople SourceType = "Spindeck People"
	// SourceMyArtists pulls from artists the user follows.
	SourceMyArtists SourceType = "My Artists"
	// SourceMyPlaylists pulls from playlists the user owns.
	SourceMyPlaylists SourceType = "My Playlists"
	// SourceRadio serves one of the curated radio playlists.
	SourceRadio SourceType = "Radio"

	// SourceVibe searches playlists by free text.
	SourceVibe SourceType = "Vibe"
	// SourcePerson is Anything Me for one specific other user.
	SourcePerson SourceType = "Spindeck Person"
	// SourceArtist serves a single artist's catalog.
	SourceArtist SourceType = "Artist"
	// SourcePlaylist serves a single playlist.
	SourcePlaylist SourceType = "Playlist"
)

// IsComposite reports whether the variant is self-contained.
func (t SourceType) IsComposite() bool {
	switch t {
	case SourceAnythingMe, SourcePeople, SourceMyArtists, SourceMyPlaylists, SourceRadio:
		return true
	case SourceVibe, SourcePerson, SourceArtist, SourcePlaylist:
		return false
	}
	return false
}

// Valid reports whether the variant is known and, for solo variants,
// carries the payload it needs.
func (s DiscoverSource) Valid() error {
	switch s.Type {
	case SourceAnythingMe, SourcePeople, SourceMyArtists, SourceMyPlaylists, SourceRadio:
		return nil
	case SourceVibe, SourcePerson, SourceArtist, SourcePlaylist:
		if s.ID == "" {
			return fmt.Errorf("source type %q requires an id", s.Type)
		}
		return nil
	}
	return fmt.Errorf("unknown source type %q", s.Type)
}

// DiscoverSource selects where deck candidates come from.
type DiscoverSource struct {
	Type  SourceType `json:"type"`
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Image string     `json:"image"`
}

// DefaultDiscoverSource is the source every new user starts on.
func DefaultDiscoverSource() DiscoverSource {
	return DiscoverSource{
		Type: SourceAnythingMe,
		ID:   string(SourceAnythingMe),
		Name: string(SourceAnythingMe),
	}
}

// RadioSources is the curated fallback set served to anonymous visitors
// and anyone who picks the radio source.
func RadioSources() []DiscoverSource {
	return []DiscoverSource{
		{Type: SourceRadio, ID: "17tLe3tCu3NGUisFViFRSi", Name: "Spindeck Afro Radio"},
		{Type: SourceRadio, ID: "37i9dQZF1DX5ja5oV6Kto0", Name: "Spindeck Alte Radio"},
		{Type: SourceRadio, ID: "37i9dQZF1EQnqst5TRi17F", Name: "Spindeck Hip Hop Radio"},
		{Type: SourceRadio, ID: "37i9dQZF1EQqkOPvHGajmW", Name: "Spindeck Indie Radio"},
	}
}

// DefaultAnonDiscoverSource picks one of the curated radio playlists at
// random for an anonymous visitor.
func DefaultAnonDiscoverSource() DiscoverSource {
	radios := RadioSources()
	return radios[rand.Intn(len(radios))]
}

// DiscoverDestination is a save target: a specific playlist, or the
// favourites virtual target when IsFavourites is set.
type DiscoverDestination struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	IsFavourites bool   `json:"isFavourites"`
}

// DefaultDiscoverDestination is the favourites target every new user
// starts on.
func DefaultDiscoverDestination() DiscoverDestination {
	return DiscoverDestination{Name: "Favourites", IsFavourites: true}
}
