// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package models

// DeckItemArtist is one contributing artist on a deck item, denormalized
// for direct rendering.
type DeckItemArtist struct {
	ArtistName  string `json:"artistName"`
	ArtistURI   string `json:"artistUri"`
	ArtistImage string `json:"artistImage"`
}

// DeckItem is a fully-enriched swipeable card: the track itself plus the
// related sources a swipe can pivot into.
type DeckItem struct {
	TrackID        string           `json:"trackId"`
	Image          string           `json:"image"`
	PreviewURL     string           `json:"previewUrl"`
	TrackName      string           `json:"trackName"`
	TrackURI       string           `json:"trackUri"`
	Artists        []DeckItemArtist `json:"artists"`
	RelatedSources []DiscoverSource `json:"relatedSources"`
}

// UserData is the persisted per-user record.
type UserData struct {
	Name                        string              `json:"name"`
	Image                       string              `json:"image"`
	SelectedDiscoverSource      DiscoverSource      `json:"selectedDiscoverSource"`
	SelectedDiscoverDestination DiscoverDestination `json:"selectedDiscoverDestination"`
	AccessToken                 string              `json:"accessToken"`
	RefreshToken                string              `json:"refreshToken"`
	IsAnon                      bool                `json:"isAnon"`
}

// DefaultUserData is the record created for a first-time user.
func DefaultUserData() UserData {
	return UserData{
		SelectedDiscoverSource:      DefaultDiscoverSource(),
		SelectedDiscoverDestination: DefaultDiscoverDestination(),
		IsAnon:                      true,
	}
}
