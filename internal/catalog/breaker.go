// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/metrics"
)

// BreakerClient wraps Client with a circuit breaker so a failing or slow
// catalog cannot stall every deck refill at once.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests should exercise the wrapped client directly rather than waiting out
// breaker state transitions.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// Ensure BreakerClient implements API
var _ API = (*BreakerClient)(nil)

// NewBreakerClient wraps client in a circuit breaker. The breaker opens
// after a 60% failure rate across at least 10 requests, allows 3 probe
// requests in half-open state, and waits 2 minutes before probing.
func NewBreakerClient(client *Client) *BreakerClient {
	cbName := "catalog-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", breakerStateString(from)).Str("to", breakerStateString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps a catalog call with circuit breaker protection.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (bc *BreakerClient) UserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	return castResult[*UserProfile](bc.execute(func() (interface{}, error) {
		return bc.client.UserProfile(ctx, accessToken)
	}))
}

func (bc *BreakerClient) UserTopTracks(ctx context.Context, accessToken string, offset, limit int) (*TrackPage, error) {
	return castResult[*TrackPage](bc.execute(func() (interface{}, error) {
		return bc.client.UserTopTracks(ctx, accessToken, offset, limit)
	}))
}

func (bc *BreakerClient) UserSavedTracks(ctx context.Context, accessToken string, offset, limit int) (*SavedTrackPage, error) {
	return castResult[*SavedTrackPage](bc.execute(func() (interface{}, error) {
		return bc.client.UserSavedTracks(ctx, accessToken, offset, limit)
	}))
}

func (bc *BreakerClient) UserPlaylists(ctx context.Context, accessToken string, offset, limit int) (*PlaylistPage, error) {
	return castResult[*PlaylistPage](bc.execute(func() (interface{}, error) {
		return bc.client.UserPlaylists(ctx, accessToken, offset, limit)
	}))
}

func (bc *BreakerClient) PlaylistTracks(ctx context.Context, accessToken, playlistID string, offset, limit int) (*PlaylistTrackPage, error) {
	return castResult[*PlaylistTrackPage](bc.execute(func() (interface{}, error) {
		return bc.client.PlaylistTracks(ctx, accessToken, playlistID, offset, limit)
	}))
}

func (bc *BreakerClient) FollowedArtists(ctx context.Context, accessToken string, limit int) ([]Artist, error) {
	return castResult[[]Artist](bc.execute(func() (interface{}, error) {
		return bc.client.FollowedArtists(ctx, accessToken, limit)
	}))
}

func (bc *BreakerClient) SeveralArtists(ctx context.Context, accessToken string, ids []string) ([]Artist, error) {
	return castResult[[]Artist](bc.execute(func() (interface{}, error) {
		return bc.client.SeveralArtists(ctx, accessToken, ids)
	}))
}

func (bc *BreakerClient) ArtistTopTracks(ctx context.Context, accessToken, artistID string) ([]Track, error) {
	return castResult[[]Track](bc.execute(func() (interface{}, error) {
		return bc.client.ArtistTopTracks(ctx, accessToken, artistID)
	}))
}

func (bc *BreakerClient) SearchPlaylists(ctx context.Context, accessToken, query string, limit int) (*PlaylistPage, error) {
	return castResult[*PlaylistPage](bc.execute(func() (interface{}, error) {
		return bc.client.SearchPlaylists(ctx, accessToken, query, limit)
	}))
}

func (bc *BreakerClient) AddPlaylistTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.AddPlaylistTracks(ctx, accessToken, playlistID, uris)
	})
	return err
}

func (bc *BreakerClient) SaveTracks(ctx context.Context, accessToken string, ids []string) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.SaveTracks(ctx, accessToken, ids)
	})
	return err
}

func (bc *BreakerClient) RemoveSavedTracks(ctx context.Context, accessToken string, ids []string) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.RemoveSavedTracks(ctx, accessToken, ids)
	})
	return err
}

func (bc *BreakerClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return castResult[*Token](bc.execute(func() (interface{}, error) {
		return bc.client.RefreshToken(ctx, refreshToken)
	}))
}
