// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

/*
controller.go - Presence-Driven Controller

Consumes the online/offline topics and maintains the active-users
collection. Online transitions upsert the user's presence record
immediately and cancel any pending removal. Offline transitions are
buffered and flushed as one batched delete after a debounce window, so a
burst of reconnect flaps costs one write instead of one per flip. A few
seconds of staleness is the accepted trade.
*/

package presence

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/spindeck/spindeck/internal/config"
	"github.com/spindeck/spindeck/internal/logging"
	"github.com/spindeck/spindeck/internal/metrics"
	"github.com/spindeck/spindeck/internal/store"
)

// ActiveUsersCollection holds one empty marker document per connected
// user.
const ActiveUsersCollection = "activeUsers"

// presenceRecord is the marker document value. Membership is the signal;
// the timestamp only aids debugging.
type presenceRecord struct {
	ConnectedAt time.Time `json:"connectedAt"`
}

// Controller subscribes to presence transitions and mirrors them into the
// active-users collection with debounced batch removal.
type Controller struct {
	sub   message.Subscriber
	store store.Store
	cfg   *config.PresenceConfig

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewController creates the presence controller. The subscriber is owned
// by the caller and closed by it.
func NewController(sub message.Subscriber, s store.Store, cfg *config.PresenceConfig) *Controller {
	return &Controller{
		sub:     sub,
		store:   s,
		cfg:     cfg,
		pending: make(map[string]struct{}),
	}
}

// Serve consumes presence transitions until the context is canceled. It
// satisfies the supervision tree's service contract. Records surviving
// from a previous run are cleared first, since every connected client
// re-announces itself on reconnect.
func (c *Controller) Serve(ctx context.Context) error {
	if err := c.store.ClearCollection(ctx, ActiveUsersCollection); err != nil {
		logging.Warn().Err(err).Msg("Stale presence cleanup failed")
	}

	online, err := c.sub.Subscribe(ctx, c.cfg.OnlineTopic)
	if err != nil {
		return err
	}
	offline, err := c.sub.Subscribe(ctx, c.cfg.OfflineTopic)
	if err != nil {
		return err
	}
	logging.Info().Str("online_topic", c.cfg.OnlineTopic).Str("offline_topic", c.cfg.OfflineTopic).Msg("Presence controller started")

	defer c.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-online:
			if !ok {
				return nil
			}
			c.handleMessage(ctx, msg, c.handleOnline)
		case msg, ok := <-offline:
			if !ok {
				return nil
			}
			c.handleMessage(ctx, msg, c.handleOffline)
		}
	}
}

func (c *Controller) handleMessage(ctx context.Context, msg *message.Message, handle func(ctx context.Context, userID string)) {
	event, err := decodeEvent(msg.Payload)
	if err != nil {
		// Malformed payloads are acked: redelivery cannot fix them.
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable presence event")
		msg.Ack()
		return
	}
	handle(ctx, event.UserID)
	msg.Ack()
}

// handleOnline marks the user active and cancels any pending removal
// buffered for them. The upsert is best-effort; a failure is logged and
// the next transition retries.
func (c *Controller) handleOnline(ctx context.Context, userID string) {
	metrics.PresenceEventsTotal.WithLabelValues("online").Inc()

	c.mu.Lock()
	delete(c.pending, userID)
	c.mu.Unlock()

	if err := c.store.SetDoc(ctx, ActiveUsersCollection, userID, presenceRecord{ConnectedAt: time.Now()}, false); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Presence upsert failed")
		return
	}
	logging.Debug().Str("user_id", userID).Msg("User online")
}

// handleOffline buffers the user for removal and re-arms the debounce
// timer. Every offline event within the window extends it; only the
// fired timer flushes.
func (c *Controller) handleOffline(_ context.Context, userID string) {
	metrics.PresenceEventsTotal.WithLabelValues("offline").Inc()
	logging.Debug().Str("user_id", userID).Msg("User offline, removal pending")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[userID] = struct{}{}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.DebounceDelay, c.flush)
		return
	}
	c.timer.Reset(c.cfg.DebounceDelay)
}

// flush snapshots and clears the pending buffer, then issues one batched
// delete. Failed ids are not re-queued; the user shows as active until
// their next transition.
func (c *Controller) flush() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.store.BatchDelete(ctx, ActiveUsersCollection, ids); err != nil {
		logging.Error().Err(err).Int("users", len(ids)).Msg("Presence flush failed")
		return
	}
	metrics.PresenceFlushSize.Observe(float64(len(ids)))
	logging.Info().Int("users", len(ids)).Msg("Presence flush removed disconnected users")
}

func (c *Controller) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// IsOnline reports whether the user currently holds a presence record.
func (c *Controller) IsOnline(ctx context.Context, userID string) (bool, error) {
	return c.store.ExistsDoc(ctx, ActiveUsersCollection, userID)
}
