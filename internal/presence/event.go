// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package presence

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Event is the payload carried on the online and offline topics. The
// topic name carries the transition; the payload only identifies the
// user.
type Event struct {
	UserID string `json:"userId"`
}

// NewMessage wraps the event into a watermill message.
func NewMessage(userID string) (*message.Message, error) {
	payload, err := json.Marshal(Event{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("marshal presence event: %w", err)
	}
	return message.NewMessage(watermill.NewUUID(), payload), nil
}

func decodeEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal presence event: %w", err)
	}
	if event.UserID == "" {
		return nil, fmt.Errorf("presence event missing user id")
	}
	return &event, nil
}
