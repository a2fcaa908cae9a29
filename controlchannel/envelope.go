// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope fields used for keep-alive messages. Other control messages
// use the same envelope, but the Manager only interprets ping and pong.
const (
	TypeRequest    = "request"
	TypeResponse   = "response"
	CategorySystem = "system"
	ActionPing     = "ping"
)

// Envelope is the routing header common to control messages.
type Envelope struct {
	Type      string `json:"type"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewPing returns the keep-alive request payload.
func NewPing(id string, now time.Time) []byte {
	payload, err := json.Marshal(Envelope{
		Type:      TypeRequest,
		Category:  CategorySystem,
		Action:    ActionPing,
		ID:        id,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		panic("controlchannel: marshaling ping: " + err.Error())
	}
	return payload
}

// IsPong reports whether payload is the daemon's reply to a ping: an
// object whose type, category, and action are exactly "response",
// "system", and "ping". The id is not checked.
func IsPong(payload []byte) bool {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return false
	}
	return envelope.Type == TypeResponse &&
		envelope.Category == CategorySystem &&
		envelope.Action == ActionPing
}

// validatePayload checks that payload is a JSON object that fits in a
// frame of maxSize.
func validatePayload(payload []byte, maxSize int) error {
	if len(payload) >= maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(payload), maxSize)
	}
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}
