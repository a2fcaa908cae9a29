// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import "time"

// Backoff computes reconnect delays: Current starts at the initial
// delay, each Grow multiplies it, and it never exceeds the maximum.
// Not safe for concurrent use; the Manager guards it with its mutex.
type Backoff struct {
	initial    time.Duration
	maximum    time.Duration
	multiplier float64
	current    time.Duration
}

// NewBackoff returns a Backoff at its initial delay.
func NewBackoff(initial, maximum time.Duration, multiplier float64) *Backoff {
	return &Backoff{
		initial:    initial,
		maximum:    maximum,
		multiplier: multiplier,
		current:    initial,
	}
}

// Current returns the delay to wait before the next attempt.
func (b *Backoff) Current() time.Duration { return b.current }

// Grow advances to the next delay.
func (b *Backoff) Grow() {
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.maximum || next < b.current {
		next = b.maximum
	}
	b.current = next
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() { b.current = b.initial }
