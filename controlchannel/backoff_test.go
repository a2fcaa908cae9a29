// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	backoff := NewBackoff(time.Second, 30*time.Second, 1.5)
	want := []time.Duration{
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
		5062500 * time.Microsecond,
		7593750 * time.Microsecond,
		11390625 * time.Microsecond,
		17085937500 * time.Nanosecond,
		25628906250 * time.Nanosecond,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, expected := range want {
		if got := backoff.Current(); got != expected {
			t.Errorf("attempt %d: delay = %v, want %v", attempt, got, expected)
		}
		backoff.Grow()
	}
}

func TestBackoffReset(t *testing.T) {
	backoff := NewBackoff(time.Second, 30*time.Second, 1.5)
	for range 5 {
		backoff.Grow()
	}
	backoff.Reset()
	if got := backoff.Current(); got != time.Second {
		t.Errorf("delay after Reset = %v, want 1s", got)
	}
	backoff.Grow()
	if got := backoff.Current(); got != 1500*time.Millisecond {
		t.Errorf("delay after Reset and Grow = %v, want 1.5s", got)
	}
}
