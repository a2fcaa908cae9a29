// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import (
	"github.com/vibetunnel/vibetunnel/lib/clock"
	"github.com/vibetunnel/vibetunnel/transport"
)

// Handlers receives events from a Manager. Callbacks run one at a
// time, in order, on a goroutine owned by the Manager; they may call
// any Manager method.
type Handlers struct {
	// OnMessage receives every inbound message except pongs. A
	// non-nil error marks the message unhandled: it is counted and
	// logged, and the connection is unaffected. Required.
	OnMessage func(payload []byte) error

	// OnStateChange receives every state transition. Optional.
	OnStateChange func(state ConnectionState)
}

// FrameRecorder observes every frame body the Manager writes or reads.
// Calls are made synchronously from the send and receive paths, so an
// implementation must not block.
type FrameRecorder interface {
	RecordOutbound(payload []byte)
	RecordInbound(payload []byte)
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock sets the clock used for reconnect delays, keep-alive
// ticks, and pong timestamps. Defaults to clock.Real().
func WithClock(source clock.Clock) ManagerOption {
	return func(manager *Manager) {
		manager.clock = source
	}
}

// WithDialer replaces the Unix socket dialer built from Config.
func WithDialer(dialer transport.Dialer) ManagerOption {
	return func(manager *Manager) {
		manager.dialer = dialer
	}
}

// WithFrameRecorder installs a recorder for every frame body sent or
// received.
func WithFrameRecorder(recorder FrameRecorder) ManagerOption {
	return func(manager *Manager) {
		manager.recorder = recorder
	}
}
