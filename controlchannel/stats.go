// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import "time"

// Stats is a point-in-time snapshot of a Manager's counters.
type Stats struct {
	State ConnectionState

	// ConsecutiveFailures counts connect attempts that failed since
	// the last successful connect or top-level Connect.
	ConsecutiveFailures int

	// ReconnectDelay is the delay the next reconnect will wait.
	ReconnectDelay time.Duration

	// PendingMessages is the current queue length.
	PendingMessages int

	// EvictedMessages counts queued messages dropped because the
	// queue was full.
	EvictedMessages uint64

	// UnhandledMessages counts inbound messages OnMessage rejected.
	UnhandledMessages uint64

	// CorruptFrames counts receive buffer resets caused by a corrupt
	// header or overflow.
	CorruptFrames uint64

	FramesSent     uint64
	FramesReceived uint64

	// LastPong is when the last pong arrived, or when the current
	// connection became ready if none has.
	LastPong time.Time
}

// Stats returns a snapshot of the Manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:               m.state,
		ConsecutiveFailures: m.consecutiveFailures,
		ReconnectDelay:      m.backoff.Current(),
		PendingMessages:     m.pending.len(),
		EvictedMessages:     m.pending.evicted,
		UnhandledMessages:   m.unhandled.Load(),
		CorruptFrames:       m.corruptFrames.Load(),
		FramesSent:          m.framesSent.Load(),
		FramesReceived:      m.framesReceived.Load(),
		LastPong:            m.lastPong,
	}
}
