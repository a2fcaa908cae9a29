// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibetunnel/vibetunnel/lib/clock"
	"github.com/vibetunnel/vibetunnel/lib/framing"
	"github.com/vibetunnel/vibetunnel/transport"
)

// keepAliveLoop pings the daemon every KeepAliveInterval while the
// connection is ready. If no pong has arrived for longer than the
// keep-alive timeout, the connection is torn down instead of pinged.
//
// The silence check never waits on writeMu. While another write holds
// it the ping for that tick is skipped, so a Send stuck behind a full
// socket cannot hide a dead daemon; the teardown closes the stream and
// releases that Send. A ping write is bounded by one interval. One that
// does not finish in time leaves a partial frame on the socket, so the
// connection is torn down. Other ping failures are only logged: a
// broken socket is detected by the receive loop.
//
// The ticker is created by the caller while the connection is being
// marked ready, so it is armed before anyone observes PhaseReady.
func (m *Manager) keepAliveLoop(ctx context.Context, generation uint64, ticker *clock.Ticker) {
	defer ticker.Stop()

	timeout := m.config.keepAliveTimeout()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if generation != m.generation {
			m.mu.Unlock()
			return
		}
		now := m.clock.Now()
		silence := now.Sub(m.lastPong)
		stream := m.stream
		m.mu.Unlock()

		if silence > timeout {
			m.logger.Warn("no pong from daemon",
				"silence", silence,
				"timeout", timeout,
			)
			m.handleConnectionFailure(generation, ErrKeepAliveTimeout)
			return
		}

		err := m.ping(ctx, stream, now)
		switch {
		case errors.Is(err, errWriteBusy):
			m.logger.Debug("write in progress, skipping keep-alive ping", "since_last_pong", silence)
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			m.logger.Warn("keep-alive ping stalled", "error", err)
			m.handleConnectionFailure(generation, fmt.Errorf("%w: ping write stalled: %w", ErrKeepAliveTimeout, err))
			return
		case err != nil:
			m.logger.Warn("sending keep-alive ping", "error", err)
		default:
			m.logger.Debug("sent keep-alive ping", "since_last_pong", silence)
		}
	}
}

// errWriteBusy reports that another write held writeMu when a ping was
// due.
var errWriteBusy = errors.New("write in progress")

// ping writes one ping frame if writeMu is free, giving the write at
// most one keep-alive interval.
func (m *Manager) ping(ctx context.Context, stream transport.Stream, now time.Time) error {
	payload := NewPing(m.newPingID(), now)
	frame, err := framing.Encode(payload)
	if err != nil {
		return err
	}

	if !m.writeMu.TryLock() {
		return errWriteBusy
	}
	defer m.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.config.KeepAliveInterval)
	defer cancel()
	return m.sendLocked(ctx, stream, frame, payload)
}
