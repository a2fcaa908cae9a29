// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vibetunnel/vibetunnel/lib/framing"
)

// Config holds the tunables of a Manager. Start from DefaultConfig and
// override fields; NewManager rejects a Config that fails Validate.
type Config struct {
	// SocketPath is the daemon's control socket.
	SocketPath string

	// KeepAliveInterval is the time between pings.
	KeepAliveInterval time.Duration

	// KeepAliveTimeoutMultiplier sets the dead-peer threshold: the
	// connection is torn down when no pong has arrived for more than
	// KeepAliveInterval times this value.
	KeepAliveTimeoutMultiplier int

	// ReconnectInitialDelay, ReconnectMaxDelay, and
	// ReconnectMultiplier define the backoff between attempts.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectMultiplier   float64

	// PendingCapacity bounds the queue of messages accepted while not
	// ready.
	PendingCapacity int

	// MaxFrameSize is the exclusive bound on an outgoing payload. It
	// cannot exceed framing.MaxFrameSize.
	MaxFrameSize int

	// ReceiveChunkSize is the largest single socket read.
	ReceiveChunkSize int

	// SocketBufferSize is requested for the socket send and receive
	// buffers.
	SocketBufferSize int

	// ConnectTimeout bounds one connect attempt.
	ConnectTimeout time.Duration

	// ConnectPollInterval is how often an in-progress connect is
	// checked.
	ConnectPollInterval time.Duration

	// SendRetryInterval is the pause after a write would block.
	SendRetryInterval time.Duration

	// ReceivePollInterval is the pause after a read finds no data.
	ReceivePollInterval time.Duration

	// FlushInterval is the gap between queued messages during a flush.
	FlushInterval time.Duration
}

// DefaultSocketPath returns ~/.vibetunnel/control.sock.
func DefaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".vibetunnel", "control.sock")
}

// DefaultConfig returns the standard control channel settings.
func DefaultConfig() Config {
	return Config{
		SocketPath:                 DefaultSocketPath(),
		KeepAliveInterval:          30 * time.Second,
		KeepAliveTimeoutMultiplier: 2,
		ReconnectInitialDelay:      time.Second,
		ReconnectMaxDelay:          30 * time.Second,
		ReconnectMultiplier:        1.5,
		PendingCapacity:            100,
		MaxFrameSize:               framing.MaxFrameSize,
		ReceiveChunkSize:           64 * 1024,
		SocketBufferSize:           1024 * 1024,
		ConnectTimeout:             10 * time.Second,
		ConnectPollInterval:        100 * time.Millisecond,
		SendRetryInterval:          time.Millisecond,
		ReceivePollInterval:        10 * time.Millisecond,
		FlushInterval:              10 * time.Millisecond,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket path is required"))
	}
	if c.KeepAliveInterval <= 0 {
		errs = append(errs, fmt.Errorf("keep-alive interval must be positive, got %v", c.KeepAliveInterval))
	}
	if c.KeepAliveTimeoutMultiplier < 1 {
		errs = append(errs, fmt.Errorf("keep-alive timeout multiplier must be at least 1, got %d", c.KeepAliveTimeoutMultiplier))
	}
	if c.ReconnectInitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect initial delay must be positive, got %v", c.ReconnectInitialDelay))
	}
	if c.ReconnectMaxDelay < c.ReconnectInitialDelay {
		errs = append(errs, fmt.Errorf("reconnect max delay %v is below initial delay %v", c.ReconnectMaxDelay, c.ReconnectInitialDelay))
	}
	if c.ReconnectMultiplier < 1 {
		errs = append(errs, fmt.Errorf("reconnect multiplier must be at least 1, got %v", c.ReconnectMultiplier))
	}
	if c.PendingCapacity < 1 {
		errs = append(errs, fmt.Errorf("pending capacity must be positive, got %d", c.PendingCapacity))
	}
	if c.MaxFrameSize < 1 || c.MaxFrameSize > framing.MaxFrameSize {
		errs = append(errs, fmt.Errorf("max frame size must be in [1, %d], got %d", framing.MaxFrameSize, c.MaxFrameSize))
	}
	if c.ReceiveChunkSize < 1 {
		errs = append(errs, fmt.Errorf("receive chunk size must be positive, got %d", c.ReceiveChunkSize))
	}
	for _, interval := range []struct {
		name  string
		value time.Duration
	}{
		{"connect timeout", c.ConnectTimeout},
		{"connect poll interval", c.ConnectPollInterval},
		{"send retry interval", c.SendRetryInterval},
		{"receive poll interval", c.ReceivePollInterval},
	} {
		if interval.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", interval.name, interval.value))
		}
	}
	if c.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("flush interval must not be negative, got %v", c.FlushInterval))
	}

	return errors.Join(errs...)
}

func (c Config) keepAliveTimeout() time.Duration {
	return c.KeepAliveInterval * time.Duration(c.KeepAliveTimeoutMultiplier)
}
