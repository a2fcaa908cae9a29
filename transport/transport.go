// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/vibetunnel/vibetunnel/lib/netutil"
)

// Stream is a connected byte stream to the daemon.
type Stream interface {
	// Send writes all of data, retrying partial writes and
	// would-block conditions until the bytes are written, the stream
	// fails, or ctx is done. Concurrent Send calls must be serialized
	// by the caller.
	Send(ctx context.Context, data []byte) error

	// Receive performs one non-blocking read. It returns (nil, nil)
	// when no data is available and ErrPeerClosed when the daemon
	// closed its end.
	Receive() ([]byte, error)

	// Close releases the socket. Safe to call more than once and
	// concurrently with Send and Receive, which fail with ErrClosed
	// afterwards.
	Close() error
}

// Dialer opens streams to a socket path.
type Dialer interface {
	// Dial connects to the socket at path. Blocks until the
	// connection completes, fails, or ctx is done.
	Dial(ctx context.Context, path string) (Stream, error)
}

var (
	// ErrPeerClosed is returned by Receive when the daemon closed the
	// connection.
	ErrPeerClosed = netutil.ErrPeerClosed

	// ErrClosed is returned by operations on a stream after Close.
	ErrClosed = errors.New("transport: stream closed")

	// ErrPathTooLong is returned by Dial when the socket path does
	// not fit in sockaddr_un.
	ErrPathTooLong = errors.New("transport: socket path too long")
)

// Error describes a failed socket operation.
type Error struct {
	// Op is the operation that failed: "socket", "connect", "send",
	// "receive".
	Op string

	// Path is the socket path the stream was dialed to.
	Path string

	// Err is the underlying error, usually a unix.Errno.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
