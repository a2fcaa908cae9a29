// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies socket errors for the control channel.
package netutil

import (
	"errors"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// ErrPeerClosed reports that the peer closed the stream (a read
// returned zero bytes).
var ErrPeerClosed = errors.New("peer closed connection")

// IsExpectedCloseError reports whether err is a normal termination of
// an established stream: EOF, peer close, use of a closed connection,
// broken pipe, or connection reset. These end a connection without
// indicating a bug and are logged at info rather than error.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, ErrPeerClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}

// IsReconnectable reports whether err should lead to tearing down the
// connection and scheduling a reconnect: an expected close, a refused
// or unconnected socket, or a socket path that does not exist yet.
func IsReconnectable(err error) bool {
	if IsExpectedCloseError(err) {
		return true
	}
	for _, errno := range []unix.Errno{unix.ECONNREFUSED, unix.ENOTCONN, unix.ENOENT, unix.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// IsSocketMissing reports whether err means the socket path does not
// exist, which is the usual sign that the daemon is not running yet.
func IsSocketMissing(err error) bool {
	return errors.Is(err, unix.ENOENT)
}
