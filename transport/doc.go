// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the byte stream the control channel runs
// over: a connected, non-blocking Unix domain socket to the local
// daemon.
//
// The package defines two interfaces. [Dialer] opens a [Stream] to a
// socket path. [Stream] sends whole byte slices, reads whatever bytes
// are available without blocking, and closes.
//
// The production implementation, [UnixDialer], drives the socket with
// raw syscalls from golang.org/x/sys/unix rather than net.Conn: the
// socket is put in non-blocking mode before connect, connect
// completion is polled, partial writes and EAGAIN are handled by the
// send loop, and a receive is a single read of up to one chunk. Errors
// carry the failing operation, the socket path, and the errno as a
// [*Error]; use errors.Is with unix errno values or
// netutil.IsReconnectable to classify them.
//
// [MemoryDialer] is an in-process implementation for tests. Each Dial
// produces a [MemoryPeer] standing in for the daemon's end of the
// connection.
package transport
