// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package controlchannel implements the client side of the control
// channel between the companion application and the local VibeTunnel
// daemon: JSON control messages exchanged over a Unix domain socket,
// kept alive and reconnected automatically.
//
// The package is organized around the [Manager]:
//
//   - manager.go: connection state machine, send path, receive loop
//   - keepalive.go: periodic ping and dead-peer detection
//   - backoff.go: exponential reconnect delay
//   - pending.go: bounded queue of messages accepted while not ready
//   - envelope.go: the request/response envelope used by ping and pong
//   - dispatch.go: ordered delivery of callbacks on one goroutine
//
// Messages submitted while the connection is not ready are queued (up
// to a capacity, oldest dropped first) and flushed in order once the
// connection becomes ready. Transport failures are never terminal: the
// Manager tears the connection down and retries with growing delays
// until Disconnect is called.
//
// Frames use the format in lib/framing. The socket itself is a
// transport.Stream; production code uses transport.UnixDialer and
// tests substitute transport.MemoryDialer or the mock daemon in
// controlchanneltest.
package controlchannel
