// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import "errors"

var (
	// ErrNotConnected is returned by Send after Disconnect, and passed
	// to the completions of queued messages that Disconnect discards.
	ErrNotConnected = errors.New("controlchannel: not connected")

	// ErrConnectionClosed is the state error when the daemon closes
	// the connection.
	ErrConnectionClosed = errors.New("controlchannel: connection closed by peer")

	// ErrSendFailed wraps transport errors from a direct write.
	ErrSendFailed = errors.New("controlchannel: send failed")

	// ErrConnectionFailed wraps errors from a connect attempt.
	ErrConnectionFailed = errors.New("controlchannel: connection failed")

	// ErrKeepAliveTimeout is the state error when no pong arrived
	// within the keep-alive timeout.
	ErrKeepAliveTimeout = errors.New("controlchannel: keep-alive timeout")

	// ErrInvalidPayload is returned by Send when the payload is not a
	// JSON object.
	ErrInvalidPayload = errors.New("controlchannel: payload is not a JSON object")

	// ErrPayloadTooLarge is returned by Send when the payload does not
	// fit in a frame.
	ErrPayloadTooLarge = errors.New("controlchannel: payload too large")

	// ErrManagerClosed is returned by operations after Close.
	ErrManagerClosed = errors.New("controlchannel: manager closed")
)
