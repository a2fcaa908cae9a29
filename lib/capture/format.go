// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"time"
)

const (
	// FormatName identifies a capture file in its header.
	FormatName = "vibetunnel-control-capture"

	// FormatVersion is the current header and record layout.
	FormatVersion = 1
)

// Direction is which way a frame travelled.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Header is the first item of a capture file.
type Header struct {
	Format     string    `cbor:"format"`
	Version    int       `cbor:"version"`
	SessionID  string    `cbor:"session_id"`
	StartedAt  time.Time `cbor:"started_at"`
	SocketPath string    `cbor:"socket_path,omitempty"`
}

// Record is one captured frame as stored on disk. Data holds the body
// after compression; Size and Digest describe the uncompressed body.
type Record struct {
	Direction   Direction `cbor:"direction"`
	Timestamp   time.Time `cbor:"timestamp"`
	Compression string    `cbor:"compression"`
	Size        int       `cbor:"size"`
	Digest      []byte    `cbor:"digest"`
	Data        []byte    `cbor:"data"`
}

// Frame is a decoded, verified record.
type Frame struct {
	Direction   Direction
	Timestamp   time.Time
	Compression Compression
	StoredSize  int
	Digest      Digest
	Body        []byte
}

var (
	// ErrNotCapture is returned when the header names another format.
	ErrNotCapture = errors.New("capture: not a control channel capture file")

	// ErrUnsupportedVersion is returned for a header version this
	// package cannot read.
	ErrUnsupportedVersion = errors.New("capture: unsupported format version")

	// ErrDigestMismatch is returned when a frame body does not match
	// its recorded digest.
	ErrDigestMismatch = errors.New("capture: frame digest mismatch")
)
