// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package framing implements the control channel wire format: each
// message is a 4-byte big-endian length followed by that many bytes
// of JSON.
//
//	+----------------+---------------------+
//	| length (u32 BE)| body (length bytes) |
//	+----------------+---------------------+
//
// The body length must be strictly less than MaxFrameSize. Zero-length
// bodies are legal on the wire.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLength is the size of the length prefix.
const HeaderLength = 4

// MaxFrameSize is the exclusive upper bound on a frame body. A header
// declaring this length or more marks the stream as corrupt.
const MaxFrameSize = 10_000_000

// MaxBufferedBytes bounds how much a ReceiveBuffer holds without
// completing a frame before it gives up and clears.
const MaxBufferedBytes = 10 * 1024 * 1024

var (
	// ErrFrameTooLarge is returned by Encode for a body of
	// MaxFrameSize bytes or more.
	ErrFrameTooLarge = errors.New("framing: frame body too large")

	// ErrCorruptFrame is returned when a header declares a length of
	// MaxFrameSize or more. The accumulated bytes are unusable.
	ErrCorruptFrame = errors.New("framing: corrupt frame header")

	// ErrBufferOverflow is returned when the receive buffer grows past
	// MaxBufferedBytes without completing a frame.
	ErrBufferOverflow = errors.New("framing: receive buffer overflow")
)

// Encode returns the length-prefixed frame for payload.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) >= MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, len(payload), MaxFrameSize)
	}
	frame := make([]byte, HeaderLength+len(payload))
	binary.BigEndian.PutUint32(frame[:HeaderLength], uint32(len(payload)))
	copy(frame[HeaderLength:], payload)
	return frame, nil
}

// Decode extracts every complete frame body from buffer and returns
// the bytes that follow the last complete frame. The returned bodies
// and remainder alias buffer.
//
// If a header declares a length of MaxFrameSize or more, Decode
// returns the frames decoded before it along with ErrCorruptFrame and
// a nil remainder; the caller discards what it had buffered.
func Decode(buffer []byte) (frames [][]byte, remainder []byte, err error) {
	offset := 0
	for len(buffer)-offset >= HeaderLength {
		length := binary.BigEndian.Uint32(buffer[offset : offset+HeaderLength])
		if length >= MaxFrameSize {
			return frames, nil, fmt.Errorf("%w: declared length %d", ErrCorruptFrame, length)
		}
		end := offset + HeaderLength + int(length)
		if end > len(buffer) {
			break
		}
		frames = append(frames, buffer[offset+HeaderLength:end])
		offset = end
	}
	return frames, buffer[offset:], nil
}

// WriteFrame writes payload to w as a single frame. The header and
// body go out in one Write call so a concurrent writer holding the
// same lock discipline cannot split them.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame body from r, blocking until it is
// complete.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length >= MaxFrameSize {
		return nil, fmt.Errorf("%w: declared length %d", ErrCorruptFrame, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}
