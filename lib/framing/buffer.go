// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import "fmt"

// ReceiveBuffer accumulates bytes read from a stream and yields
// complete frame bodies. It is not safe for concurrent use; each
// connection's receive loop owns one.
type ReceiveBuffer struct {
	data  []byte
	limit int
}

// NewReceiveBuffer returns an empty buffer bounded by MaxBufferedBytes.
func NewReceiveBuffer() *ReceiveBuffer {
	return &ReceiveBuffer{limit: MaxBufferedBytes}
}

// Append adds data and returns the bodies of every frame completed by
// it. Returned bodies are copies and stay valid after later calls.
//
// On ErrCorruptFrame or ErrBufferOverflow the buffer is cleared; any
// frames completed before the corrupt header are still returned.
func (b *ReceiveBuffer) Append(data []byte) ([][]byte, error) {
	b.data = append(b.data, data...)

	frames, remainder, err := Decode(b.data)
	owned := make([][]byte, len(frames))
	for index, frame := range frames {
		owned[index] = append([]byte(nil), frame...)
	}
	if err != nil {
		b.Reset()
		return owned, err
	}

	if len(remainder) > b.limit {
		size := len(remainder)
		b.Reset()
		return owned, fmt.Errorf("%w: %d bytes without a complete frame", ErrBufferOverflow, size)
	}

	// Compact so the consumed prefix can be collected.
	if len(remainder) == 0 {
		b.data = b.data[:0]
	} else if len(remainder) < len(b.data) {
		b.data = append(b.data[:0], remainder...)
	}
	return owned, nil
}

// Len returns the number of buffered bytes not yet part of a complete
// frame.
func (b *ReceiveBuffer) Len() int { return len(b.data) }

// Reset discards all buffered bytes.
func (b *ReceiveBuffer) Reset() { b.data = nil }
