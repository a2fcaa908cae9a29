// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	frame, err := Encode([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := append([]byte{0x00, 0x00, 0x00, 0x07}, `{"a":1}`...)
	if !bytes.Equal(frame, want) {
		t.Errorf("Encode = % x, want % x", frame, want)
	}
}

func TestEncodeEmptyBody(t *testing.T) {
	frame, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(frame, []byte{0, 0, 0, 0}) {
		t.Errorf("Encode(nil) = % x", frame)
	}
}

func TestEncodeRejectsOversize(t *testing.T) {
	_, err := Encode(make([]byte, MaxFrameSize))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Encode(MaxFrameSize bytes) error = %v, want ErrFrameTooLarge", err)
	}
	if _, err := Encode(make([]byte, MaxFrameSize-1)); err != nil {
		t.Fatalf("Encode(MaxFrameSize-1 bytes): %v", err)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{}`),
		[]byte(`{"type":"request","category":"system","action":"ping"}`),
		{},
		bytes.Repeat([]byte("x"), 70_000),
	}
	var stream []byte
	for _, payload := range payloads {
		frame, err := Encode(payload)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		stream = append(stream, frame...)
	}

	frames, remainder, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(remainder) != 0 {
		t.Errorf("remainder = %d bytes, want 0", len(remainder))
	}
	if len(frames) != len(payloads) {
		t.Fatalf("decoded %d frames, want %d", len(frames), len(payloads))
	}
	for index := range payloads {
		if !bytes.Equal(frames[index], payloads[index]) {
			t.Errorf("frame %d mismatch", index)
		}
	}
}

func TestDecodePartial(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		remainder int
	}{
		{"empty", nil, 0},
		{"partial header", []byte{0, 0}, 2},
		{"header only", []byte{0, 0, 0, 5}, 4},
		{"partial body", []byte{0, 0, 0, 5, '{', '}'}, 6},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			frames, remainder, err := Decode(test.input)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(frames) != 0 {
				t.Errorf("got %d frames, want 0", len(frames))
			}
			if len(remainder) != test.remainder {
				t.Errorf("remainder = %d bytes, want %d", len(remainder), test.remainder)
			}
		})
	}
}

func TestDecodeCorruptHeader(t *testing.T) {
	good, _ := Encode([]byte(`{"ok":true}`))
	corrupt := make([]byte, HeaderLength)
	binary.BigEndian.PutUint32(corrupt, MaxFrameSize)
	stream := append(append([]byte{}, good...), corrupt...)

	frames, remainder, err := Decode(stream)
	if !errors.Is(err, ErrCorruptFrame) {
		t.Fatalf("Decode error = %v, want ErrCorruptFrame", err)
	}
	if len(frames) != 1 || string(frames[0]) != `{"ok":true}` {
		t.Errorf("frames before corruption = %q", frames)
	}
	if remainder != nil {
		t.Errorf("remainder = %d bytes, want nil", len(remainder))
	}
}

func TestReceiveBufferByteAtATime(t *testing.T) {
	frame, _ := Encode([]byte(`{"a":1}`))
	buffer := NewReceiveBuffer()

	for index, value := range frame {
		frames, err := buffer.Append([]byte{value})
		if err != nil {
			t.Fatalf("Append byte %d: %v", index, err)
		}
		last := index == len(frame)-1
		if !last && len(frames) != 0 {
			t.Fatalf("frame delivered after %d of %d bytes", index+1, len(frame))
		}
		if last {
			if len(frames) != 1 || string(frames[0]) != `{"a":1}` {
				t.Fatalf("final append frames = %q", frames)
			}
		}
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() = %d after complete frame, want 0", buffer.Len())
	}
}

func TestReceiveBufferBatch(t *testing.T) {
	var stream []byte
	for _, body := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		frame, _ := Encode([]byte(body))
		stream = append(stream, frame...)
	}
	buffer := NewReceiveBuffer()
	frames, err := buffer.Append(stream)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for index, want := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if string(frames[index]) != want {
			t.Errorf("frame %d = %q, want %q", index, frames[index], want)
		}
	}
}

func TestReceiveBufferFramesOutliveBuffer(t *testing.T) {
	buffer := NewReceiveBuffer()
	first, _ := Encode([]byte(`{"first":1}`))
	second, _ := Encode([]byte(`{"second":2}`))

	frames, _ := buffer.Append(append(first, second[:3]...))
	if _, err := buffer.Append(second[3:]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if string(frames[0]) != `{"first":1}` {
		t.Errorf("earlier frame overwritten: %q", frames[0])
	}
}

func TestReceiveBufferCorruptHeaderClears(t *testing.T) {
	buffer := NewReceiveBuffer()
	_, err := buffer.Append([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'x', 'y'})
	if !errors.Is(err, ErrCorruptFrame) {
		t.Fatalf("Append error = %v, want ErrCorruptFrame", err)
	}
	if buffer.Len() != 0 {
		t.Fatalf("Len() = %d after corruption, want 0", buffer.Len())
	}

	frame, _ := Encode([]byte(`{"after":true}`))
	frames, err := buffer.Append(frame)
	if err != nil {
		t.Fatalf("Append after corruption: %v", err)
	}
	if len(frames) != 1 || string(frames[0]) != `{"after":true}` {
		t.Errorf("frames after corruption = %q", frames)
	}
}

func TestReceiveBufferOverflowClears(t *testing.T) {
	buffer := &ReceiveBuffer{limit: 64}
	header := make([]byte, HeaderLength)
	binary.BigEndian.PutUint32(header, 1000)

	if _, err := buffer.Append(header); err != nil {
		t.Fatalf("Append header: %v", err)
	}
	_, err := buffer.Append(make([]byte, 100))
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("Append error = %v, want ErrBufferOverflow", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() = %d after overflow, want 0", buffer.Len())
	}
}

func TestWriteReadFrame(t *testing.T) {
	var stream bytes.Buffer
	for _, body := range []string{`{"a":1}`, `{}`} {
		if err := WriteFrame(&stream, []byte(body)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for _, want := range []string{`{"a":1}`, `{}`} {
		body, err := ReadFrame(&stream)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(body) != want {
			t.Errorf("ReadFrame = %q, want %q", body, want)
		}
	}
	if _, err := ReadFrame(&stream); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame at end = %v, want io.EOF", err)
	}
}

func TestReadFrameRejectsCorruptHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
	if !errors.Is(err, ErrCorruptFrame) {
		t.Fatalf("ReadFrame error = %v, want ErrCorruptFrame", err)
	}
}
