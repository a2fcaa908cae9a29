// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vibetunnel/vibetunnel/lib/codec"
)

// Reader iterates the frames of a capture.
type Reader struct {
	header  Header
	decoder *codec.Decoder
	closer  io.Closer
	index   int
}

// Open opens a capture file and reads its header.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	reader, err := NewReader(bufio.NewReader(file))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.closer = file
	return reader, nil
}

// NewReader reads and validates the header from source.
func NewReader(source io.Reader) (*Reader, error) {
	decoder := codec.NewDecoder(source)
	var header Header
	if err := decoder.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrNotCapture)
		}
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	if header.Format != FormatName {
		return nil, fmt.Errorf("%w: format %q", ErrNotCapture, header.Format)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
	return &Reader{header: header, decoder: decoder}, nil
}

// Header returns the capture header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next frame, or io.EOF after the last one. A frame
// whose body does not match its digest returns ErrDigestMismatch.
func (r *Reader) Next() (Frame, error) {
	var record Record
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("reading capture record %d: %w", r.index, err)
	}
	index := r.index
	r.index++

	algorithm, err := ParseCompression(record.Compression)
	if err != nil || algorithm == CompressionAuto {
		return Frame{}, fmt.Errorf("capture record %d: invalid compression %q", index, record.Compression)
	}
	if record.Direction != DirectionInbound && record.Direction != DirectionOutbound {
		return Frame{}, fmt.Errorf("capture record %d: invalid direction %q", index, record.Direction)
	}
	want, err := digestFromBytes(record.Digest)
	if err != nil {
		return Frame{}, fmt.Errorf("capture record %d: %w", index, err)
	}
	body, err := decompress(record.Data, algorithm, record.Size)
	if err != nil {
		return Frame{}, fmt.Errorf("capture record %d: %w", index, err)
	}
	if got := DigestFrame(body); got != want {
		return Frame{}, fmt.Errorf("%w: record %d has %s, computed %s", ErrDigestMismatch, index, want, got)
	}

	return Frame{
		Direction:   record.Direction,
		Timestamp:   record.Timestamp,
		Compression: algorithm,
		StoredSize:  len(record.Data),
		Digest:      want,
		Body:        body,
	}, nil
}

// ReadAll returns every remaining frame.
func (r *Reader) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
}

// Close closes the file opened by Open.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Diagnose writes the CBOR diagnostic notation of every item in a
// capture, one per line. It does not validate the contents.
func Diagnose(data []byte, output io.Writer) error {
	for len(data) > 0 {
		notation, rest, err := codec.DiagnoseFirst(data)
		if err != nil {
			return fmt.Errorf("diagnosing capture item: %w", err)
		}
		if _, err := fmt.Fprintln(output, notation); err != nil {
			return err
		}
		data = rest
	}
	return nil
}
