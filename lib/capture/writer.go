// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/vibetunnel/vibetunnel/lib/clock"
	"github.com/vibetunnel/vibetunnel/lib/codec"
)

// Options configures a Writer.
type Options struct {
	// SocketPath is written into the header for reference.
	SocketPath string

	// Compression applies to every record. CompressionAuto picks per
	// record.
	Compression Compression

	// Clock stamps the header and records. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives the single warning emitted when recording
	// fails. Defaults to slog.Default().
	Logger *slog.Logger
}

// Writer appends frame records to a capture. It is safe for concurrent
// use and satisfies controlchannel.FrameRecorder.
type Writer struct {
	clock       clock.Clock
	logger      *slog.Logger
	compression Compression
	sessionID   string

	mu      sync.Mutex
	encoder *codec.Encoder
	closer  io.Closer
	failed  bool
	closed  bool
	records uint64
}

// Create truncates or creates path and writes a capture header to it.
func Create(path string, options Options) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	writer, err := NewWriter(file, options)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.closer = file
	return writer, nil
}

// NewWriter writes a capture header to destination and returns a
// Writer appending records after it. Close does not close destination.
func NewWriter(destination io.Writer, options Options) (*Writer, error) {
	if options.Compression > CompressionAuto {
		return nil, fmt.Errorf("unsupported capture compression %s", options.Compression)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	sessionID := uuid.NewString()
	encoder := codec.NewEncoder(destination)
	header := Header{
		Format:     FormatName,
		Version:    FormatVersion,
		SessionID:  sessionID,
		StartedAt:  options.Clock.Now().UTC(),
		SocketPath: options.SocketPath,
	}
	if err := encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("writing capture header: %w", err)
	}

	return &Writer{
		clock:       options.Clock,
		logger:      options.Logger.With("capture_session", sessionID),
		compression: options.Compression,
		sessionID:   sessionID,
		encoder:     encoder,
	}, nil
}

// SessionID returns the identifier written into the header.
func (w *Writer) SessionID() string { return w.sessionID }

// Records returns how many frame records have been written.
func (w *Writer) Records() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// RecordOutbound records a frame body written to the socket.
func (w *Writer) RecordOutbound(payload []byte) {
	w.record(DirectionOutbound, payload)
}

// RecordInbound records a frame body read from the socket.
func (w *Writer) RecordInbound(payload []byte) {
	w.record(DirectionInbound, payload)
}

// Write appends one record. Unlike the FrameRecorder methods it
// returns the error instead of logging it.
func (w *Writer) Write(direction Direction, payload []byte) error {
	stored, algorithm, err := compress(payload, w.compression)
	if err != nil {
		return err
	}
	digest := DigestFrame(payload)
	record := Record{
		Direction:   direction,
		Timestamp:   w.clock.Now().UTC(),
		Compression: algorithm.String(),
		Size:        len(payload),
		Digest:      digest[:],
		Data:        stored,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("writing capture record: %w", err)
	}
	w.records++
	return nil
}

func (w *Writer) record(direction Direction, payload []byte) {
	w.mu.Lock()
	skip := w.failed || w.closed
	w.mu.Unlock()
	if skip {
		return
	}

	if err := w.Write(direction, payload); err != nil {
		w.mu.Lock()
		alreadyFailed := w.failed
		w.failed = true
		w.mu.Unlock()
		if !alreadyFailed {
			w.logger.Warn("frame capture disabled after write failure",
				"direction", direction,
				"error", err,
			)
		}
	}
}

// Close stops recording and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
