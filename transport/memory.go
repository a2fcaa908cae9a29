// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// MemoryDialer is an in-process Dialer for tests. Each successful Dial
// creates a connected MemoryStream/MemoryPeer pair; the peer is
// delivered on Accepted.
type MemoryDialer struct {
	mu       sync.Mutex
	dialErr  error
	dials    int
	accepted chan *MemoryPeer
}

var _ Dialer = (*MemoryDialer)(nil)

// NewMemoryDialer returns a MemoryDialer that accepts every Dial. At
// most 256 peers may be waiting on Accepted before Dial blocks.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{accepted: make(chan *MemoryPeer, 256)}
}

// SetDialError makes subsequent Dial calls fail with err. Pass nil to
// accept again.
func (d *MemoryDialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

// Dials returns how many times Dial has been called.
func (d *MemoryDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Accepted delivers the daemon side of each successful Dial.
func (d *MemoryDialer) Accepted() <-chan *MemoryPeer {
	return d.accepted
}

func (d *MemoryDialer) Dial(ctx context.Context, path string) (Stream, error) {
	d.mu.Lock()
	d.dials++
	dialErr := d.dialErr
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "connect", Path: path, Err: err}
	}
	if dialErr != nil {
		return nil, &Error{Op: "connect", Path: path, Err: dialErr}
	}

	toPeer := newMemoryPipe()
	toClient := newMemoryPipe()
	stream := &MemoryStream{path: path, outbound: toPeer, inbound: toClient}
	peer := &MemoryPeer{inbound: toPeer, outbound: toClient}
	d.accepted <- peer
	return stream, nil
}

// MemoryStream is the client end of an in-process connection.
type MemoryStream struct {
	path     string
	outbound *memoryPipe
	inbound  *memoryPipe
}

func (s *MemoryStream) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "send", Path: s.path, Err: err}
	}
	if err := s.outbound.write(data); err != nil {
		return &Error{Op: "send", Path: s.path, Err: err}
	}
	return nil
}

func (s *MemoryStream) Receive() ([]byte, error) {
	data, err := s.inbound.tryRead()
	if err != nil {
		return nil, &Error{Op: "receive", Path: s.path, Err: err}
	}
	return data, nil
}

func (s *MemoryStream) Close() error {
	s.outbound.close()
	s.inbound.close()
	return nil
}

// MemoryPeer is the daemon end of an in-process connection. Read
// blocks until the client sends; Write makes bytes available to the
// client's Receive.
type MemoryPeer struct {
	inbound  *memoryPipe
	outbound *memoryPipe
}

// Read blocks until bytes from the client are available. Returns
// io.EOF once the connection is closed and drained.
func (p *MemoryPeer) Read(buffer []byte) (int, error) {
	return p.inbound.read(buffer)
}

// Write queues bytes for the client. Fails with EPIPE after close.
func (p *MemoryPeer) Write(data []byte) (int, error) {
	if err := p.outbound.write(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close drops the connection. The client's next Receive reports
// ErrPeerClosed once it has drained what was written, and its next
// Send fails with EPIPE.
func (p *MemoryPeer) Close() error {
	p.inbound.close()
	p.outbound.close()
	return nil
}

// memoryPipe is one direction of an in-process connection.
type memoryPipe struct {
	mu       sync.Mutex
	readable *sync.Cond
	data     []byte
	closed   bool
}

func newMemoryPipe() *memoryPipe {
	pipe := &memoryPipe{}
	pipe.readable = sync.NewCond(&pipe.mu)
	return pipe
}

func (p *memoryPipe) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return unix.EPIPE
	}
	p.data = append(p.data, data...)
	p.readable.Broadcast()
	return nil
}

// tryRead returns whatever is buffered without blocking.
func (p *memoryPipe) tryRead() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.data) == 0 {
		if p.closed {
			return nil, ErrPeerClosed
		}
		return nil, nil
	}
	data := p.data
	p.data = nil
	return data, nil
}

func (p *memoryPipe) read(buffer []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.data) == 0 && !p.closed {
		p.readable.Wait()
	}
	if len(p.data) == 0 {
		return 0, io.EOF
	}
	count := copy(buffer, p.data)
	p.data = p.data[count:]
	return count, nil
}

func (p *memoryPipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readable.Broadcast()
}
