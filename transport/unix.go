// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vibetunnel/vibetunnel/lib/clock"
)

// Defaults for UnixDialer fields left at zero.
const (
	DefaultSocketBufferSize  = 1024 * 1024
	DefaultConnectTimeout    = 10 * time.Second
	DefaultConnectPoll       = 100 * time.Millisecond
	DefaultSendRetryInterval = time.Millisecond
	DefaultReceiveChunkSize  = 64 * 1024
)

// maxSocketPathLength leaves room for the terminating NUL in sun_path.
var maxSocketPathLength = len(unix.RawSockaddrUnix{}.Path) - 1

// UnixDialer connects to Unix domain stream sockets using raw
// non-blocking syscalls.
type UnixDialer struct {
	// SocketBufferSize is requested for SO_SNDBUF and SO_RCVBUF. The
	// kernel may clamp it; failure to set it is logged and ignored.
	SocketBufferSize int

	// ConnectTimeout bounds how long Dial waits for an in-progress
	// connect when ctx has no earlier deadline.
	ConnectTimeout time.Duration

	// ConnectPollInterval is how often an in-progress connect is
	// checked for completion.
	ConnectPollInterval time.Duration

	// SendRetryInterval is the pause after a write would block.
	SendRetryInterval time.Duration

	// ReceiveChunkSize is the largest single read.
	ReceiveChunkSize int

	// Logger receives socket option warnings. Nil discards them.
	Logger *slog.Logger
}

var _ Dialer = (*UnixDialer)(nil)

// Dial creates a non-blocking AF_UNIX stream socket and connects it
// to path.
func (d *UnixDialer) Dial(ctx context.Context, path string) (Stream, error) {
	if len(path) > maxSocketPathLength {
		return nil, &Error{Op: "connect", Path: path, Err: ErrPathTooLong}
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &Error{Op: "socket", Path: path, Err: err}
	}

	d.setBufferSizes(fd, path)

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, &Error{Op: "socket", Path: path, Err: err}
	}

	err = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
	if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EINPROGRESS) {
		err = d.awaitConnect(ctx, fd)
	}
	if err != nil {
		unix.Close(fd)
		return nil, &Error{Op: "connect", Path: path, Err: err}
	}

	return &unixStream{
		fd:            fd,
		path:          path,
		receiveBuffer: make([]byte, orDefault(d.ReceiveChunkSize, DefaultReceiveChunkSize)),
		retryInterval: orDefault(d.SendRetryInterval, DefaultSendRetryInterval),
	}, nil
}

func (d *UnixDialer) setBufferSizes(fd int, path string) {
	size := orDefault(d.SocketBufferSize, DefaultSocketBufferSize)
	for _, option := range []struct {
		name  string
		value int
	}{
		{"SO_SNDBUF", unix.SO_SNDBUF},
		{"SO_RCVBUF", unix.SO_RCVBUF},
	} {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, option.value, size); err != nil && d.Logger != nil {
			d.Logger.Warn("setting socket buffer size",
				"option", option.name,
				"size", size,
				"socket_path", path,
				"error", err,
			)
		}
	}
}

// awaitConnect polls an in-progress connect until the socket becomes
// writable, then reads SO_ERROR for the outcome.
func (d *UnixDialer) awaitConnect(ctx context.Context, fd int) error {
	interval := orDefault(d.ConnectPollInterval, DefaultConnectPoll)
	deadline := time.Now().Add(orDefault(d.ConnectTimeout, DefaultConnectTimeout)) //nolint:realclock connect deadline
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) { //nolint:realclock connect deadline
			return unix.ETIMEDOUT
		}

		descriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		ready, err := unix.Poll(descriptors, int(interval.Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if ready == 0 {
			continue
		}

		socketError, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if socketError != 0 {
			return unix.Errno(socketError)
		}
		return nil
	}
}

// unixStream is a connected non-blocking socket. The read lock is held
// for each syscall on fd; Close takes the write lock so fd is never
// used after it is released.
//
// receiveBuffer is reused by every Receive and guarded by receiveMu.
// Lock order: receiveMu before mu.
type unixStream struct {
	mu            sync.RWMutex
	fd            int
	closed        bool
	path          string
	retryInterval time.Duration

	receiveMu     sync.Mutex
	receiveBuffer []byte
}

func (s *unixStream) Send(ctx context.Context, data []byte) error {
	written := 0
	for written < len(data) {
		count, err := s.write(data[written:])
		switch {
		case err == nil:
			written += count
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			if err := clock.Sleep(ctx, s.retryInterval); err != nil {
				return &Error{Op: "send", Path: s.path, Err: err}
			}
		default:
			return &Error{Op: "send", Path: s.path, Err: err}
		}
	}
	return nil
}

func (s *unixStream) write(data []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	count, err := unix.Write(s.fd, data)
	if count < 0 {
		count = 0
	}
	return count, err
}

// Receive reads into the stream's buffer and returns a copy of what
// arrived, so an empty poll allocates nothing.
func (s *unixStream) Receive() ([]byte, error) {
	s.receiveMu.Lock()
	defer s.receiveMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &Error{Op: "receive", Path: s.path, Err: ErrClosed}
	}

	count, err := unix.Read(s.fd, s.receiveBuffer)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return nil, nil
	case err != nil:
		return nil, &Error{Op: "receive", Path: s.path, Err: err}
	case count == 0:
		return nil, &Error{Op: "receive", Path: s.path, Err: ErrPeerClosed}
	}
	return append([]byte(nil), s.receiveBuffer[:count]...), nil
}

func (s *unixStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

func orDefault[T int | time.Duration](value, fallback T) T {
	if value <= 0 {
		return fallback
	}
	return value
}
