// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package controlchanneltest provides a mock control daemon for tests
// that exercise the control channel over a real Unix socket.
package controlchanneltest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"

	"github.com/vibetunnel/vibetunnel/controlchannel"
	"github.com/vibetunnel/vibetunnel/lib/framing"
)

// Daemon listens on a Unix socket, answers pings, and records every
// other message it receives. Connections can be dropped and the
// listener stopped and restarted to exercise reconnection.
type Daemon struct {
	socketPath string
	logger     *slog.Logger

	messages chan []byte
	accepted chan struct{}

	mu          sync.Mutex
	listener    net.Listener
	connections map[*daemonConnection]struct{}
	answerPings bool
	pings       int
	waitGroup   sync.WaitGroup
}

type daemonConnection struct {
	connection net.Conn
	writeMu    sync.Mutex
}

func (c *daemonConnection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.connection.Write(data)
	return err
}

// StartDaemon starts a Daemon on socketPath and stops it when the test
// completes. Pings are answered by default.
func StartDaemon(t testing.TB, socketPath string) *Daemon {
	t.Helper()
	daemon := &Daemon{
		socketPath:  socketPath,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		messages:    make(chan []byte, 1024),
		accepted:    make(chan struct{}, 64),
		connections: make(map[*daemonConnection]struct{}),
		answerPings: true,
	}
	if err := daemon.Listen(); err != nil {
		t.Fatalf("starting mock daemon: %v", err)
	}
	t.Cleanup(daemon.Stop)
	return daemon
}

// SocketPath returns the path the daemon listens on.
func (d *Daemon) SocketPath() string { return d.socketPath }

// Messages delivers the body of every non-ping frame received.
func (d *Daemon) Messages() <-chan []byte { return d.messages }

// Accepted receives a value for each accepted connection.
func (d *Daemon) Accepted() <-chan struct{} { return d.accepted }

// SetAnswerPings controls whether ping requests get a pong.
func (d *Daemon) SetAnswerPings(answer bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answerPings = answer
}

// Pings returns how many ping requests have been received.
func (d *Daemon) Pings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pings
}

// ConnectionCount returns the number of open client connections.
func (d *Daemon) ConnectionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.connections)
}

// Listen starts accepting connections. Any stale socket file is
// removed first. Used to restart a stopped daemon.
func (d *Daemon) Listen() error {
	if err := os.Remove(d.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", d.socketPath, err)
	}
	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", d.socketPath, err)
	}

	d.mu.Lock()
	d.listener = listener
	d.mu.Unlock()

	d.waitGroup.Add(1)
	go d.acceptLoop(listener)
	return nil
}

func (d *Daemon) acceptLoop(listener net.Listener) {
	defer d.waitGroup.Done()
	for {
		connection, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				d.logger.Error("accept failed", "error", err)
			}
			return
		}
		client := &daemonConnection{connection: connection}
		d.mu.Lock()
		d.connections[client] = struct{}{}
		d.mu.Unlock()

		select {
		case d.accepted <- struct{}{}:
		default:
		}

		d.waitGroup.Add(1)
		go d.serve(client)
	}
}

func (d *Daemon) serve(client *daemonConnection) {
	defer d.waitGroup.Done()
	defer func() {
		client.connection.Close()
		d.mu.Lock()
		delete(d.connections, client)
		d.mu.Unlock()
	}()

	for {
		body, err := framing.ReadFrame(client.connection)
		if err != nil {
			return
		}

		var envelope controlchannel.Envelope
		if json.Unmarshal(body, &envelope) == nil &&
			envelope.Type == controlchannel.TypeRequest &&
			envelope.Category == controlchannel.CategorySystem &&
			envelope.Action == controlchannel.ActionPing {
			d.mu.Lock()
			d.pings++
			answer := d.answerPings
			d.mu.Unlock()
			if answer {
				if err := d.reply(client, envelope.ID); err != nil {
					return
				}
			}
			continue
		}

		d.messages <- body
	}
}

func (d *Daemon) reply(client *daemonConnection, id string) error {
	pong, err := json.Marshal(controlchannel.Envelope{
		Type:     controlchannel.TypeResponse,
		Category: controlchannel.CategorySystem,
		Action:   controlchannel.ActionPing,
		ID:       id,
	})
	if err != nil {
		return err
	}
	frame, err := framing.Encode(pong)
	if err != nil {
		return err
	}
	return client.write(frame)
}

// Send writes payload as one frame to every open connection.
func (d *Daemon) Send(payload []byte) error {
	frame, err := framing.Encode(payload)
	if err != nil {
		return err
	}
	return d.SendRaw(frame)
}

// SendRaw writes data unframed to every open connection.
func (d *Daemon) SendRaw(data []byte) error {
	d.mu.Lock()
	clients := make([]*daemonConnection, 0, len(d.connections))
	for client := range d.connections {
		clients = append(clients, client)
	}
	d.mu.Unlock()

	if len(clients) == 0 {
		return errors.New("controlchanneltest: no connected clients")
	}
	var errs []error
	for _, client := range clients {
		if err := client.write(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DropConnections closes every open connection. The listener keeps
// accepting.
func (d *Daemon) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for client := range d.connections {
		client.connection.Close()
	}
}

// Stop closes the listener and every connection and removes the socket
// file. The daemon can be restarted with Listen.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if d.listener != nil {
		d.listener.Close()
		d.listener = nil
	}
	for client := range d.connections {
		client.connection.Close()
	}
	d.mu.Unlock()

	d.waitGroup.Wait()
	os.Remove(d.socketPath)
}
