// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibetunnel/vibetunnel/controlchannel"
	"github.com/vibetunnel/vibetunnel/controlchannel/controlchanneltest"
	"github.com/vibetunnel/vibetunnel/lib/testutil"
)

const testTimeout = 5 * time.Second

type recorder struct {
	states   chan controlchannel.ConnectionState
	messages chan []byte
}

func newManager(t *testing.T, socketPath string, configure func(*controlchannel.Config)) (*controlchannel.Manager, *recorder) {
	t.Helper()
	config := controlchannel.DefaultConfig()
	config.SocketPath = socketPath
	if configure != nil {
		configure(&config)
	}
	events := &recorder{
		states:   make(chan controlchannel.ConnectionState, 256),
		messages: make(chan []byte, 256),
	}
	manager, err := controlchannel.NewManager(config, controlchannel.Handlers{
		OnMessage: func(payload []byte) error {
			events.messages <- payload
			return nil
		},
		OnStateChange: func(state controlchannel.ConnectionState) { events.states <- state },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager, events
}

func (r *recorder) waitForPhase(t *testing.T, phase controlchannel.Phase) controlchannel.ConnectionState {
	t.Helper()
	for {
		state := testutil.RequireReceive(t, r.states, testTimeout, "waiting for phase %s", phase)
		if state.Phase == phase {
			return state
		}
	}
}

func waitReady(t *testing.T, manager *controlchannel.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := manager.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
}

func TestDaemonRoundTrip(t *testing.T) {
	daemon := controlchanneltest.StartDaemon(t, filepath.Join(testutil.SocketDir(t), testutil.UniqueID("control")+".sock"))
	manager, events := newManager(t, daemon.SocketPath(), nil)

	manager.Connect()
	waitReady(t, manager)

	if err := manager.Send(context.Background(), []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if body := testutil.RequireReceive(t, daemon.Messages(), testTimeout, "daemon receive"); string(body) != `{"a":1}` {
		t.Errorf("daemon received %q, want {\"a\":1}", body)
	}

	if err := daemon.Send([]byte(`{"type":"event","category":"session","action":"created"}`)); err != nil {
		t.Fatalf("daemon send: %v", err)
	}
	body := testutil.RequireReceive(t, events.messages, testTimeout, "client receive")
	if string(body) != `{"type":"event","category":"session","action":"created"}` {
		t.Errorf("client received %s", body)
	}
}

func TestDaemonDropTriggersReconnect(t *testing.T) {
	daemon := controlchanneltest.StartDaemon(t, filepath.Join(testutil.SocketDir(t), testutil.UniqueID("control")+".sock"))
	manager, events := newManager(t, daemon.SocketPath(), nil)

	manager.Connect()
	events.waitForPhase(t, controlchannel.PhaseReady)
	testutil.RequireReceive(t, daemon.Accepted(), testTimeout, "first accept")

	daemon.DropConnections()
	state := events.waitForPhase(t, controlchannel.PhaseFailed)
	if !errors.Is(state.Err, controlchannel.ErrConnectionClosed) {
		t.Errorf("failed state error = %v, want ErrConnectionClosed", state.Err)
	}
	failedAt := time.Now() //nolint:realclock measuring the reconnect delay

	events.waitForPhase(t, controlchannel.PhaseReady)
	if elapsed := time.Since(failedAt); elapsed < 900*time.Millisecond { //nolint:realclock measuring the reconnect delay
		t.Errorf("reconnected after %v, want about 1s", elapsed)
	}
	testutil.RequireReceive(t, daemon.Accepted(), testTimeout, "second accept")
}

func TestDaemonStartsLate(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), testutil.UniqueID("control")+".sock")
	manager, events := newManager(t, socketPath, func(config *controlchannel.Config) {
		config.ReconnectInitialDelay = 20 * time.Millisecond
		config.ReconnectMaxDelay = 50 * time.Millisecond
	})

	manager.Connect()
	events.waitForPhase(t, controlchannel.PhaseWaiting)
	if err := manager.Send(context.Background(), []byte(`{"early":true}`)); err != nil {
		t.Fatalf("Send while waiting: %v", err)
	}

	daemon := controlchanneltest.StartDaemon(t, socketPath)
	events.waitForPhase(t, controlchannel.PhaseReady)
	if body := testutil.RequireReceive(t, daemon.Messages(), testTimeout, "flushed message"); string(body) != `{"early":true}` {
		t.Errorf("daemon received %s", body)
	}
}

func TestDaemonKeepAlive(t *testing.T) {
	daemon := controlchanneltest.StartDaemon(t, filepath.Join(testutil.SocketDir(t), testutil.UniqueID("control")+".sock"))
	manager, events := newManager(t, daemon.SocketPath(), func(config *controlchannel.Config) {
		config.KeepAliveInterval = 20 * time.Millisecond
		config.ReconnectInitialDelay = 20 * time.Millisecond
	})

	manager.Connect()
	events.waitForPhase(t, controlchannel.PhaseReady)
	testutil.RequireEventually(t, func() bool { return daemon.Pings() >= 3 }, testTimeout, "pings answered")
	if state := manager.State(); state.Phase != controlchannel.PhaseReady {
		t.Fatalf("State() = %v with answered pings", state)
	}

	daemon.SetAnswerPings(false)
	state := events.waitForPhase(t, controlchannel.PhaseFailed)
	if !errors.Is(state.Err, controlchannel.ErrKeepAliveTimeout) {
		t.Fatalf("failed state error = %v, want ErrKeepAliveTimeout", state.Err)
	}

	daemon.SetAnswerPings(true)
	events.waitForPhase(t, controlchannel.PhaseReady)
}

func TestDaemonCorruptHeader(t *testing.T) {
	daemon := controlchanneltest.StartDaemon(t, filepath.Join(testutil.SocketDir(t), testutil.UniqueID("control")+".sock"))
	manager, events := newManager(t, daemon.SocketPath(), nil)
	manager.Connect()
	waitReady(t, manager)
	testutil.RequireReceive(t, daemon.Accepted(), testTimeout, "accept")

	if err := daemon.SendRaw([]byte{0x7F, 0xFF, 0xFF, 0xFF}); err != nil {
		t.Fatalf("daemon send: %v", err)
	}
	testutil.RequireEventually(t, func() bool { return manager.Stats().CorruptFrames == 1 }, testTimeout, "corruption detected")

	if err := daemon.Send([]byte(`{"still":"connected"}`)); err != nil {
		t.Fatalf("daemon send: %v", err)
	}
	if body := testutil.RequireReceive(t, events.messages, testTimeout, "message after corruption"); string(body) != `{"still":"connected"}` {
		t.Errorf("client received %s", body)
	}
	if manager.State().Phase != controlchannel.PhaseReady {
		t.Errorf("State() = %v after corrupt header", manager.State())
	}
}

// listenWithoutReading accepts connections on socketPath and never
// reads from them, so a client's socket buffers fill and its writes
// block.
func listenWithoutReading(t *testing.T, socketPath string) {
	t.Helper()
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu          sync.Mutex
		connections []net.Conn
	)
	t.Cleanup(func() {
		listener.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, connection := range connections {
			connection.Close()
		}
	})
	go func() {
		for {
			connection, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			connections = append(connections, connection)
			mu.Unlock()
		}
	}()
}

func TestDaemonStopsReadingDuringSend(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), testutil.UniqueID("control")+".sock")
	listenWithoutReading(t, socketPath)
	manager, events := newManager(t, socketPath, func(config *controlchannel.Config) {
		config.KeepAliveInterval = 100 * time.Millisecond
		config.SocketBufferSize = 4096
		config.ReconnectInitialDelay = time.Minute
		config.ReconnectMaxDelay = time.Minute
	})

	manager.Connect()
	events.waitForPhase(t, controlchannel.PhaseReady)

	// Far more than the socket buffers hold, so Send is left retrying
	// a full socket while keep-alive ticks go by.
	payload := []byte(`{"data":"` + strings.Repeat("x", 8<<20) + `"}`)
	sendResult := make(chan error, 1)
	go func() { sendResult <- manager.Send(context.Background(), payload) }()

	state := events.waitForPhase(t, controlchannel.PhaseFailed)
	if !errors.Is(state.Err, controlchannel.ErrKeepAliveTimeout) {
		t.Fatalf("failed state error = %v, want ErrKeepAliveTimeout", state.Err)
	}
	if err := testutil.RequireReceive(t, sendResult, testTimeout, "waiting for stalled send"); !errors.Is(err, controlchannel.ErrSendFailed) {
		t.Errorf("stalled Send = %v, want ErrSendFailed", err)
	}
}
