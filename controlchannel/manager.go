// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vibetunnel/vibetunnel/lib/clock"
	"github.com/vibetunnel/vibetunnel/lib/framing"
	"github.com/vibetunnel/vibetunnel/lib/netutil"
	"github.com/vibetunnel/vibetunnel/transport"
)

// Manager owns the control channel connection: it connects, keeps the
// connection alive, reconnects after failures, and delivers messages
// in submission order.
//
// Every connect attempt gets a new generation number. Goroutines
// started for an attempt (dial, receive loop, keep-alive, flush)
// carry their generation and do nothing once it is stale, so a
// teardown never races with work belonging to the connection it
// replaced.
//
// Lock order: writeMu before mu. Nothing acquires writeMu while
// holding mu.
type Manager struct {
	config   Config
	handlers Handlers
	logger   *slog.Logger
	clock    clock.Clock
	dialer   transport.Dialer
	recorder FrameRecorder

	dispatch *dispatcher

	// writeMu serializes frame writes so frames never interleave.
	writeMu sync.Mutex

	mu                  sync.Mutex
	state               ConnectionState
	stateChanged        chan struct{}
	generation          uint64
	isConnecting        bool
	isReconnecting      bool
	shouldReconnect     bool
	closed              bool
	stream              transport.Stream
	connectionCancel    context.CancelFunc
	reconnectCancel     context.CancelFunc
	backoff             *Backoff
	consecutiveFailures int
	pending             *pendingQueue
	flushing            bool
	lastPong            time.Time

	unhandled      atomic.Uint64
	corruptFrames  atomic.Uint64
	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
}

// NewManager validates config and returns a Manager in PhaseSetup.
// Call Connect to start connecting and Close to release the Manager.
func NewManager(config Config, handlers Handlers, logger *slog.Logger, options ...ManagerOption) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid control channel config: %w", err)
	}
	if handlers.OnMessage == nil {
		return nil, errors.New("controlchannel: Handlers.OnMessage is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	manager := &Manager{
		config:          config,
		handlers:        handlers,
		logger:          logger.With("component", "controlchannel", "socket_path", config.SocketPath),
		clock:           clock.Real(),
		state:           ConnectionState{Phase: PhaseSetup},
		stateChanged:    make(chan struct{}),
		shouldReconnect: true,
		backoff:         NewBackoff(config.ReconnectInitialDelay, config.ReconnectMaxDelay, config.ReconnectMultiplier),
		pending:         newPendingQueue(config.PendingCapacity),
	}
	for _, option := range options {
		option(manager)
	}
	if manager.dialer == nil {
		manager.dialer = &transport.UnixDialer{
			SocketBufferSize:    config.SocketBufferSize,
			ConnectTimeout:      config.ConnectTimeout,
			ConnectPollInterval: config.ConnectPollInterval,
			SendRetryInterval:   config.SendRetryInterval,
			ReceiveChunkSize:    config.ReceiveChunkSize,
			Logger:              manager.logger,
		}
	}
	manager.dispatch = newDispatcher()
	return manager, nil
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts connecting if no attempt is in flight and the
// connection is not already ready. It resets the reconnect delay and
// failure count, cancels any scheduled reconnect, and re-enables
// automatic reconnection after a Disconnect. It returns immediately;
// progress is reported through OnStateChange.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.shouldReconnect = true
	m.backoff.Reset()
	m.consecutiveFailures = 0
	if m.reconnectCancel != nil {
		m.reconnectCancel()
		m.reconnectCancel = nil
	}
	m.isReconnecting = false
	m.connectLocked()
}

// connectLocked starts one connect attempt. Caller holds mu.
func (m *Manager) connectLocked() {
	if m.isConnecting || m.state.Phase == PhaseReady {
		return
	}
	m.isConnecting = true
	m.generation++
	generation := m.generation

	ctx, cancel := context.WithCancel(context.Background())
	m.connectionCancel = cancel
	m.setStateLocked(ConnectionState{Phase: PhasePreparing})

	go m.dial(ctx, generation)
}

func (m *Manager) dial(ctx context.Context, generation uint64) {
	dialContext, cancelDial := context.WithTimeout(ctx, m.config.ConnectTimeout)
	stream, err := m.dialer.Dial(dialContext, m.config.SocketPath)
	cancelDial()

	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation || m.closed {
		if stream != nil {
			stream.Close()
		}
		return
	}
	m.isConnecting = false

	if err != nil {
		m.consecutiveFailures++
		m.connectionCancel()
		m.connectionCancel = nil

		phase := PhaseFailed
		if netutil.IsSocketMissing(err) {
			phase = PhaseWaiting
		}
		level := slog.LevelWarn
		if netutil.IsReconnectable(err) {
			level = slog.LevelInfo
		}
		m.logger.Log(ctx, level, "control channel connect failed",
			"error", err,
			"consecutive_failures", m.consecutiveFailures,
			"retry_in", m.backoff.Current(),
		)
		m.setStateLocked(ConnectionState{Phase: phase, Err: fmt.Errorf("%w: %w", ErrConnectionFailed, err)})
		m.scheduleReconnectLocked()
		return
	}

	m.stream = stream
	m.consecutiveFailures = 0
	m.backoff.Reset()
	m.lastPong = m.clock.Now()
	m.setStateLocked(ConnectionState{Phase: PhaseReady})

	go m.receiveLoop(ctx, generation, stream)
	go m.keepAliveLoop(ctx, generation, m.clock.NewTicker(m.config.KeepAliveInterval))
	if m.pending.len() > 0 {
		m.flushing = true
		go m.flush(ctx, generation)
	}
}

// Disconnect tears down the connection and stops automatic
// reconnection. Queued messages are discarded and their completions
// receive ErrNotConnected. Safe to call in any state, including while
// a connect attempt is in flight.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.shouldReconnect = false
	if m.reconnectCancel != nil {
		m.reconnectCancel()
		m.reconnectCancel = nil
	}
	m.isReconnecting = false
	m.isConnecting = false
	m.teardownLocked()
	discarded := m.pending.drain()
	m.setStateLocked(ConnectionState{Phase: PhaseCancelled})
	m.mu.Unlock()

	for _, message := range discarded {
		m.complete(message.completion, ErrNotConnected)
	}
}

// Close disconnects and stops the callback goroutine. The Manager
// cannot be reused.
func (m *Manager) Close() error {
	m.Disconnect()

	m.mu.Lock()
	m.closed = true
	close(m.stateChanged)
	m.stateChanged = make(chan struct{})
	m.mu.Unlock()

	m.dispatch.stop()
	return nil
}

// WaitReady blocks until the connection is ready. Returns
// ErrNotConnected if the Manager is disconnected, ErrManagerClosed
// after Close, or ctx's error.
func (m *Manager) WaitReady(ctx context.Context) error {
	for {
		m.mu.Lock()
		switch {
		case m.closed:
			m.mu.Unlock()
			return ErrManagerClosed
		case m.state.Phase == PhaseReady:
			m.mu.Unlock()
			return nil
		case !m.shouldReconnect:
			m.mu.Unlock()
			return ErrNotConnected
		}
		changed := m.stateChanged
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Send delivers payload, which must be a single JSON object. When the
// connection is ready the payload is written immediately and transport
// errors are returned (wrapped in ErrSendFailed) after scheduling a
// reconnect. Otherwise the payload is queued for delivery once the
// connection is ready and Send returns nil. After Disconnect, Send
// returns ErrNotConnected.
func (m *Manager) Send(ctx context.Context, payload []byte) error {
	return m.SendWithCompletion(ctx, payload, nil)
}

// SendJSON marshals value and sends it.
func (m *Manager) SendJSON(ctx context.Context, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling control message: %w", err)
	}
	return m.Send(ctx, payload)
}

// SendWithCompletion is Send with a callback invoked once the payload
// is written (nil) or definitively fails. A queued message that is
// evicted because the queue is full never has its completion invoked.
// The completion runs on the callback goroutine.
func (m *Manager) SendWithCompletion(ctx context.Context, payload []byte, completion func(error)) error {
	if err := validatePayload(payload, m.config.MaxFrameSize); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.state.Phase != PhaseReady || m.flushing {
		if !m.shouldReconnect {
			m.mu.Unlock()
			return ErrNotConnected
		}
		m.pending.push(pendingMessage{payload: payload, completion: completion})
		m.mu.Unlock()
		return nil
	}
	stream, generation := m.stream, m.generation
	m.mu.Unlock()

	if err := m.writeFrame(ctx, stream, payload); err != nil {
		m.handleConnectionFailure(generation, err)
		wrapped := fmt.Errorf("%w: %w", ErrSendFailed, err)
		m.complete(completion, wrapped)
		return wrapped
	}
	m.complete(completion, nil)
	return nil
}

// writeFrame frames payload and writes it under writeMu.
func (m *Manager) writeFrame(ctx context.Context, stream transport.Stream, payload []byte) error {
	frame, err := framing.Encode(payload)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.sendLocked(ctx, stream, frame, payload)
}

// sendLocked writes an encoded frame. Caller holds writeMu.
func (m *Manager) sendLocked(ctx context.Context, stream transport.Stream, frame, payload []byte) error {
	if err := stream.Send(ctx, frame); err != nil {
		return err
	}
	m.framesSent.Add(1)
	if m.recorder != nil {
		m.recorder.RecordOutbound(payload)
	}
	return nil
}

// flush delivers queued messages in order after the connection
// becomes ready. Messages sent while flushing is set are appended to
// the queue, so submission order holds across the transition. On a
// write failure the failed message goes back to the head of the queue
// for the next connection.
func (m *Manager) flush(ctx context.Context, generation uint64) {
	for {
		m.mu.Lock()
		if generation != m.generation {
			m.mu.Unlock()
			return
		}
		message, ok := m.pending.pop()
		if !ok {
			m.flushing = false
			m.mu.Unlock()
			return
		}
		stream := m.stream
		m.mu.Unlock()

		if err := m.writeFrame(ctx, stream, message.payload); err != nil {
			m.mu.Lock()
			requeued := m.shouldReconnect && !m.closed
			if requeued {
				m.pending.pushFront(message)
			}
			m.mu.Unlock()
			if !requeued {
				m.complete(message.completion, ErrNotConnected)
			}
			m.logger.Warn("flushing queued message failed", "error", err)
			m.handleConnectionFailure(generation, err)
			return
		}
		m.complete(message.completion, nil)

		if m.config.FlushInterval > 0 {
			if clock.Sleep(ctx, m.config.FlushInterval) != nil {
				return
			}
		}
	}
}

// receiveLoop reads from stream until the connection's context is
// cancelled or the stream fails.
func (m *Manager) receiveLoop(ctx context.Context, generation uint64, stream transport.Stream) {
	buffer := framing.NewReceiveBuffer()
	for {
		if ctx.Err() != nil {
			return
		}
		data, err := stream.Receive()
		if err != nil {
			if ctx.Err() == nil {
				m.handleConnectionFailure(generation, err)
			}
			return
		}
		if data == nil {
			if clock.Sleep(ctx, m.config.ReceivePollInterval) != nil {
				return
			}
			continue
		}

		frames, err := buffer.Append(data)
		for _, frame := range frames {
			m.handleInbound(generation, frame)
		}
		if err != nil {
			m.corruptFrames.Add(1)
			m.logger.Warn("discarded receive buffer", "error", err)
		}
	}
}

// handleInbound consumes pongs and forwards everything else to
// OnMessage.
func (m *Manager) handleInbound(generation uint64, payload []byte) {
	m.framesReceived.Add(1)
	if m.recorder != nil {
		m.recorder.RecordInbound(payload)
	}

	if IsPong(payload) {
		m.mu.Lock()
		if generation == m.generation {
			m.lastPong = m.clock.Now()
		}
		m.mu.Unlock()
		return
	}

	m.dispatch.submit(func() {
		if err := m.handlers.OnMessage(payload); err != nil {
			m.unhandled.Add(1)
			m.logger.Warn("control message not handled", "error", err, "size", len(payload))
		}
	})
}

// handleConnectionFailure tears down a ready connection after a
// transport error and schedules a reconnect. Stale generations are
// ignored: the connection they belonged to is already gone.
func (m *Manager) handleConnectionFailure(generation uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation || m.state.Phase != PhaseReady {
		return
	}

	if errors.Is(err, transport.ErrPeerClosed) {
		err = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}
	// A closed or reset socket is the daemon going away; anything else
	// is unexpected and logged louder. Both reconnect.
	if netutil.IsReconnectable(err) {
		m.logger.Info("control channel connection lost", "error", err)
	} else {
		m.logger.Warn("control channel connection failed", "error", err)
	}

	m.teardownLocked()
	m.setStateLocked(ConnectionState{Phase: PhaseFailed, Err: err})
	m.scheduleReconnectLocked()
}

// teardownLocked invalidates the current generation, cancels its
// goroutines, and closes the stream. Caller holds mu.
func (m *Manager) teardownLocked() {
	m.generation++
	if m.connectionCancel != nil {
		m.connectionCancel()
		m.connectionCancel = nil
	}
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.logger.Debug("closing control socket", "error", err)
		}
		m.stream = nil
	}
	m.flushing = false
}

// scheduleReconnectLocked arms a single reconnect after the current
// backoff delay. Caller holds mu.
func (m *Manager) scheduleReconnectLocked() {
	if !m.shouldReconnect || m.isReconnecting || m.closed {
		return
	}
	m.isReconnecting = true
	delay := m.backoff.Current()
	ctx, cancel := context.WithCancel(context.Background())
	m.reconnectCancel = cancel

	m.logger.Info("scheduling reconnect", "delay", delay)
	go m.awaitReconnect(ctx, m.clock.After(delay))
}

func (m *Manager) awaitReconnect(ctx context.Context, elapsed <-chan time.Time) {
	select {
	case <-ctx.Done():
		return
	case <-elapsed:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil || !m.shouldReconnect || m.closed {
		return
	}
	m.reconnectCancel()
	m.reconnectCancel = nil
	m.isReconnecting = false
	// Grow before the attempt so a fast success resets to the
	// initial delay rather than being overwritten.
	m.backoff.Grow()
	m.connectLocked()
}

// setStateLocked records a transition, wakes WaitReady callers, and
// queues OnStateChange. Caller holds mu.
func (m *Manager) setStateLocked(state ConnectionState) {
	if state.Phase == m.state.Phase && sameError(state.Err, m.state.Err) {
		return
	}
	m.logger.Info("control channel state changed",
		"from", m.state.Phase.String(),
		"to", state.Phase.String(),
	)
	m.state = state
	close(m.stateChanged)
	m.stateChanged = make(chan struct{})

	if m.handlers.OnStateChange != nil {
		onStateChange := m.handlers.OnStateChange
		m.dispatch.submit(func() { onStateChange(state) })
	}
}

// sameError matches errors that are the same value or wrap each other.
// errors.Is never compares non-comparable error types with ==.
func sameError(a, b error) bool {
	return errors.Is(a, b) && errors.Is(b, a)
}

func (m *Manager) complete(completion func(error), err error) {
	if completion == nil {
		return
	}
	m.dispatch.submit(func() { completion(err) })
}

func (m *Manager) newPingID() string {
	return uuid.NewString()
}
