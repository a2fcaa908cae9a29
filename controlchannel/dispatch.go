// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import "sync"

// dispatcher runs callbacks one at a time, in submission order, on a
// single goroutine. Submission never blocks, so the Manager can queue
// a callback while holding its mutex and a callback can call back into
// the Manager.
type dispatcher struct {
	mu       sync.Mutex
	queue    []func()
	stopped  bool
	notify   chan struct{}
	finished chan struct{}
}

func newDispatcher() *dispatcher {
	dispatch := &dispatcher{
		notify:   make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
	go dispatch.run()
	return dispatch
}

// submit queues callback. Callbacks submitted after stop are dropped.
func (d *dispatcher) submit(callback func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, callback)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// stop makes the dispatcher exit once the callbacks already queued
// have run. It does not wait, so it is safe to call from a callback.
func (d *dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// done is closed when the dispatcher goroutine exits.
func (d *dispatcher) done() <-chan struct{} { return d.finished }

func (d *dispatcher) run() {
	defer close(d.finished)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		stopped := d.stopped
		d.mu.Unlock()

		for _, callback := range batch {
			callback()
		}
		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-d.notify
	}
}
