// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

// pendingMessage is a payload accepted for delivery while the
// connection was not ready.
type pendingMessage struct {
	payload    []byte
	completion func(error)
}

// pendingQueue is a FIFO bounded by capacity. Inserting into a full
// queue evicts the oldest entry without invoking its completion. The
// Manager's mutex guards it.
type pendingQueue struct {
	entries  []pendingMessage
	capacity int
	evicted  uint64
}

func newPendingQueue(capacity int) *pendingQueue {
	return &pendingQueue{capacity: capacity}
}

// push appends message, evicting from the head while over capacity.
func (q *pendingQueue) push(message pendingMessage) {
	q.entries = append(q.entries, message)
	q.trim()
}

// pushFront returns a message to the head of the queue after a failed
// delivery attempt.
func (q *pendingQueue) pushFront(message pendingMessage) {
	q.entries = append([]pendingMessage{message}, q.entries...)
	q.trim()
}

func (q *pendingQueue) trim() {
	for len(q.entries) > q.capacity {
		q.entries[0] = pendingMessage{} // release payload for GC
		q.entries = q.entries[1:]
		q.evicted++
	}
}

// pop removes and returns the oldest message.
func (q *pendingQueue) pop() (pendingMessage, bool) {
	if len(q.entries) == 0 {
		return pendingMessage{}, false
	}
	message := q.entries[0]
	q.entries[0] = pendingMessage{}
	q.entries = q.entries[1:]
	return message, true
}

// drain removes and returns every queued message in order.
func (q *pendingQueue) drain() []pendingMessage {
	drained := q.entries
	q.entries = nil
	return drained
}

func (q *pendingQueue) len() int { return len(q.entries) }
