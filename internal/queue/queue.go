// Copyright (C) 2026  betanet mixnode authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package queue implements the mixnode's bounded input/output FIFOs
// (spec §4.1), built on top of github.com/eapache/queue's ring buffer the
// way the teacher layers session/arq.go's retransmit bookkeeping over a
// plain slice-backed structure: the ring buffer supplies O(1) amortized
// push/pop, this package adds the capacity bound, drop policy and depth
// counter spec §4.1 and §5 require.
package queue

import (
	"sync"

	"github.com/eapache/queue"
)

// Policy selects what happens when Push is called on a full queue.
type Policy int

const (
	// DropOldest evicts the head of the queue to make room for the new
	// item (the InputQueue's policy, spec §4.1).
	DropOldest Policy = iota
	// RejectNewest refuses the new item, leaving the queue unchanged
	// (the OutputQueue's back-pressure policy, spec §4.1).
	RejectNewest
)

// Queue is a bounded FIFO with a configurable full-queue policy and a
// depth counter the LoadEstimator reads (spec §4.3).
type Queue struct {
	mu sync.Mutex

	q        *queue.Queue
	capacity int
	policy   Policy

	dropped uint64
}

// New creates a Queue of the given capacity and full-queue policy.
func New(capacity int, policy Policy) *Queue {
	return &Queue{
		q:        queue.New(),
		capacity: capacity,
		policy:   policy,
	}
}

// Push enqueues item. Under DropOldest, a full queue evicts its head first
// so the push always succeeds (I3 is satisfied by capacity never being
// exceeded, not by rejecting — this is the input queue's fail-soft path).
// Under RejectNewest, a full queue rejects item and ok is false — this is
// the back-pressure signal to the output-side writer.
//
// Submission to a full queue under RejectNewest never blocks; callers on
// the receive path instead bump a drop counter (spec §4.1, §4.10).
func (q *Queue) Push(item interface{}) (ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.q.Length() >= q.capacity {
		switch q.policy {
		case DropOldest:
			q.q.Remove()
			q.dropped++
		case RejectNewest:
			q.dropped++
			return false
		}
	}
	q.q.Add(item)
	return true
}

// Pop removes and returns the head item, or (nil, false) if empty.
func (q *Queue) Pop() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.q.Length() == 0 {
		return nil, false
	}
	item := q.q.Peek()
	q.q.Remove()
	return item, true
}

// PopN removes and returns up to n items (fewer if the queue has less).
func (q *Queue) PopN(n int) []interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	avail := q.q.Length()
	if n > avail {
		n = avail
	}
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, q.q.Peek())
		q.q.Remove()
	}
	return out
}

// Depth returns the current queue length.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}

// DepthRatio returns Depth()/Capacity() as a load signal in [0,1], fed to
// the LoadEstimator (spec §4.3).
func (q *Queue) DepthRatio() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity == 0 {
		return 0
	}
	return float64(q.q.Length()) / float64(q.capacity)
}

// Dropped returns the cumulative number of items dropped due to a full
// queue (spec I1, I3).
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Capacity returns the configured maximum depth.
func (q *Queue) Capacity() int {
	return q.capacity
}
