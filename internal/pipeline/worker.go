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

package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/betanet/mixnode/internal/sphinx"
)

// ForwardFunc receives a packet that SphinxPeeler peeled successfully.
// The node wires it to a function that draws the packet's Poisson/VRF
// delay before writing it to its next hop (spec §2 pipeline diagram:
// WorkerPool -> DelayScheduler).
type ForwardFunc func(pkt *InflightPacket)

// DropFunc receives a packet that failed to peel, along with the error
// that caused the drop (spec §4.10: Sphinx peel error -> drop the
// packet, log at warn, do not tear down the connection).
type DropFunc func(pkt *InflightPacket, err error)

// WorkerPool runs N workers that each consume InflightPackets, call
// SphinxPeeler once per packet, and dispatch the result to Forward or
// Drop (spec §2, §5 — "packet-processing workers are parallel threads").
// Ordering across workers is explicitly not preserved (spec §5); packets
// submitted to the pool may be forwarded in any order relative to one
// another.
type WorkerPool struct {
	peeler  sphinx.Peeler
	forward ForwardFunc
	drop    DropFunc

	in chan *InflightPacket
	wg sync.WaitGroup

	processed uint64
	forwarded uint64
	dropped   uint64
}

// NewWorkerPool builds a pool of numWorkers workers sharing one bounded
// dispatch channel of depth chanDepth.
func NewWorkerPool(numWorkers, chanDepth int, peeler sphinx.Peeler, forward ForwardFunc, drop DropFunc) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if chanDepth < 1 {
		chanDepth = numWorkers
	}
	p := &WorkerPool{
		peeler:  peeler,
		forward: forward,
		drop:    drop,
		in:      make(chan *InflightPacket, chanDepth),
	}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.loop()
	}
	return p
}

func (p *WorkerPool) loop() {
	defer p.wg.Done()
	for pkt := range p.in {
		p.process(pkt)
	}
}

func (p *WorkerPool) process(pkt *InflightPacket) {
	atomic.AddUint64(&p.processed, 1)
	peeled, err := p.peeler.Peel(pkt.Payload)
	if err != nil {
		atomic.AddUint64(&p.dropped, 1)
		if p.drop != nil {
			p.drop(pkt, err)
		}
		return
	}
	pkt.NextHopHint = peeled.NextHopHint
	pkt.Payload = peeled.Inner
	atomic.AddUint64(&p.forwarded, 1)
	if p.forward != nil {
		p.forward(pkt)
	}
}

// Submit enqueues one packet for processing. It blocks if every worker is
// busy and the dispatch channel is full — callers that must never block
// the receive path (spec §4.1) should submit from the batch dispatch
// loop, not directly from the connection reader.
func (p *WorkerPool) Submit(pkt *InflightPacket) {
	p.in <- pkt
}

// SubmitBatch submits every *InflightPacket in batch, skipping any
// element that is not one (defensive against a misconfigured Source).
func (p *WorkerPool) SubmitBatch(batch []interface{}) {
	for _, item := range batch {
		if pkt, ok := item.(*InflightPacket); ok {
			p.Submit(pkt)
		}
	}
}

// Stop closes the dispatch channel and waits for every worker to drain.
func (p *WorkerPool) Stop() {
	close(p.in)
	p.wg.Wait()
}

// WorkerStats is a point-in-time snapshot of pool counters (spec §5:
// "lock-free monotone counters with relaxed atomic ordering").
type WorkerStats struct {
	Processed uint64
	Forwarded uint64
	Dropped   uint64
}

// Stats returns the pool's cumulative processed/forwarded/dropped counts.
func (p *WorkerPool) Stats() WorkerStats {
	return WorkerStats{
		Processed: atomic.LoadUint64(&p.processed),
		Forwarded: atomic.LoadUint64(&p.forwarded),
		Dropped:   atomic.LoadUint64(&p.dropped),
	}
}
