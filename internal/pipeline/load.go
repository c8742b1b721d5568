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

// Package pipeline implements the mixnode's central receive-to-forward
// data plane (spec §4.3, §5): the LoadEstimator that turns raw queue
// pressure into a smoothed [0,1] signal, the adaptive BatchScheduler that
// consumes it, the InflightPacket envelope, and the WorkerPool that runs
// each batch through the SphinxPeeler and hands peeled packets to the
// delay scheduler.
package pipeline

import "sync"

// LoadWindow is the number of raw samples averaged into the smoothed
// load signal (spec §4.3).
const LoadWindow = 100

// LoadEstimator maintains a moving average over the last LoadWindow raw
// load signals (queue-depth ratios, drop rate, writer back-pressure),
// each expected in [0,1], and exposes the smoothed result BatchScheduler,
// the delay scheduler and the cover mixer all consult (spec §4.3, §2).
type LoadEstimator struct {
	mu      sync.Mutex
	samples []float64
	idx     int
	filled  bool
	sum     float64
}

// NewLoadEstimator builds an estimator with an empty window.
func NewLoadEstimator() *LoadEstimator {
	return &LoadEstimator{samples: make([]float64, LoadWindow)}
}

// Feed records one raw signal in [0,1], replacing the oldest sample once
// the window is full.
func (e *LoadEstimator) Feed(signal float64) {
	if signal < 0 {
		signal = 0
	}
	if signal > 1 {
		signal = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.filled {
		e.sum -= e.samples[e.idx]
	}
	e.samples[e.idx] = signal
	e.sum += signal
	e.idx++
	if e.idx >= len(e.samples) {
		e.idx = 0
		e.filled = true
	}
}

// Smoothed returns the current moving average, 0 if no samples have been
// fed yet.
func (e *LoadEstimator) Smoothed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.idx
	if e.filled {
		n = len(e.samples)
	}
	if n == 0 {
		return 0
	}
	return e.sum / float64(n)
}
