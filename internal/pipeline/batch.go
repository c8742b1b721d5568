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
	"time"

	"github.com/jonboulle/clockwork"
	lane "gopkg.in/oleiade/lane.v1"
)

// Strategy selects how BatchScheduler maps smoothed load onto a target
// batch size (spec §4.3).
type Strategy int

const (
	StrategyFixed Strategy = iota
	StrategyLoadBased
	StrategyMinLatency
	StrategyMaxThroughput
	StrategyBalanced
)

// BatchConfig parameterizes a BatchScheduler.
type BatchConfig struct {
	Strategy Strategy

	// MinBatch and MaxBatch bound the batch size to [1, 128] (spec §4.3).
	MinBatch int
	MaxBatch int

	// FixedSize is the constant size StrategyFixed returns.
	FixedSize int

	// IncreaseThreshold and DecreaseThreshold are the load breakpoints
	// StrategyMinLatency, StrategyMaxThroughput and StrategyBalanced key
	// off (spec §4.3 defaults: 0.7 / 0.3).
	IncreaseThreshold float64
	DecreaseThreshold float64

	// MinInterval is the minimum time between releasing successive
	// batches (spec §4.3 default 10ms) — the mechanism that makes
	// batching a privacy primitive.
	MinInterval time.Duration
}

func (c *BatchConfig) setDefaults() {
	if c.MinBatch <= 0 {
		c.MinBatch = 1
	}
	if c.MaxBatch <= 0 || c.MaxBatch > 128 {
		c.MaxBatch = 128
	}
	if c.MaxBatch < c.MinBatch {
		c.MaxBatch = c.MinBatch
	}
	if c.FixedSize <= 0 {
		c.FixedSize = c.MinBatch
	}
	if c.IncreaseThreshold <= 0 {
		c.IncreaseThreshold = 0.7
	}
	if c.DecreaseThreshold <= 0 {
		c.DecreaseThreshold = 0.3
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 10 * time.Millisecond
	}
}

// TargetSize computes the target batch size for the given smoothed load
// under cfg's strategy (spec §4.3), clamped to [MinBatch, MaxBatch].
func (c BatchConfig) TargetSize(load float64) int {
	c.setDefaults()
	min, max := float64(c.MinBatch), float64(c.MaxBatch)

	var size float64
	switch c.Strategy {
	case StrategyFixed:
		size = float64(c.FixedSize)
	case StrategyLoadBased:
		size = min + (max-min)*load*load
	case StrategyMinLatency:
		if load >= c.IncreaseThreshold {
			size = (min + max) / 4
		} else {
			size = min
		}
	case StrategyMaxThroughput:
		if load <= c.DecreaseThreshold {
			size = (min + 3*max) / 4
		} else {
			size = max
		}
	case StrategyBalanced:
		switch {
		case load <= c.DecreaseThreshold:
			size = min
		case load >= c.IncreaseThreshold:
			size = max
		default:
			mid := (min + max) / 2
			span := c.IncreaseThreshold - c.DecreaseThreshold
			frac := (load - c.DecreaseThreshold) / span
			size = mid + frac*(max-mid)
		}
	default:
		size = min
	}

	return clampBatch(int(size+0.5), c.MinBatch, c.MaxBatch)
}

func clampBatch(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// BatchScheduler dequeues 1-128 items per batch from an input queue at a
// load-adaptive size, enforcing a minimum inter-batch interval (spec
// §4.3). The forming batch is staged in a gopkg.in/oleiade/lane.v1 deque
// before being handed to the caller as a slice — the same structure
// send_queue.go uses for its own pending-work queue in the teacher,
// repurposed here for the batch-in-progress rather than a single-item
// send queue.
type BatchScheduler struct {
	mu  sync.Mutex
	cfg BatchConfig

	clock       clockwork.Clock
	lastRelease time.Time
	totalDelay  time.Duration
	adaptations uint64
	lastTarget  int

	staging *lane.Deque
}

// Source supplies items to a BatchScheduler. internal/queue.Queue
// satisfies it via PopN.
type Source interface {
	PopN(n int) []interface{}
}

// NewBatchScheduler builds a scheduler. clock defaults to a real clock if nil.
func NewBatchScheduler(cfg BatchConfig, clock clockwork.Clock) *BatchScheduler {
	cfg.setDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BatchScheduler{cfg: cfg, clock: clock, staging: lane.NewDeque()}
}

// NextBatch pulls a load-adaptive-sized batch from src, blocking (via
// clock.Sleep) to enforce MinInterval since the previous release. The
// returned duration is how long this call slept to honor MinInterval,
// which callers should fold into their own added-delay accounting (spec
// §4.3: "the slept duration is counted into total added delay").
func (s *BatchScheduler) NextBatch(src Source, smoothedLoad float64) ([]interface{}, time.Duration) {
	s.mu.Lock()
	target := s.cfg.TargetSize(smoothedLoad)
	if target != s.lastTarget {
		s.adaptations++
		s.lastTarget = target
	}

	var slept time.Duration
	if !s.lastRelease.IsZero() {
		elapsed := s.clock.Now().Sub(s.lastRelease)
		if elapsed < s.cfg.MinInterval {
			slept = s.cfg.MinInterval - elapsed
		}
	}
	s.mu.Unlock()

	if slept > 0 {
		s.clock.Sleep(slept)
	}

	items := src.PopN(target)
	for _, it := range items {
		s.staging.Append(it)
	}
	batch := make([]interface{}, 0, s.staging.Size())
	for s.staging.Size() > 0 {
		batch = append(batch, s.staging.Shift())
	}

	s.mu.Lock()
	s.lastRelease = s.clock.Now()
	s.totalDelay += slept
	s.mu.Unlock()

	return batch, slept
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	TotalAddedDelay time.Duration
	Adaptations     uint64
	LastTargetSize  int
}

// Stats returns the scheduler's cumulative added delay and adaptation count.
func (s *BatchScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TotalAddedDelay: s.totalDelay, Adaptations: s.adaptations, LastTargetSize: s.lastTarget}
}
