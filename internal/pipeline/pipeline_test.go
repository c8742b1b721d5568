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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/betanet/mixnode/internal/queue"
	"github.com/betanet/mixnode/internal/sphinx"
)

func TestLoadEstimatorSmoothing(t *testing.T) {
	e := NewLoadEstimator()
	for i := 0; i < 100; i++ {
		e.Feed(1.0)
	}
	require.InDelta(t, 1.0, e.Smoothed(), 1e-9)

	for i := 0; i < 100; i++ {
		e.Feed(0.0)
	}
	require.InDelta(t, 0.0, e.Smoothed(), 1e-9)
}

func TestBatchConfigStrategies(t *testing.T) {
	cfg := BatchConfig{MinBatch: 4, MaxBatch: 128, IncreaseThreshold: 0.7, DecreaseThreshold: 0.3}

	cfg.Strategy = StrategyLoadBased
	require.Equal(t, 4, cfg.TargetSize(0))
	require.Equal(t, 128, cfg.TargetSize(1))

	cfg.Strategy = StrategyMinLatency
	require.Equal(t, 4, cfg.TargetSize(0.1))
	require.Equal(t, int((4.0+128.0)/4+0.5), cfg.TargetSize(0.9))

	cfg.Strategy = StrategyMaxThroughput
	require.Equal(t, 128, cfg.TargetSize(0.9))
	require.Equal(t, int((4.0+3*128.0)/4+0.5), cfg.TargetSize(0.1))

	cfg.Strategy = StrategyBalanced
	require.Equal(t, 4, cfg.TargetSize(0.1))
	require.Equal(t, 128, cfg.TargetSize(0.9))
	mid := cfg.TargetSize(0.5)
	require.Greater(t, mid, 4)
	require.Less(t, mid, 128)
}

func TestBatchSchedulerEnforcesMinInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := queue.New(256, queue.DropOldest)
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	sched := NewBatchScheduler(BatchConfig{MinBatch: 1, MaxBatch: 8, FixedSize: 8, Strategy: StrategyFixed, MinInterval: 10 * time.Millisecond}, clock)

	batch1, slept1 := sched.NextBatch(q, 0)
	require.Len(t, batch1, 8)
	require.Equal(t, time.Duration(0), slept1)

	done := make(chan struct{})
	var batch2 []interface{}
	var slept2 time.Duration
	go func() {
		batch2, slept2 = sched.NextBatch(q, 0)
		close(done)
	}()
	// Give the goroutine a chance to block in clock.Sleep.
	time.Sleep(20 * time.Millisecond)
	clock.Advance(10 * time.Millisecond)
	<-done

	require.Len(t, batch2, 2)
	require.Equal(t, 10*time.Millisecond, slept2)
	require.Equal(t, 10*time.Millisecond, sched.Stats().TotalAddedDelay)
}

func TestWorkerPoolForwardsAndDrops(t *testing.T) {
	pub, priv, err := sphinx.GenerateKeyPair()
	require.NoError(t, err)
	wire, err := sphinx.EncryptLayer(pub, "next-hop", []byte("payload"))
	require.NoError(t, err)

	var mu sync.Mutex
	var forwarded []*InflightPacket
	var droppedCount int

	pool := NewWorkerPool(2, 4, sphinx.NewBoxPeeler(pub, priv),
		func(pkt *InflightPacket) {
			mu.Lock()
			forwarded = append(forwarded, pkt)
			mu.Unlock()
		},
		func(pkt *InflightPacket, err error) {
			mu.Lock()
			droppedCount++
			mu.Unlock()
		},
	)

	pool.Submit(&InflightPacket{Payload: wire, ArrivalTime: time.Now()})
	pool.Submit(&InflightPacket{Payload: []byte("garbage"), ArrivalTime: time.Now()})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(forwarded) == 1 && droppedCount == 1
	}, time.Second, time.Millisecond)

	pool.Stop()
	stats := pool.Stats()
	require.Equal(t, uint64(2), stats.Processed)
	require.Equal(t, uint64(1), stats.Forwarded)
	require.Equal(t, uint64(1), stats.Dropped)
}

func TestWorkerPoolSubmitBatch(t *testing.T) {
	pub, priv, err := sphinx.GenerateKeyPair()
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	pool := NewWorkerPool(4, 16, sphinx.NewBoxPeeler(pub, priv),
		func(pkt *InflightPacket) {
			mu.Lock()
			count++
			mu.Unlock()
		}, nil)

	batch := make([]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		wire, err := sphinx.EncryptLayer(pub, fmt.Sprintf("hop-%d", i), []byte("p"))
		require.NoError(t, err)
		batch = append(batch, &InflightPacket{Payload: wire})
	}
	pool.SubmitBatch(batch)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 10
	}, time.Second, time.Millisecond)
	pool.Stop()
}
