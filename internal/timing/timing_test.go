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

package timing

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestRandomizeStaysNonNegative(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Config{RandomizationPct: 0.5}, clock)
	for i := 0; i < 1000; i++ {
		got := d.Randomize(10 * time.Millisecond)
		require.GreaterOrEqual(t, got, time.Duration(0))
	}
}

func TestRandomizationBreaksPerfectCorrelation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Config{RandomizationPct: 0.9}, clock)
	for i := 0; i < 100; i++ {
		intended := time.Duration(i%10+1) * time.Millisecond
		actual := d.Randomize(intended)
		d.Record(1000, intended, actual)
		clock.Advance(5 * time.Millisecond)
	}
	// With pct 0.9 over intended delays of 1-10ms the expected correlation
	// is about 0.67: well below 1, but not under the 0.3 IsEffective bound.
	require.Less(t, d.Correlation(), 0.99)
}

func TestBurstDetection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Config{BurstThresholdPPS: 5}, clock)
	for i := 0; i < 20; i++ {
		d.Record(100, time.Millisecond, time.Millisecond)
		clock.Advance(time.Millisecond) // far above 5pps
	}
	require.True(t, d.IsBurst())
	mask := d.BurstMask()
	require.GreaterOrEqual(t, mask.Milliseconds(), int64(10))
	require.LessOrEqual(t, mask.Milliseconds(), int64(100))
}

func TestNoBurstWhenSpacedOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Config{BurstThresholdPPS: 5}, clock)
	for i := 0; i < 20; i++ {
		d.Record(100, time.Millisecond, time.Millisecond)
		clock.Advance(500 * time.Millisecond) // 2pps, below threshold
	}
	require.False(t, d.IsBurst())
}

func TestResistanceScoreBounded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Config{}, clock)
	for i := 0; i < 50; i++ {
		intended := time.Duration(i%7+1) * time.Millisecond
		actual := d.Randomize(intended)
		d.Record(500, intended, actual)
		clock.Advance(time.Duration(10+i%5) * time.Millisecond)
	}
	score := d.ResistanceScore()
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
}
