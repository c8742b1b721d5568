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

package delay

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/betanet/mixnode/internal/vrf"
	"github.com/stretchr/testify/require"
)

func TestInvalidConfigRefusesConstruction(t *testing.T) {
	_, err := New(Config{MeanMS: 50, MinMS: 100, MaxMS: 200})
	require.Error(t, err)

	_, err = New(Config{MeanMS: 50, MinMS: 100, MaxMS: 50})
	require.Error(t, err)
}

func TestPoissonMeanWithinTenPercent(t *testing.T) {
	s, err := New(Config{MeanMS: 100, MinMS: 0, MaxMS: 2000, JitterPct: 0})
	require.NoError(t, err)

	const n = 10000
	samples := make([]float64, n)
	var sum float64
	for i := range samples {
		d := s.Sample(1.0, 0)
		samples[i] = float64(d.Microseconds()) / 1000.0
		sum += samples[i]
	}
	mean := sum / n
	require.InDelta(t, 100, mean, 10) // P1: within 10%

	sort.Float64s(samples)
	median := samples[n/2]
	require.InDelta(t, 0.693*100, median, 0.693*100*0.15) // P2: exponential signature

	var variance float64
	for _, v := range samples {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	cv := math.Sqrt(variance) / mean
	require.GreaterOrEqual(t, cv, 0.8)
	require.LessOrEqual(t, cv, 1.2)
}

func TestAllSamplesWithinBounds(t *testing.T) {
	s, err := New(Config{MeanMS: 50, MinMS: 10, MaxMS: 120})
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		d := s.Sample(1.0, 0)
		ms := float64(d) / float64(time.Millisecond)
		require.GreaterOrEqual(t, ms, 10.0)
		require.LessOrEqual(t, ms, 120.0)
	}
}

func TestLoadAdaptationIncreasesMean(t *testing.T) {
	s, err := New(Config{MeanMS: 50, MinMS: 0, MaxMS: 5000, JitterPct: 0})
	require.NoError(t, err)

	sampleAvg := func(load float64) float64 {
		var sum float64
		const n = 3000
		for i := 0; i < n; i++ {
			sum += float64(s.Sample(1.0, load)) / float64(time.Millisecond)
		}
		return sum / n
	}

	loLoad := sampleAvg(0.0)
	hiLoad := sampleAvg(1.0)
	require.Greater(t, hiLoad, loLoad)
}

func TestCircuitMultiplierClamped(t *testing.T) {
	require.Equal(t, 0.1, clampCircuitMultiplier(0.0001))
	require.Equal(t, 10.0, clampCircuitMultiplier(1000))
	require.Equal(t, 2.0, clampCircuitMultiplier(2.0))
}

func TestVRFSamplingRespectsBounds(t *testing.T) {
	s, err := New(Config{MeanMS: 40, MinMS: 5, MaxMS: 100})
	require.NoError(t, err)

	k, err := vrf.Generate()
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		out := k.Evaluate([]byte{byte(i)})
		d := s.SampleVRF(out, 1.0, 0)
		ms := float64(d) / float64(time.Millisecond)
		require.GreaterOrEqual(t, ms, 5.0)
		require.LessOrEqual(t, ms, 100.0)
	}
}
