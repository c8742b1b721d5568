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

package cover

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestOverheadCeilingRespected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(Config{Mode: ConstantRate, TargetRate: 100, OverheadCeiling: 0.05}, clock)

	for i := 0; i < 1000; i++ {
		m.RecordReal(1000)
	}

	for i := 0; i < 10000; i++ {
		m.Emit()
	}

	stats := m.Stats()
	require.LessOrEqual(t, stats.Overhead, 0.05+1e-9)
}

func TestEmitSizeRespectsMinimum(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(Config{MinPacketSize: 64, OverheadCeiling: 1.0}, clock)
	m.RecordReal(10) // tiny real traffic so the drawn size could go below min

	for i := 0; i < 50; i++ {
		size, emit := m.Emit()
		if emit {
			require.GreaterOrEqual(t, size, 64)
		}
	}
}

func TestIndistinguishabilityScoreWithinUnitRange(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(Config{OverheadCeiling: 1.0}, clock)
	for i := 0; i < 200; i++ {
		m.RecordReal(500)
		clock.Advance(10_000_000) // 10ms
		m.Emit()
		clock.Advance(10_000_000)
	}
	score := m.IndistinguishabilityScore()
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
}

func TestNextIntervalModes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	constRate := New(Config{Mode: ConstantRate, TargetRate: 10}, clock)
	require.Equal(t, int64(100_000_000), constRate.NextInterval().Nanoseconds())

	burst := New(Config{Mode: Burst, BaseIntervalMS: 100}, clock)
	iv := burst.NextInterval()
	require.GreaterOrEqual(t, iv.Milliseconds(), int64(50))
	require.LessOrEqual(t, iv.Milliseconds(), int64(150))
}
