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

package reputation

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestNewNodeStartsAtMiddleReputation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New("relay-a", clock)
	require.Equal(t, Points(100), n.Points)
	require.Equal(t, 0.5, n.Reputation)
}

func TestApplyActionPointsDeltas(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New("relay-a", clock)

	n.ApplyAction(ActionSuccessfulForward, clock)
	require.Equal(t, Points(110), n.Points)

	n.ApplyAction(ActionTaskFailure, clock)
	require.Equal(t, Points(95), n.Points)
}

func TestApplyCustomDeltaMovesAndClampsPoints(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New("relay-a", clock)

	n.ApplyCustomDelta(30, clock)
	require.Equal(t, Points(130), n.Points)
	require.Equal(t, 0.65, n.Reputation)

	n.ApplyCustomDelta(-500, clock)
	require.Equal(t, Points(0), n.Points) // P7
}

func TestManagerApplyCustomDeltaRegistersUnknownNode(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(WithClock(clock))

	m.ApplyCustomDelta("fresh", 15)

	rep, ok := m.Get("fresh")
	require.True(t, ok)
	require.Equal(t, Points(115), rep.Points)
}

func TestPointsClampToRange(t *testing.T) {
	clock := clockwork.NewFakeClock()

	n := New("low", clock)
	for i := 0; i < 10; i++ {
		n.ApplyAction(ActionMaliciousBehavior, clock)
	}
	require.Equal(t, Points(0), n.Points) // P7

	n2 := New("high", clock)
	for i := 0; i < 20; i++ {
		n2.ApplyAction(ActionHighQualityService, clock)
	}
	require.Equal(t, Points(200), n2.Points) // P7
}

func TestDecayRateMatchesSpec(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New("relay-a", clock)
	n.Points = 100

	n.ApplyDecay(1)
	require.Equal(t, Points(99), n.Points) // P8: 100 * 0.99 = 99

	n.Points = 100
	n.ApplyDecay(10)
	require.Equal(t, Points(90), n.Points) // 100 * 0.99^10 ~= 90.44
}

func TestDecayNoopAtZeroDays(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New("relay-a", clock)
	n.Points = 150
	n.ApplyDecay(0)
	require.Equal(t, Points(150), n.Points)
}

func TestCostOfForgeryRewardsStakeAndHistory(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())

	high := WithStake("high", 10000, clock)
	high.Points = 150

	low := WithStake("low", 100, clock)
	low.Points = 50

	require.Greater(t, high.CostOfForgery(clock), low.CostOfForgery(clock))
}

func TestManagerUnknownRelayDefaults(t *testing.T) {
	m := New()
	reputation, performance, stake, ok := m.Lookup("ghost")
	require.True(t, ok)
	require.Equal(t, 0.5, reputation)
	require.Equal(t, 1.0, performance)
	require.Equal(t, uint64(0), stake)
}

func TestManagerUpdateReputationRegistersUnknownNode(t *testing.T) {
	m := New()
	m.UpdateReputation("relay-a", ActionSuccessfulForward)
	n, ok := m.Get("relay-a")
	require.True(t, ok)
	require.Equal(t, Points(110), n.Points)
}

func TestManagerApplyDecayAll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(WithClock(clock))
	m.AddNode("relay-a", 1000)
	m.UpdateReputation("relay-a", ActionSuccessfulForward)

	clock.Advance(3 * 24 * time.Hour)
	m.ApplyDecayAll()

	n, _ := m.Get("relay-a")
	require.Less(t, n.Points, Points(110))
}

func TestManagerMeetsThresholdAllowsUnknownByDefault(t *testing.T) {
	m := New(WithMinThreshold(101))
	require.True(t, m.MeetsThreshold("ghost"))

	m.AddNode("relay-a", 1000)
	require.False(t, m.MeetsThreshold("relay-a")) // starts at 100, below 101
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := New()
	m.AddNode("relay-a", 500)
	m.UpdateReputation("relay-a", ActionHighQualityService)

	snap := m.Snapshot()
	restored := New()
	restored.Restore(snap)

	n, ok := restored.Get("relay-a")
	require.True(t, ok)
	require.Equal(t, Points(120), n.Points)
}

func TestBoltSnapshotStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBoltSnapshotStore(dir + "/reputation.db")
	require.NoError(t, err)
	defer store.Close()

	m := New()
	m.AddNode("relay-a", 700)
	m.UpdateReputation("relay-a", ActionSuccessfulForward)

	require.NoError(t, store.Save(m.Snapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, loaded, "relay-a")
	require.Equal(t, Points(110), loaded["relay-a"].Points)
}
